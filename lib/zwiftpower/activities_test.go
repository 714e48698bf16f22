package zwiftpower_test

import (
	"context"
	"testing"

	"racepower-backend/lib/zwiftpower"
	"racepower-backend/lib/zwiftpower/zptest"

	"github.com/stretchr/testify/require"
)

func TestEventRiderIDs(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetEventPage("42", `<html><body>
<a href="/profile.php?z=100">Rider A</a>
<a href="/profile.php?z=200">Rider B</a>
<a href="/profile.php?z=100">Rider A again</a>
<a href="/events.php?zid=42">not a profile link</a>
</body></html>`)

	ids, err := newClient(t, upstream).EventRiderIDs(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, []string{"100", "200"}, ids)
}

func TestPublicActivities(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetProfilePage("100", `<html><body>
<a href="https://www.zwift.com/activity/555">ride</a>
<a href="https://www.zwift.com/activity/666">another ride</a>
<a href="https://example.com/elsewhere">unrelated</a>
</body></html>`)

	ids, err := newClient(t, upstream).PublicActivities(context.Background(), "100")
	require.NoError(t, err)
	require.Equal(t, []string{"555", "666"}, ids)
}

func TestDownloadFit(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetFit("555", []byte{0x0e, 0x10, 0x43, 0x08})

	client := newClient(t, upstream)
	data, err := client.DownloadFit(context.Background(), "555")
	require.NoError(t, err)
	require.Equal(t, []byte{0x0e, 0x10, 0x43, 0x08}, data)

	// private or deleted activities come back nil, not as an error
	missing, err := client.DownloadFit(context.Background(), "556")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPullRaceFitFiles(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetEventPage("42", `<html><body>
<a href="/profile.php?z=100">A</a>
<a href="/profile.php?z=200">B</a>
</body></html>`)
	upstream.SetProfilePage("100", `<html><body>
<a href="https://www.zwift.com/activity/555">ride</a>
<a href="https://www.zwift.com/activity/556">private ride</a>
</body></html>`)
	upstream.SetProfilePage("200", `<html><body>
<a href="https://www.zwift.com/activity/777">ride</a>
</body></html>`)
	upstream.SetFit("555", []byte("fit-555"))
	upstream.SetFit("777", []byte("fit-777"))

	files, err := newClient(t, upstream).PullRaceFitFiles(context.Background(), "42")
	require.NoError(t, err)

	require.Equal(t, []zwiftpower.FitFile{
		{ActivityID: "555", RiderID: "100", Data: []byte("fit-555")},
		{ActivityID: "777", RiderID: "200", Data: []byte("fit-777")},
	}, files)
}
