package racedata_test

import (
	"context"
	"errors"
	"testing"

	"racepower-backend/lib/zwiftpower"
	"racepower-backend/lib/zwiftpower/zptest"
	"racepower-backend/services/racedata"

	"github.com/stretchr/testify/require"
)

func newService(upstream *zptest.Upstream) racedata.Service {
	return racedata.NewService(racedata.ServiceOptions{
		Client: upstream.ClientOptions(),
	})
}

func TestServiceSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	upstream := zptest.New(t)
	upstream.SetResults("42", `{"data":[{"zwid":"1","name":"Solo"}]}`)

	svc := newService(upstream)

	session, err := svc.Login(ctx, zptest.Username, zptest.Password)
	require.NoError(t, err)
	require.NotEmpty(t, session)

	// a later call on a fresh per-request client reuses the session
	roster, err := svc.Roster(ctx, session, "42")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "Solo", roster[0].Name)
}

func TestServiceLoginFailurePropagates(t *testing.T) {
	upstream := zptest.New(t)
	svc := newService(upstream)

	const badPassword = "hunter2"
	_, err := svc.Login(context.Background(), zptest.Username, badPassword)
	require.Error(t, err)

	var authErr *zwiftpower.AuthError
	require.True(t, errors.As(err, &authErr))
	require.NotContains(t, err.Error(), badPassword)
}

func TestServiceRaceAnalysis(t *testing.T) {
	ctx := context.Background()
	upstream := zptest.New(t)
	upstream.SetResults("9", `{"data":[{"zwid":"1","name":"A"},{"zwid":"2","name":"B"}]}`)
	upstream.SetView("9", `{"data":[]}`)
	upstream.SetAnalysis("9", "2", `{"datasets":[]}`)

	out, err := newService(upstream).RaceAnalysis(ctx, nil, "9")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "2", out[0]["zwiftId"])
}

func TestServiceRaceFitFiles(t *testing.T) {
	ctx := context.Background()
	upstream := zptest.New(t)
	upstream.SetEventPage("9", `<a href="/profile.php?z=1">A</a>`)
	upstream.SetProfilePage("1", `<a href="https://www.zwift.com/activity/5">r</a>`)
	upstream.SetFit("5", []byte("fit"))

	files, err := newService(upstream).RaceFitFiles(ctx, nil, "9")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "5", files[0].ActivityID)
	require.Equal(t, "1", files[0].RiderID)
}
