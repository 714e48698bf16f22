package zwiftpower_test

import (
	"context"
	"testing"

	"racepower-backend/lib/zwiftpower/zptest"

	"github.com/stretchr/testify/require"
)

func TestRaceAnalysisSkipsRidersWithoutData(t *testing.T) {
	ctx := context.Background()
	upstream := zptest.New(t)
	upstream.SetResults("42", `{"data":[
		{"zwid":"1","name":"First"},
		{"zwid":"2","name":"Second"},
		{"zwid":"3","name":"Third"}
	]}`)
	upstream.SetView("42", `{"data":[
		{"zwid":"1","ftp":"280","category":"B"},
		{"zwid":"3","ftp":"320","category":"A"}
	]}`)
	// rider 2 never published analysis data
	upstream.SetAnalysis("42", "1", `{"datasets":[{"watts":[200,210]}]}`)
	upstream.SetAnalysis("42", "3", `{"datasets":[{"watts":[250,260]}]}`)

	out, err := newClient(t, upstream).RaceAnalysis(ctx, "42")
	require.NoError(t, err)

	// roster order survives, the rider without data just drops out
	require.Len(t, out, 2)
	require.Equal(t, "1", out[0]["zwiftId"])
	require.Equal(t, "3", out[1]["zwiftId"])

	require.Equal(t, "First", out[0]["name"])
	require.Equal(t, "B", out[0]["category"])
	require.Equal(t, 280.0, out[0]["ftp"])
	require.Equal(t, "A", out[1]["category"])
	require.NotNil(t, out[0]["datasets"])
}

func TestRaceAnalysisEmptyRace(t *testing.T) {
	upstream := zptest.New(t)

	out, err := newClient(t, upstream).RaceAnalysis(context.Background(), "777")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRiderAnalysisAbsent(t *testing.T) {
	upstream := zptest.New(t)

	analysis, err := newClient(t, upstream).RiderAnalysis(context.Background(), "42", "1")
	require.NoError(t, err)
	require.Nil(t, analysis)
}

func TestRiderAnalysisNonJsonBody(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetAnalysis("42", "1", "<html>not the feed you wanted</html>")

	analysis, err := newClient(t, upstream).RiderAnalysis(context.Background(), "42", "1")
	require.NoError(t, err)
	require.Nil(t, analysis)
}

func TestRaceAnalysisSurvivesRateLimit(t *testing.T) {
	ctx := context.Background()
	upstream := zptest.New(t)
	upstream.SetResults("9", `{"data":[{"zwid":"1","name":"Only"}]}`)
	upstream.SetView("9", `{"data":[]}`)
	upstream.SetAnalysis("9", "1", `{"datasets":[]}`)
	upstream.RateLimitNext(2)

	out, err := newClient(t, upstream).RaceAnalysis(ctx, "9")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Only", out[0]["name"])
}
