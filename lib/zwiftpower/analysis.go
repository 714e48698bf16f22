package zwiftpower

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Analysis is one rider's raw power/time-series document with the
// roster attributes merged in as flat fields. The upstream shape is
// not stable enough to model more tightly.
type Analysis map[string]any

// RiderAnalysis fetches one rider's analysis for a race. A nil result
// without an error means the upstream has no analysis for that rider
// (did not finish, data not public); callers continue with the rest of
// the roster.
func (c *Client) RiderAnalysis(ctx context.Context, raceID, riderID string) (Analysis, error) {
	ctx, span := tracer.Start(ctx, "client:RiderAnalysis")
	defer span.End()
	span.SetAttributes(
		attribute.String("race_id", raceID),
		attribute.String("rider_id", riderID),
	)

	res, err := c.fetch(ctx, c.analysisUrl(raceID, riderID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch analysis")
		return nil, err
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(res.Body(), &payload); err != nil || len(payload) == 0 {
		// the upstream serves an empty or non-json document when the
		// rider has nothing published
		return nil, nil
	}

	return Analysis(payload), nil
}

func mergeRider(analysis Analysis, rider Rider) {
	analysis["zwiftId"] = rider.ID
	analysis["name"] = rider.Name
	if rider.Category != nil {
		analysis["category"] = *rider.Category
	}
	if rider.WeightKg != nil {
		analysis["weight"] = *rider.WeightKg
	}
	if rider.FtpWatts != nil {
		analysis["ftp"] = *rider.FtpWatts
	}
	if rider.Flag != nil {
		analysis["flag"] = *rider.Flag
	}
	if rider.Age != nil {
		analysis["age"] = *rider.Age
	}
}
