package zwiftpower

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RaceAnalysis resolves the roster and fetches every rider's analysis,
// a bounded number of riders at a time to stay under the upstream's
// rate limiting. Riders without analysis data are dropped; output
// order always matches roster order minus the dropped riders, and no
// single rider's failure aborts the run.
func (c *Client) RaceAnalysis(ctx context.Context, raceID string) ([]Analysis, error) {
	ctx, span := tracer.Start(ctx, "client:RaceAnalysis")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	roster, err := c.Roster(ctx, raceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve roster")
		return nil, err
	}

	slots := make([]Analysis, len(roster))
	sem := make(chan struct{}, c.workers)
	wg := sync.WaitGroup{}

	for i, rider := range roster {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rider Rider) {
			defer wg.Done()
			defer func() { <-sem }()

			analysis, err := c.RiderAnalysis(ctx, raceID, rider.ID)
			if err != nil {
				slog.WarnContext(
					ctx, "skipping rider, analysis fetch failed",
					"race_id", raceID,
					"rider_id", rider.ID,
					"err", err,
				)
				return
			}
			if analysis == nil {
				slog.DebugContext(
					ctx, "rider has no analysis data",
					"race_id", raceID,
					"rider_id", rider.ID,
				)
				return
			}

			mergeRider(analysis, rider)
			slots[i] = analysis
		}(i, rider)
	}
	wg.Wait()

	out := make([]Analysis, 0, len(roster))
	for _, analysis := range slots {
		if analysis != nil {
			out = append(out, analysis)
		}
	}

	span.SetAttributes(
		attribute.Int("rider_count", len(roster)),
		attribute.Int("analysis_count", len(out)),
	)
	return out, nil
}
