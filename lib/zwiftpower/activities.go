package zwiftpower

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var profileLinkRegex = regexp.MustCompile(`z=(\d+)`)
var activityLinkRegex = regexp.MustCompile(`activity/(\d+)`)

// EventRiderIDs scrapes the event page's html for rider profile links.
// It predates the json feeds and survives as a fallback for races the
// feeds don't cover.
func (c *Client) EventRiderIDs(ctx context.Context, raceID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:EventRiderIDs")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	res, err := c.fetch(ctx, c.eventUrl(raceID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch event page")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse event page html")
		return nil, &FetchError{Kind: FetchMalformedUpstream, URL: c.eventUrl(raceID), Cause: err}
	}

	return collectLinkIds(doc, "a[href*='profile.php?z=']", profileLinkRegex), nil
}

// PublicActivities scrapes a rider's profile page for links to their
// public Zwift activities.
func (c *Client) PublicActivities(ctx context.Context, riderID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:PublicActivities")
	defer span.End()
	span.SetAttributes(attribute.String("rider_id", riderID))

	res, err := c.fetch(ctx, c.profileUrl(riderID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile page")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse profile page html")
		return nil, &FetchError{Kind: FetchMalformedUpstream, URL: c.profileUrl(riderID), Cause: err}
	}

	return collectLinkIds(doc, "a[href*='zwift.com/activity/']", activityLinkRegex), nil
}

func collectLinkIds(doc *goquery.Document, selector string, pattern *regexp.Regexp) []string {
	seen := map[string]struct{}{}
	var ids []string
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		groups := pattern.FindStringSubmatch(a.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		id := groups[1]
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

// DownloadFit fetches the raw FIT file for an activity. Nil without an
// error means the activity is private or gone.
func (c *Client) DownloadFit(ctx context.Context, activityID string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:DownloadFit")
	defer span.End()
	span.SetAttributes(attribute.String("activity_id", activityID))

	res, err := c.fetch(ctx, c.activityFitUrl(activityID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch fit file")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK ||
		!strings.Contains(res.Header().Get("content-type"), "application") {
		return nil, nil
	}
	return res.Body(), nil
}

type FitFile struct {
	ActivityID string `json:"activityId"`
	RiderID    string `json:"zwiftId"`
	Data       []byte `json:"data"`
}

// PullRaceFitFiles downloads every public FIT file for every rider in
// a race. Riders without public activities are skipped, as is any
// activity that fails to download.
func (c *Client) PullRaceFitFiles(ctx context.Context, raceID string) ([]FitFile, error) {
	ctx, span := tracer.Start(ctx, "client:PullRaceFitFiles")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	riders, err := c.EventRiderIDs(ctx, raceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list riders")
		return nil, err
	}
	slog.InfoContext(ctx, "pulling race fit files", "race_id", raceID, "rider_count", len(riders))

	var files []FitFile
	for _, riderID := range riders {
		activities, err := c.PublicActivities(ctx, riderID)
		if err != nil {
			slog.WarnContext(
				ctx, "skipping rider, could not list activities",
				"rider_id", riderID,
				"err", err,
			)
			continue
		}
		for _, activityID := range activities {
			data, err := c.DownloadFit(ctx, activityID)
			if err != nil {
				slog.WarnContext(
					ctx, "skipping activity, download failed",
					"activity_id", activityID,
					"err", err,
				)
				continue
			}
			if data == nil {
				continue
			}
			files = append(files, FitFile{
				ActivityID: activityID,
				RiderID:    riderID,
				Data:       data,
			})
		}
	}

	span.SetAttributes(attribute.Int("fit_file_count", len(files)))
	return files, nil
}
