package zwiftpower

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Rider is one roster entry: the required base record from the results
// feed plus best-effort enrichment from the view feed. Optional fields
// stay nil when the view feed has nothing for the rider.
type Rider struct {
	ID       string   `json:"zwiftId"`
	Name     string   `json:"name"`
	Category *string  `json:"category,omitempty"`
	WeightKg *float64 `json:"weight,omitempty"`
	FtpWatts *float64 `json:"ftp,omitempty"`
	Flag     *string  `json:"flag,omitempty"`
	Age      *string  `json:"age,omitempty"`
}

// flexString tolerates the feed's habit of sending ids and ages as
// either strings or bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

// flexNumber tolerates numbers shipped as strings, bare numbers or
// one-element arrays (the view feed does all three). Anything that
// doesn't parse leaves the value nil rather than zero.
type flexNumber struct {
	value *float64
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	f.value = firstNumber(raw)
	return nil
}

func firstNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &n
	case []any:
		for _, item := range t {
			if n := firstNumber(item); n != nil {
				return n
			}
		}
	}
	return nil
}

type resultsFeed struct {
	Data []resultEntry `json:"data"`
}

type resultEntry struct {
	Zwid flexString `json:"zwid"`
	Name string     `json:"name"`
}

type viewFeed struct {
	Data []viewEntry `json:"data"`
}

type viewEntry struct {
	Zwid     flexString `json:"zwid"`
	Weight   flexNumber `json:"weight"`
	Ftp      flexNumber `json:"ftp"`
	Category string     `json:"category"`
	Flag     string     `json:"flag"`
	Age      flexString `json:"age"`
}

// Roster fetches the race's results feed and merges in the view feed's
// metadata, deduplicated by rider id with the first occurrence winning.
// A race the upstream doesn't know yields an empty roster, not an
// error; a missing view feed only costs the optional fields.
func (c *Client) Roster(ctx context.Context, raceID string) ([]Rider, error) {
	ctx, span := tracer.Start(ctx, "client:Roster")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	res, err := c.fetch(ctx, c.resultsUrl(raceID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch results feed")
		return nil, err
	}

	var results resultsFeed
	if err := json.Unmarshal(res.Body(), &results); err != nil || results.Data == nil {
		// an invalid or empty race id is a normal input, the upstream
		// just serves a document without the data collection
		slog.InfoContext(ctx, "results feed has no rider data", "race_id", raceID)
		return nil, nil
	}

	view := c.viewLookup(ctx, raceID)

	seen := map[string]struct{}{}
	var riders []Rider
	for _, entry := range results.Data {
		id := strings.TrimSpace(string(entry.Zwid))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = fmt.Sprintf("Rider %s", id)
		}

		rider := Rider{ID: id, Name: name}
		if meta, ok := view[id]; ok {
			if meta.Category != "" {
				category := meta.Category
				rider.Category = &category
			}
			rider.WeightKg = meta.Weight.value
			rider.FtpWatts = meta.Ftp.value
			if meta.Flag != "" {
				flag := meta.Flag
				rider.Flag = &flag
			}
			if meta.Age != "" {
				age := string(meta.Age)
				rider.Age = &age
			}
		}
		riders = append(riders, rider)
	}

	span.SetAttributes(attribute.Int("rider_count", len(riders)))
	return riders, nil
}

// viewLookup indexes the view feed by rider id. The view feed is pure
// enrichment so any failure here degrades to an empty lookup.
func (c *Client) viewLookup(ctx context.Context, raceID string) map[string]viewEntry {
	res, err := c.fetch(ctx, c.viewUrl(raceID))
	if err != nil {
		slog.WarnContext(ctx, "view feed unavailable", "race_id", raceID, "err", err)
		return nil
	}

	var feed viewFeed
	if err := json.Unmarshal(res.Body(), &feed); err != nil {
		slog.WarnContext(ctx, "view feed is not valid json", "race_id", raceID, "err", err)
		return nil
	}

	lookup := make(map[string]viewEntry, len(feed.Data))
	for _, entry := range feed.Data {
		id := strings.TrimSpace(string(entry.Zwid))
		if id == "" {
			continue
		}
		if _, dup := lookup[id]; dup {
			continue
		}
		lookup[id] = entry
	}
	return lookup
}

// FindRider picks the roster entry whose display name best matches the
// given name, useful when a caller only knows what the rider is called.
func FindRider(roster []Rider, name string) (Rider, bool) {
	var best Rider
	var bestSimilarity float64
	for _, rider := range roster {
		if strings.EqualFold(rider.Name, name) {
			return rider, true
		}
		similarity := matchr.JaroWinkler(
			strings.ToLower(rider.Name),
			strings.ToLower(name),
			false,
		)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = rider
		}
	}
	if bestSimilarity < 0.8 {
		return Rider{}, false
	}
	return best, true
}
