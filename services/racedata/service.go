// Package racedata exposes the scrape pipeline as a stateless service:
// every call carries the caller's session and returns it untouched, so
// the service itself never holds anyone's authorization.
package racedata

import (
	"context"

	"racepower-backend/lib/zwiftpower"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Service struct {
	client zwiftpower.ClientOptions
}

type ServiceOptions struct {
	// Client is the template every per-request client is built from.
	// Session on the template is ignored, the caller's session wins.
	Client zwiftpower.ClientOptions
}

func NewService(opts ServiceOptions) Service {
	opts.Client.Session = nil
	return Service{client: opts.Client}
}

func (s Service) newClient(ctx context.Context, session []string) (*zwiftpower.Client, error) {
	opts := s.client
	opts.Session = session
	return zwiftpower.NewClient(ctx, opts)
}

// Login exchanges credentials for a serialized session. Credentials
// live only for the duration of the call.
func (s Service) Login(ctx context.Context, username, password string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "racedata:Login")
	defer span.End()

	client, err := s.newClient(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create client")
		return nil, err
	}
	session, err := client.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}
	return session, nil
}

// Roster resolves the merged, deduplicated rider list for a race.
func (s Service) Roster(ctx context.Context, session []string, raceID string) ([]zwiftpower.Rider, error) {
	ctx, span := tracer.Start(ctx, "racedata:Roster")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	client, err := s.newClient(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create client")
		return nil, err
	}
	roster, err := client.Roster(ctx, raceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster resolve failed")
		return nil, err
	}
	return roster, nil
}

// RaceAnalysis runs the full pipeline: roster, then per-rider analysis
// with roster attributes merged in.
func (s Service) RaceAnalysis(ctx context.Context, session []string, raceID string) ([]zwiftpower.Analysis, error) {
	ctx, span := tracer.Start(ctx, "racedata:RaceAnalysis")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	client, err := s.newClient(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create client")
		return nil, err
	}
	out, err := client.RaceAnalysis(ctx, raceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "race analysis failed")
		return nil, err
	}
	return out, nil
}

// RaceFitFiles downloads every public FIT file for a race's riders.
func (s Service) RaceFitFiles(ctx context.Context, session []string, raceID string) ([]zwiftpower.FitFile, error) {
	ctx, span := tracer.Start(ctx, "racedata:RaceFitFiles")
	defer span.End()
	span.SetAttributes(attribute.String("race_id", raceID))

	client, err := s.newClient(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create client")
		return nil, err
	}
	files, err := client.PullRaceFitFiles(ctx, raceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fit file pull failed")
		return nil, err
	}
	return files, nil
}
