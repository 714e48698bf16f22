package racedata

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("services/racedata")
