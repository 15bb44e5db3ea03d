package model

import "go.opentelemetry.io/otel"

const scopeName = "github.com/foxseedlab/suma/external/model"

var tracer = otel.Tracer(scopeName)
