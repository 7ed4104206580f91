package otel

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// endpointExcluder samples spans by ratio but never samples spans whose name is one
// of the excluded routes (health and readiness probes would otherwise dominate).
type endpointExcluder struct {
	endpoints   map[string]struct{}
	probability float64
	ratio       sdktrace.Sampler
}

func newEndpointExcluder(endpoints map[string]struct{}, probability float64) endpointExcluder {
	return endpointExcluder{
		endpoints:   endpoints,
		probability: probability,
		ratio:       sdktrace.TraceIDRatioBased(probability),
	}
}

// ShouldSample implements the sampler interface.
func (ee endpointExcluder) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if _, exists := ee.endpoints[parameters.Name]; exists {
		return sdktrace.SamplingResult{
			Decision:   sdktrace.Drop,
			Tracestate: trace.SpanContextFromContext(parameters.ParentContext).TraceState(),
		}
	}
	return ee.ratio.ShouldSample(parameters)
}

// Description implements the sampler interface.
func (ee endpointExcluder) Description() string {
	return "customSampler"
}
