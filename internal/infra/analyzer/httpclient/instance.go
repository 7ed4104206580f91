// Package httpclient talks to the external analyzer instances over HTTP. A Pool
// orders the registered instances by priority and routes every analysis port
// (classification, indexing, search, suggestions) to the instances that
// advertise the matching capability.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/pkg/common"
)

// Capability is an operation an analyzer instance advertises.
type Capability string

const (
	CapabilityAnalyze Capability = "analyze"
	CapabilityIndex   Capability = "index"
	CapabilitySearch  Capability = "search"
	CapabilitySuggest Capability = "suggest"
	CapabilityCluster Capability = "cluster"
)

// ParseCapability converts a textual capability into a Capability.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(strings.ToLower(strings.TrimSpace(s))); c {
	case CapabilityAnalyze, CapabilityIndex, CapabilitySearch, CapabilitySuggest, CapabilityCluster:
		return c, nil
	}
	return "", fmt.Errorf("unknown analyzer capability %q", s)
}

const defaultRequestTimeout = 30 * time.Second

// InstanceConfig describes one analyzer instance.
type InstanceConfig struct {
	Name         string
	URL          string
	Priority     int
	Capabilities []Capability
	// RateLimit is the allowed requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// Validate checks that the instance can be addressed.
func (c InstanceConfig) Validate() error {
	if c.Name == "" {
		return errors.New("analyzer instance name is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("analyzer instance %s: invalid url: %w", c.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("analyzer instance %s: url must be http(s), got %q", c.Name, c.URL)
	}
	if len(c.Capabilities) == 0 {
		return fmt.Errorf("analyzer instance %s: at least one capability is required", c.Name)
	}
	return nil
}

// StatusError is returned when an instance answers with a non-2xx status.
type StatusError struct {
	Instance   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer %s responded with status %d: %s", e.Instance, e.StatusCode, e.Body)
}

// instance is the HTTP client for a single analyzer.
type instance struct {
	name     string
	baseURL  string
	priority int
	caps     map[Capability]struct{}
	timeout  time.Duration

	httpClient  *http.Client
	rateLimiter *common.RateLimiter
	tracer      trace.Tracer
}

func newInstance(cfg InstanceConfig, transport http.RoundTripper, tracer trace.Tracer) *instance {
	caps := make(map[Capability]struct{}, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[c] = struct{}{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &instance{
		name:        cfg.Name,
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		priority:    cfg.Priority,
		caps:        caps,
		timeout:     timeout,
		httpClient:  &http.Client{Transport: otelhttp.NewTransport(transport)},
		rateLimiter: common.NewRateLimiter(cfg.RateLimit, cfg.Burst),
		tracer:      tracer,
	}
}

func (i *instance) supports(c Capability) bool {
	_, ok := i.caps[c]
	return ok
}

// do sends body as JSON and decodes a JSON response into out when out is non-nil.
func (i *instance) do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := i.tracer.Start(ctx, "analyzer_client.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("analyzer", i.name),
			attribute.String("http.method", method),
			attribute.String("path", path),
		))
	defer span.End()

	if err := i.rateLimiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal request")
			return fmt.Errorf("failed to marshal request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
		span.SetAttributes(attribute.Int("request_size", len(data)))
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("request to analyzer %s failed: %w", i.name, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{Instance: i.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, "non-2xx response")
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode response")
		return fmt.Errorf("failed to decode response from analyzer %s: %w", i.name, err)
	}

	return nil
}
