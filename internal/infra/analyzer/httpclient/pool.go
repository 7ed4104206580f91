package httpclient

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/pkg/common/logger"
)

var (
	_ analysis.AnalyzerClient = (*Pool)(nil)
	_ analysis.IndexerClient  = (*Pool)(nil)
	_ analysis.SearchClient   = (*Pool)(nil)
	_ analysis.SuggestClient  = (*Pool)(nil)
)

const (
	analyzePath         = "/v1/analyze"
	indexPath           = "/v1/index"
	searchPath          = "/v1/search"
	suggestPath         = "/v1/suggest"
	suggestFeedbackPath = "/v1/suggest/feedback"
)

type indexResponse struct {
	Indexed int `json:"indexed"`
}

type cleanRequest struct {
	IDs []int64 `json:"ids"`
}

type cleanResponse struct {
	Removed int `json:"removed"`
}

// Pool routes analysis requests to the registered analyzer instances. Instances
// are consulted in ascending priority order.
type Pool struct {
	instances []*instance

	logger *logger.Logger
	tracer trace.Tracer
}

// NewPool builds a pool from the instance configurations. The transport is
// wrapped with OpenTelemetry instrumentation; nil selects http.DefaultTransport.
func NewPool(
	cfgs []InstanceConfig,
	transport http.RoundTripper,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*Pool, error) {
	seen := make(map[string]struct{}, len(cfgs))
	instances := make([]*instance, 0, len(cfgs))
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate analyzer instance name %q", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}
		instances = append(instances, newInstance(cfg, transport, tracer))
	}
	slices.SortStableFunc(instances, func(a, b *instance) int { return cmp.Compare(a.priority, b.priority) })

	return &Pool{
		instances: instances,
		logger:    logger.With("component", "analyzer_pool"),
		tracer:    tracer,
	}, nil
}

// Names returns the instance names in priority order.
func (p *Pool) Names() []string {
	names := make([]string, 0, len(p.instances))
	for _, inst := range p.instances {
		names = append(names, inst.name)
	}
	return names
}

func (p *Pool) withCapability(c Capability) []*instance {
	var out []*instance
	for _, inst := range p.instances {
		if inst.supports(c) {
			out = append(out, inst)
		}
	}
	return out
}

func (p *Pool) first(c Capability) (*instance, error) {
	for _, inst := range p.instances {
		if inst.supports(c) {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("%w: capability %s", analysis.ErrNoAnalyzerAvailable, c)
}

// HasAvailableInstances reports whether any analyze capable instance is registered.
func (p *Pool) HasAvailableInstances() bool { return len(p.withCapability(CapabilityAnalyze)) > 0 }

// Classify sends the payload to every analyze capable instance in priority order.
// Items classified by one instance are dropped from the payload sent to the next.
// A failing instance is skipped; an error is returned only when no instance
// produced any result.
func (p *Pool) Classify(
	ctx context.Context,
	payload analysis.IndexPayload,
) (map[string][]analysis.ClassificationResult, error) {
	logger := p.logger.With("operation", "classify", "run_id", payload.RunID)
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.classify",
		trace.WithAttributes(
			attribute.Int64("run_id", payload.RunID),
			attribute.Int("item_count", len(payload.TestItems)),
		))
	defer span.End()

	analyzers := p.withCapability(CapabilityAnalyze)
	if len(analyzers) == 0 {
		span.SetStatus(codes.Error, "no analyzer available")
		return nil, analysis.ErrNoAnalyzerAvailable
	}

	results := make(map[string][]analysis.ClassificationResult)
	remaining := payload.TestItems
	var errs []error
	for _, inst := range analyzers {
		if len(remaining) == 0 {
			break
		}

		req := payload
		req.TestItems = remaining

		var rows []analysis.ClassificationResult
		if err := inst.do(ctx, http.MethodPost, analyzePath, req, &rows); err != nil {
			logger.Warn(ctx, "analyzer instance failed", "analyzer", inst.name, "error", err)
			span.RecordError(err)
			errs = append(errs, err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		results[inst.name] = rows

		resolved := make(map[int64]struct{}, len(rows))
		for _, r := range rows {
			resolved[r.TestItemID] = struct{}{}
		}
		remaining = slices.DeleteFunc(slices.Clone(remaining), func(it analysis.IndexItemPayload) bool {
			_, ok := resolved[it.TestItemID]
			return ok
		})
		span.AddEvent("analyzer_responded", trace.WithAttributes(
			attribute.String("analyzer", inst.name),
			attribute.Int("result_count", len(rows)),
		))
	}

	if len(results) == 0 && len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetStatus(codes.Error, "all analyzers failed")
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	logger.Debug(ctx, "classification complete", "analyzer_count", len(results))
	span.SetStatus(codes.Ok, "classification complete")
	return results, nil
}

// Index sends the payloads to every index capable instance in parallel and
// returns the total number of indexed logs.
func (p *Pool) Index(ctx context.Context, payloads []analysis.IndexPayload) (int, error) {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.index",
		trace.WithAttributes(attribute.Int("payload_count", len(payloads))))
	defer span.End()

	if len(payloads) == 0 {
		return 0, nil
	}

	counts, err := fanOut(ctx, p.withCapability(CapabilityIndex), func(ctx context.Context, inst *instance) (int, error) {
		var resp indexResponse
		if err := inst.do(ctx, http.MethodPost, indexPath, payloads, &resp); err != nil {
			return 0, err
		}
		return resp.Indexed, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index failed")
		return 0, fmt.Errorf("index failed: %w", err)
	}

	span.SetAttributes(attribute.Int("indexed", counts))
	return counts, nil
}

// DeleteIndex drops the project index on every index capable instance.
func (p *Pool) DeleteIndex(ctx context.Context, projectID int64) error {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.delete_index",
		trace.WithAttributes(attribute.Int64("project_id", projectID)))
	defer span.End()

	path := indexPath + "/" + strconv.FormatInt(projectID, 10)
	_, err := fanOut(ctx, p.withCapability(CapabilityIndex), func(ctx context.Context, inst *instance) (int, error) {
		return 0, inst.do(ctx, http.MethodDelete, path, nil, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete index failed")
		return fmt.Errorf("delete index for project %d failed: %w", projectID, err)
	}
	return nil
}

// CleanIndex removes results from the index on every index capable instance and
// returns the total number removed.
func (p *Pool) CleanIndex(ctx context.Context, indexID int64, resultIDs []int64) (int, error) {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.clean_index",
		trace.WithAttributes(
			attribute.Int64("index_id", indexID),
			attribute.Int("result_count", len(resultIDs)),
		))
	defer span.End()

	if len(resultIDs) == 0 {
		return 0, nil
	}

	path := indexPath + "/" + strconv.FormatInt(indexID, 10) + "/clean"
	removed, err := fanOut(ctx, p.withCapability(CapabilityIndex), func(ctx context.Context, inst *instance) (int, error) {
		var resp cleanResponse
		if err := inst.do(ctx, http.MethodPost, path, cleanRequest{IDs: resultIDs}, &resp); err != nil {
			return 0, err
		}
		return resp.Removed, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clean index failed")
		return 0, fmt.Errorf("clean index %d failed: %w", indexID, err)
	}
	return removed, nil
}

// Search queries the highest priority search capable instance.
func (p *Pool) Search(ctx context.Context, payload analysis.SearchPayload) ([]analysis.SearchHit, error) {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.search",
		trace.WithAttributes(attribute.Int64("item_id", payload.ItemID)))
	defer span.End()

	inst, err := p.first(CapabilitySearch)
	if err != nil {
		span.SetStatus(codes.Error, "no search instance")
		return nil, err
	}

	var hits []analysis.SearchHit
	if err := inst.do(ctx, http.MethodPost, searchPath, payload, &hits); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return hits, nil
}

// Suggest requests suggestions from the highest priority suggest capable instance.
func (p *Pool) Suggest(ctx context.Context, payload analysis.SuggestPayload) ([]analysis.SuggestInfo, error) {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.suggest",
		trace.WithAttributes(attribute.Int64("item_id", payload.TestItemID)))
	defer span.End()

	inst, err := p.first(CapabilitySuggest)
	if err != nil {
		span.SetStatus(codes.Error, "no suggest instance")
		return nil, err
	}

	var infos []analysis.SuggestInfo
	if err := inst.do(ctx, http.MethodPost, suggestPath, payload, &infos); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest failed")
		return nil, fmt.Errorf("suggest failed: %w", err)
	}
	return infos, nil
}

// SuggestFeedback reports chosen suggestions to the highest priority suggest
// capable instance.
func (p *Pool) SuggestFeedback(ctx context.Context, choices []analysis.SuggestInfo) error {
	ctx, span := p.tracer.Start(ctx, "analyzer_pool.suggest_feedback",
		trace.WithAttributes(attribute.Int("choice_count", len(choices))))
	defer span.End()

	inst, err := p.first(CapabilitySuggest)
	if err != nil {
		span.SetStatus(codes.Error, "no suggest instance")
		return err
	}

	if err := inst.do(ctx, http.MethodPost, suggestFeedbackPath, choices, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest feedback failed")
		return fmt.Errorf("suggest feedback failed: %w", err)
	}
	return nil
}

// fanOut runs fn against every instance concurrently and sums the returned counts.
// The first failure cancels the remaining calls.
func fanOut(
	ctx context.Context,
	instances []*instance,
	fn func(ctx context.Context, inst *instance) (int, error),
) (int, error) {
	if len(instances) == 0 {
		return 0, analysis.ErrNoAnalyzerAvailable
	}

	counts := make([]int, len(instances))
	g, ctx := errgroup.WithContext(ctx)
	for i, inst := range instances {
		g.Go(func() error {
			n, err := fn(ctx, inst)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int
	for _, n := range counts {
		total += n
	}
	return total, nil
}
