package analysis

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/logsift/internal/domain/analysis"
)

// AnalysisMetrics defines the metrics recorded by the analysis coordinators.
type AnalysisMetrics interface {
	IncBatchesSent(ctx context.Context, kind analysis.Kind)
	AddItemsClassified(ctx context.Context, analyzer string, count int)
	IncReclassifications(ctx context.Context, analyzer string)
	AddIndexedLogs(ctx context.Context, count int)
	IncIndexErrors(ctx context.Context, op string)
	IncSearchRequests(ctx context.Context, mode string)
}

// analysisMetrics implements AnalysisMetrics.
type analysisMetrics struct {
	batchesSent       metric.Int64Counter
	itemsClassified   metric.Int64Counter
	reclassifications metric.Int64Counter
	indexedLogs       metric.Int64Counter
	indexErrors       metric.Int64Counter
	searchRequests    metric.Int64Counter
	inProgress        metric.Int64ObservableGauge
}

const namespace = "analysis"

// NewAnalysisMetrics creates the analysis instruments. inProgress reports the number
// of runs with analysis in progress and backs an observable gauge.
func NewAnalysisMetrics(mp metric.MeterProvider, inProgress func() int) (*analysisMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(analysisMetrics)
	var err error

	if m.batchesSent, err = meter.Int64Counter(
		"batches_sent_total",
		metric.WithDescription("Total number of payloads sent to analyzer instances"),
	); err != nil {
		return nil, err
	}

	if m.itemsClassified, err = meter.Int64Counter(
		"items_classified_total",
		metric.WithDescription("Total number of classification rows returned by analyzers"),
	); err != nil {
		return nil, err
	}

	if m.reclassifications, err = meter.Int64Counter(
		"reclassifications_total",
		metric.WithDescription("Total number of results whose classification was changed"),
	); err != nil {
		return nil, err
	}

	if m.indexedLogs, err = meter.Int64Counter(
		"indexed_logs_total",
		metric.WithDescription("Total number of log lines indexed"),
	); err != nil {
		return nil, err
	}

	if m.indexErrors, err = meter.Int64Counter(
		"index_errors_total",
		metric.WithDescription("Total number of failed indexing operations"),
	); err != nil {
		return nil, err
	}

	if m.searchRequests, err = meter.Int64Counter(
		"search_requests_total",
		metric.WithDescription("Total number of similarity search requests"),
	); err != nil {
		return nil, err
	}

	if m.inProgress, err = meter.Int64ObservableGauge(
		"runs_in_progress",
		metric.WithDescription("Number of runs with analysis in progress"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if inProgress != nil {
				o.Observe(int64(inProgress()))
			}
			return nil
		}),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *analysisMetrics) IncBatchesSent(ctx context.Context, kind analysis.Kind) {
	m.batchesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *analysisMetrics) AddItemsClassified(ctx context.Context, analyzer string, count int) {
	m.itemsClassified.Add(ctx, int64(count), metric.WithAttributes(attribute.String("analyzer", analyzer)))
}

func (m *analysisMetrics) IncReclassifications(ctx context.Context, analyzer string) {
	m.reclassifications.Add(ctx, 1, metric.WithAttributes(attribute.String("analyzer", analyzer)))
}

func (m *analysisMetrics) AddIndexedLogs(ctx context.Context, count int) {
	m.indexedLogs.Add(ctx, int64(count))
}

func (m *analysisMetrics) IncIndexErrors(ctx context.Context, op string) {
	m.indexErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *analysisMetrics) IncSearchRequests(ctx context.Context, mode string) {
	m.searchRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
