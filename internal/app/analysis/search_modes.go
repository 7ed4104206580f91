package analysis

import (
	"context"
	"fmt"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
)

// runCollector computes the ids of the runs a search looks in.
type runCollector func(ctx context.Context, filterID int64, run *reporting.Run) ([]int64, error)

// newRunCollectors maps every search mode to its collector. The table is fixed at
// construction; unknown modes are rejected by analysis.ParseSearchMode.
func newRunCollectors(runs reporting.RunRepository, filters reporting.FilterRepository) map[analysis.SearchMode]runCollector {
	return map[analysis.SearchMode]runCollector{
		analysis.SearchModeCurrentLaunch: func(_ context.Context, _ int64, run *reporting.Run) ([]int64, error) {
			return []int64{run.ID}, nil
		},

		analysis.SearchModeFilter: func(ctx context.Context, filterID int64, run *reporting.Run) ([]int64, error) {
			if filterID <= 0 {
				return nil, analysis.ErrMissingFilter
			}
			filter, err := filters.FindByID(ctx, run.ProjectID, filterID)
			if err != nil {
				return nil, err
			}
			return runs.FindIDsByFilter(ctx, *filter)
		},

		analysis.SearchModeAllLaunches: func(ctx context.Context, _ int64, run *reporting.Run) ([]int64, error) {
			return runs.FindIDsByProject(ctx, run.ProjectID)
		},

		analysis.SearchModeLaunchName: func(ctx context.Context, _ int64, run *reporting.Run) ([]int64, error) {
			return runs.FindIDsByName(ctx, run.ProjectID, run.Name)
		},
	}
}

func collectRuns(
	ctx context.Context,
	collectors map[analysis.SearchMode]runCollector,
	mode analysis.SearchMode,
	filterID int64,
	run *reporting.Run,
) ([]int64, error) {
	collect, ok := collectors[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", analysis.ErrUnknownSearchMode, mode)
	}
	ids, err := collect(ctx, filterID, run)
	if err != nil {
		return nil, fmt.Errorf("failed to collect runs for mode %s: %w", mode, err)
	}
	return ids, nil
}
