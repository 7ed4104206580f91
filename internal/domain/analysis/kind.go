package analysis

import "time"

// Kind identifies an independent category of background analysis. The set is closed
// and known at startup.
type Kind string

const (
	KindAutoClassification    Kind = "auto-classification"
	KindPatternClassification Kind = "pattern-classification"
	KindClustering            Kind = "clustering"
	KindIndexing              Kind = "indexing"
)

const (
	defaultStatusTTL    = 10 * time.Minute
	clusteringStatusTTL = 20 * time.Minute
)

// Kinds returns every known analysis kind.
func Kinds() []Kind {
	return []Kind{KindAutoClassification, KindPatternClassification, KindClustering, KindIndexing}
}

// StatusTTL returns how long an in-progress entry of this kind stays visible when it
// is never explicitly finished.
func (k Kind) StatusTTL() time.Duration {
	if k == KindClustering {
		return clusteringStatusTTL
	}
	return defaultStatusTTL
}

// String returns the string representation of the kind.
func (k Kind) String() string { return string(k) }
