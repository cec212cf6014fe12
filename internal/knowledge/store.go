// Package knowledge is the persistent memory of the pipeline: raw signal
// bodies, analysis records and syntheses live in namespaced collections
// with vector search over their text. The store owns embedding; callers
// hand over text and never see vectors.
package knowledge

import (
	"context"
	"time"
)

// Record namespaces. Every record lives in exactly one.
const (
	NamespaceSignals   = "signals"
	NamespaceAnalyses  = "analyses"
	NamespaceSyntheses = "syntheses"
)

// ValidNamespace reports whether ns is one of the known namespaces.
func ValidNamespace(ns string) bool {
	switch ns {
	case NamespaceSignals, NamespaceAnalyses, NamespaceSyntheses:
		return true
	}

	return false
}

// Record is one unit of stored knowledge. Body is the text that gets
// embedded; Metadata carries the structured fields queries filter on.
type Record struct {
	Namespace string
	ID        string
	Body      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Match is a search hit. Distance is cosine distance to the query text
// (0 identical, 2 opposite).
type Match struct {
	ID       string
	Body     string
	Metadata map[string]string
	Distance float64
}

// Filter narrows Search results before the nearest-neighbor ordering is
// applied. Zero values mean no constraint. MinScore compares against the
// numeric "score" metadata key that ranked records carry.
type Filter struct {
	Equals        map[string]string
	MinScore      int
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// Store is the persistence surface the pipeline stages depend on.
type Store interface {
	// Add upserts a record, embedding its body. Re-adding the same
	// (namespace, id) replaces the previous body and metadata.
	Add(ctx context.Context, rec Record) error

	// Search returns up to limit records nearest to the query text,
	// ordered by ascending distance. An empty namespace result is an
	// empty slice, not an error.
	Search(ctx context.Context, namespace, query string, limit int, filter Filter) ([]Match, error)

	// Get fetches one record by id. Returns xerrors.ErrNotFound when
	// absent.
	Get(ctx context.Context, namespace, id string) (Record, error)
}
