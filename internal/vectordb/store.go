package vectordb

import "context"

// Retriever returns the records nearest to a query text.
type Retriever interface {
	Query(ctx context.Context, text string, k int) (*Retrieval, error)
}

// ProgressFunc is called after each source file is processed.
type ProgressFunc func(done, total int, id string)

// Options configures a Store.
type Options struct {
	Dir         string // directory holding the persisted collection
	Collection  string
	SourceDir   string
	Include     []string
	Exclude     []string
	MaxFileSize int64
}

var _ Retriever = (*Store)(nil)
