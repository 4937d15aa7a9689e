package vectordb

import (
	"fmt"
	"strings"
	"time"
)

// ContextSeparator joins retrieved document texts into one context block.
const ContextSeparator = "\n\n---\n\n"

// Record is one ingested source document.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// Metadata holds structured information about a record.
type Metadata struct {
	Source      string // path relative to the source folder
	Format      string
	ContentHash string
	Bytes       int64
	IngestedAt  time.Time
}

// Result pairs a record with its cosine similarity to the query.
type Result struct {
	Record     Record
	Similarity float32
}

// Retrieval is the outcome of a query, most similar record first.
type Retrieval struct {
	Context string
	IDs     []string
	Results []Result
}

// Empty reports whether nothing was retrieved.
func (r *Retrieval) Empty() bool {
	return r == nil || len(r.IDs) == 0
}

func newRetrieval(results []Result) *Retrieval {
	r := &Retrieval{Results: results}
	texts := make([]string, 0, len(results))
	for _, res := range results {
		r.IDs = append(r.IDs, res.Record.ID)
		texts = append(texts, res.Record.Text)
	}
	r.Context = strings.Join(texts, ContextSeparator)
	return r
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	Added   []string
	Skipped []string
	Failed  []FileError

	// vectorSize is the length of the embeddings added, 0 if none were.
	vectorSize int
}

// FileError records a source file that could not be loaded.
type FileError struct {
	ID  string
	Err error
}

func (f FileError) Error() string {
	return fmt.Sprintf("%s: %v", f.ID, f.Err)
}

// NoSourceDataError is returned when ingestion into an empty store finds
// no eligible source files.
type NoSourceDataError struct {
	Dir string
}

func (e *NoSourceDataError) Error() string {
	return fmt.Sprintf("no source documents found in %s", e.Dir)
}
