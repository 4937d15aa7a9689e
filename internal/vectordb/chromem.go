package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/walker"
)

// Store is a persisted chromem-go collection of source documents.
//
// Readers take mu for reading. IngestFolder holds mu for writing while it
// inserts. Rebuild builds a complete replacement outside mu and swaps it
// in, so readers see either the old or the new store. writeMu serializes
// writers.
type Store struct {
	opts     Options
	embedder embeddings.Embedder
	ef       chromem.EmbeddingFunc

	writeMu sync.Mutex

	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
	// vectorSize is the length of the stored embeddings, 0 if unknown.
	// It can differ from embedder.Dimensions(), which may only be a
	// configured value.
	vectorSize int

	progress ProgressFunc
}

// Open creates a Store and loads the persisted collection if present.
func Open(ctx context.Context, opts Options, embedder embeddings.Embedder) (*Store, error) {
	if opts.Collection == "" {
		return nil, errors.New("vectordb: collection name is required")
	}
	s := &Store{
		opts:     opts,
		embedder: embedder,
		ef:       embeddings.ToChromemFunc(embedder),
	}

	db, col, err := s.newCollection()
	if err != nil {
		return nil, err
	}

	path := s.Path()
	if _, err := os.Stat(path); err == nil {
		if err := db.ImportFromFile(path, ""); err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		// Re-acquire collection reference after import.
		col = db.GetCollection(opts.Collection, s.ef)
		if col == nil {
			return nil, fmt.Errorf("collection %q not found in %s", opts.Collection, path)
		}
		s.vectorSize = s.storedVectorSize(ctx, col)
		slog.Debug("vector store loaded", "path", path, "records", col.Count(), "vector_size", s.vectorSize)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}

	s.db, s.col = db, col
	return s, nil
}

// Path is the persisted collection file.
func (s *Store) Path() string {
	return filepath.Join(s.opts.Dir, s.opts.Collection+".gob.gz")
}

// SourceDir is the folder ingested by IngestFolder and Rebuild.
func (s *Store) SourceDir() string {
	return s.opts.SourceDir
}

// SetProgressFunc installs a callback invoked once per source file.
func (s *Store) SetProgressFunc(fn ProgressFunc) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.progress = fn
}

func (s *Store) newCollection() (*chromem.DB, *chromem.Collection, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(s.opts.Collection, nil, s.ef)
	if err != nil {
		return nil, nil, fmt.Errorf("create collection: %w", err)
	}
	return db, col, nil
}

// Count returns the number of records in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// IngestFolder adds every eligible source file whose ID is not yet in the
// store. Existing records are never replaced. When the store is empty and
// the folder holds nothing eligible it returns *NoSourceDataError.
// Files the loader rejects are reported in Failed; an embedding failure
// aborts the run after persisting what was already added.
func (s *Store) IngestFolder(ctx context.Context) (*IngestResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	files, err := s.scan()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(files) == 0 {
		if s.col.Count() == 0 {
			return nil, &NoSourceDataError{Dir: s.opts.SourceDir}
		}
		return &IngestResult{}, nil
	}

	res, ingestErr := s.ingest(ctx, s.col, files)
	if res.vectorSize > 0 {
		s.vectorSize = res.vectorSize
	}
	if len(res.Added) > 0 {
		if err := s.persist(s.db); err != nil {
			return res, errors.Join(ingestErr, err)
		}
	}
	return res, ingestErr
}

// Rebuild replaces the store with a fresh ingestion of the source folder.
// The new collection is built and written to disk before it replaces the
// live one; on any error, including *NoSourceDataError, the current store
// stays in place.
func (s *Store) Rebuild(ctx context.Context) (*IngestResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	files, err := s.scan()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &NoSourceDataError{Dir: s.opts.SourceDir}
	}

	db, col, err := s.newCollection()
	if err != nil {
		return nil, err
	}
	res, err := s.ingest(ctx, col, files)
	if err != nil {
		return res, err
	}

	tmp, err := s.export(db)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return res, fmt.Errorf("replace %s: %w", s.Path(), err)
	}
	s.db, s.col = db, col
	s.vectorSize = res.vectorSize
	return res, nil
}

// scan lists the eligible source files. A missing source folder yields
// no files.
func (s *Store) scan() ([]walker.FileInfo, error) {
	if _, err := os.Stat(s.opts.SourceDir); os.IsNotExist(err) {
		return nil, nil
	}
	return walker.Walk(walker.Config{
		RootDir:     s.opts.SourceDir,
		Include:     s.opts.Include,
		Exclude:     s.opts.Exclude,
		MaxFileSize: s.opts.MaxFileSize,
	})
}

// ingest loads, embeds, and inserts files missing from col, one at a time.
func (s *Store) ingest(ctx context.Context, col *chromem.Collection, files []walker.FileInfo) (*IngestResult, error) {
	res := &IngestResult{}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.progress != nil {
			s.progress(i, len(files), f.RelPath)
		}

		if _, err := col.GetByID(ctx, f.RelPath); err == nil {
			res.Skipped = append(res.Skipped, f.RelPath)
			continue
		}

		doc, err := loader.LoadFile(f.Path)
		if err != nil {
			res.Failed = append(res.Failed, FileError{ID: f.RelPath, Err: err})
			continue
		}
		if doc.Text == "" {
			res.Failed = append(res.Failed, FileError{ID: f.RelPath, Err: errors.New("no extractable text")})
			continue
		}

		vec, err := embeddings.EmbedText(ctx, s.embedder, doc.Text)
		if err != nil {
			return res, fmt.Errorf("embedding %s: %w", f.RelPath, err)
		}

		err = col.AddDocument(ctx, chromem.Document{
			ID:        f.RelPath,
			Content:   doc.Text,
			Embedding: vec,
			Metadata: metadataToMap(Metadata{
				Source:      f.RelPath,
				Format:      string(f.Format),
				ContentHash: f.ContentHash,
				Bytes:       f.Size,
				IngestedAt:  time.Now().UTC(),
			}),
		})
		if err != nil {
			return res, fmt.Errorf("adding %s: %w", f.RelPath, err)
		}
		res.Added = append(res.Added, f.RelPath)
		res.vectorSize = len(vec)
		slog.Debug("ingested document", "id", f.RelPath, "chars", len(doc.Text))
	}
	if s.progress != nil {
		s.progress(len(files), len(files), "")
	}
	return res, nil
}

// storedVectorSize reads the embedding length of the first record in col
// whose ID is a current source file. It returns 0 when none is found.
func (s *Store) storedVectorSize(ctx context.Context, col *chromem.Collection) int {
	files, err := s.scan()
	if err != nil {
		return 0
	}
	for _, f := range files {
		if doc, err := col.GetByID(ctx, f.RelPath); err == nil && len(doc.Embedding) > 0 {
			return len(doc.Embedding)
		}
	}
	return 0
}

// export writes db next to the persisted file and returns the temp path.
func (s *Store) export(db *chromem.DB) (string, error) {
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	tmp := s.Path() + ".tmp"
	if err := db.ExportToFile(tmp, true, "", s.opts.Collection); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("export collection: %w", err)
	}
	return tmp, nil
}

// persist atomically replaces the persisted file with db's contents.
func (s *Store) persist(db *chromem.DB) error {
	tmp, err := s.export(db)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.Path(), err)
	}
	return nil
}

// Query embeds text and returns the k most similar records, most similar
// first. An empty store or blank query yields an empty Retrieval.
func (s *Store) Query(ctx context.Context, text string, k int) (*Retrieval, error) {
	if text == "" || k <= 0 || s.Count() == 0 {
		return &Retrieval{}, nil
	}

	vec, err := embeddings.EmbedText(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	results, err := queryAll(ctx, s.col, vec, k)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return newRetrieval(results), nil
}

// IDs returns the IDs of all records, sorted.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.col.Count()
	if n == 0 {
		return nil, nil
	}
	// chromem-go has no listing call; a query for every record with any
	// vector of the stored size returns them all.
	size := s.vectorSize
	if size == 0 {
		size = s.embedder.Dimensions()
	}
	ones := make([]float32, size)
	for i := range ones {
		ones[i] = 1
	}
	results, err := queryAll(ctx, s.col, ones, n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Record.ID
	}
	sort.Strings(ids)
	return ids, nil
}

func queryAll(ctx context.Context, col *chromem.Collection, vec []float32, k int) ([]Result, error) {
	// chromem-go requires nResults <= collection size.
	if count := col.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}
	found, err := col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]Result, len(found))
	for i, r := range found {
		results[i] = Result{
			Record: Record{
				ID:        r.ID,
				Text:      r.Content,
				Embedding: r.Embedding,
				Metadata:  mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	return results, nil
}

// metadataToMap converts Metadata to a flat map[string]string for chromem.
func metadataToMap(m Metadata) map[string]string {
	return map[string]string{
		"source":       m.Source,
		"format":       m.Format,
		"content_hash": m.ContentHash,
		"bytes":        strconv.FormatInt(m.Bytes, 10),
		"ingested_at":  m.IngestedAt.Format(time.RFC3339),
	}
}

// mapToMetadata converts a flat map[string]string back to Metadata.
func mapToMetadata(m map[string]string) Metadata {
	size, _ := strconv.ParseInt(m["bytes"], 10, 64)
	ingestedAt, _ := time.Parse(time.RFC3339, m["ingested_at"])
	return Metadata{
		Source:      m["source"],
		Format:      m["format"],
		ContentHash: m["content_hash"],
		Bytes:       size,
		IngestedAt:  ingestedAt,
	}
}
