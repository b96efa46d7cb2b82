// Package vectorstore persists embedded chunks in one SQLite file per
// document and ranks them by cosine similarity.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/ragbot/internal/embedding"
	"github.com/mwiater/ragbot/internal/logging"
)

const (
	// FileName is the database file inside an index directory.
	FileName = "index.sqlite"

	embedBatchSize = 128
)

var (
	// ErrNoIndex reports a directory without a usable index.
	ErrNoIndex = errors.New("no valid index")
	// ErrEmptyChunks reports an attempt to create an index with nothing in it.
	ErrEmptyChunks = errors.New("cannot create index from zero chunks")
)

const schema = `
CREATE TABLE chunks (
	id        INTEGER PRIMARY KEY,
	page      INTEGER NOT NULL,
	sequence  INTEGER NOT NULL,
	content   TEXT    NOT NULL,
	embedding BLOB    NOT NULL
);
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Chunk is a segment of document text with its location.
type Chunk struct {
	Text     string `json:"text"`
	Page     int    `json:"page"`
	Sequence int    `json:"sequence"`
}

// Result is a chunk ranked against a query.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Store manages index directories under a root folder.
type Store struct {
	root string
}

// Open returns a Store rooted at root. Nothing is created until an index is.
func Open(root string) *Store {
	registerFunctions()
	return &Store{root: root}
}

// Dir returns the directory for the index called name.
func (s *Store) Dir(name string) string { return filepath.Join(s.root, name) }

// Exists reports whether a directory for name is present.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.Dir(name))
	return err == nil && info.IsDir()
}

// Remove deletes the on-disk index called name.
func (s *Store) Remove(name string) error {
	if err := os.RemoveAll(s.Dir(name)); err != nil {
		return fmt.Errorf("remove index %q: %w", name, err)
	}
	return nil
}

// IndexName derives an index name from a document path: the base file name
// without its extension.
func IndexName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}

// Create embeds chunks and writes them to a new index called name. The file is
// built beside its final location and renamed into place once complete.
func (s *Store) Create(ctx context.Context, name string, chunks []Chunk, emb embedding.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyChunks
	}

	dir := s.Dir(name)
	created := !s.Exists(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	final := filepath.Join(dir, FileName)
	tmp := final + ".tmp"
	_ = os.Remove(tmp)

	cleanup := func() {
		_ = os.Remove(tmp)
		if created {
			_ = os.RemoveAll(dir)
		}
	}

	dim, err := writeIndex(ctx, tmp, chunks, emb)
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := os.Rename(tmp, final); err != nil {
		cleanup()
		return nil, fmt.Errorf("commit index: %w", err)
	}
	logging.LogEvent("[INDEX] Created %s with %d chunks (dimension %d)", dir, len(chunks), dim)
	return s.Load(ctx, name, emb)
}

func writeIndex(ctx context.Context, path string, chunks []Chunk, emb embedding.Embedder) (int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("open index database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("create index schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(page, sequence, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	dim := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := emb.EmbedMany(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start+1, end, err)
		}
		if len(vecs) != len(texts) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		for i, vec := range vecs {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim || dim == 0 {
				return 0, fmt.Errorf("%w: chunk %d has %d values, want %d", embedding.ErrDimensionMismatch, start+i+1, len(vec), dim)
			}
			c := chunks[start+i]
			if _, err := stmt.ExecContext(ctx, c.Page, c.Sequence, c.Text, EncodeEmbedding(vec)); err != nil {
				return 0, fmt.Errorf("insert chunk %d: %w", start+i+1, err)
			}
		}
		logging.LogEvent("[INDEX] Embedded %d/%d chunks", end, len(chunks))
	}

	meta := map[string]string{
		"model":      emb.Model(),
		"provider":   emb.Provider(),
		"dimension":  strconv.Itoa(dim),
		"chunks":     strconv.Itoa(len(chunks)),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES (?, ?)`, k, v); err != nil {
			return 0, fmt.Errorf("write index metadata: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit index transaction: %w", err)
	}
	return dim, nil
}

// Load opens the existing index called name without re-embedding anything.
func (s *Store) Load(ctx context.Context, name string, emb embedding.Embedder) (*Index, error) {
	dir := s.Dir(name)
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoIndex, dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	idx := &Index{name: name, dir: dir, db: db, emb: emb}
	if err := idx.readMeta(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if want := emb.Dimension(); want > 0 && want != idx.dim {
		_ = db.Close()
		return nil, fmt.Errorf("%w: index %s was built with dimension %d, embedder produces %d", embedding.ErrDimensionMismatch, dir, idx.dim, want)
	}
	if idx.model != emb.Model() || idx.provider != emb.Provider() {
		_ = db.Close()
		return nil, fmt.Errorf("%w: index %s was built with %s/%s, embedder is %s/%s",
			embedding.ErrModelMismatch, dir, idx.provider, idx.model, emb.Provider(), emb.Model())
	}
	return idx, nil
}

// Index is an opened, read-only document index. It is safe for concurrent use.
type Index struct {
	name     string
	dir      string
	db       *sql.DB
	emb      embedding.Embedder
	dim      int
	count    int
	model    string
	provider string
}

func (i *Index) readMeta(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrNoIndex, i.dir, err)
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("read index metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}

	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil || dim <= 0 {
		return fmt.Errorf("%w at %s: missing dimension", ErrNoIndex, i.dir)
	}
	i.dim = dim
	i.model = meta["model"]
	i.provider = meta["provider"]

	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&i.count); err != nil {
		return fmt.Errorf("%w at %s: %v", ErrNoIndex, i.dir, err)
	}
	return nil
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Dir returns the directory holding the index.
func (i *Index) Dir() string { return i.dir }

// Len returns the number of stored chunks.
func (i *Index) Len() int { return i.count }

// Dimension returns the stored vector length.
func (i *Index) Dimension() int { return i.dim }

// Model returns the embedding model recorded at creation.
func (i *Index) Model() string { return i.model }

// Provider returns the embedding backend recorded at creation.
func (i *Index) Provider() string { return i.provider }

// SimilaritySearch embeds query and returns up to k chunks, most similar
// first. Equal scores keep insertion order.
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]Result, error) {
	vec, err := i.emb.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.SearchVector(ctx, vec, k)
}

// SearchVector ranks stored chunks against vec.
func (i *Index) SearchVector(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 || i.count == 0 {
		return nil, nil
	}
	if len(vec) != i.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", embedding.ErrDimensionMismatch, len(vec), i.dim)
	}
	rows, err := i.db.QueryContext(ctx,
		`SELECT page, sequence, content, vec_cosine(embedding, ?) AS score
		   FROM chunks
		  ORDER BY score DESC, id ASC
		  LIMIT ?`, EncodeEmbedding(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Chunk.Page, &r.Chunk.Sequence, &r.Chunk.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return out, nil
}

// Chunks returns every stored chunk in insertion order.
func (i *Index) Chunks(ctx context.Context) ([]Chunk, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT page, sequence, content FROM chunks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Page, &c.Sequence, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}
