package memoryindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// DB is the narrow slice of *pgx.Conn / *pgxpool.Pool the engine needs.
// Scoping it down from the concrete connection type keeps the engine
// testable against a fake without pulling in a live Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Embedder computes an embedding vector for a batch of text chunks. The
// embedding model itself is an external concern; the engine only needs a
// fixed-dimensionality vector back per input string.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// RecognizedExtensions is the default set of file extensions Sync recurses
// into when given a directory.
var RecognizedExtensions = map[string]bool{
	".md": true, ".txt": true, ".go": true, ".py": true, ".js": true,
	".ts": true, ".json": true, ".yaml": true, ".yml": true,
}

// Engine is the memory index (§4.G): a durable chunk/embedding store with
// hybrid vector + full-text search.
type Engine struct {
	db       DB
	embedder Embedder
	chunkOpt ChunkOptions
	lastSync time.Time
}

// NewEngine builds an Engine. chunkOpt is applied to every index_file /
// index_text call; pass the zero value to use DefaultChunkOptions.
func NewEngine(db DB, embedder Embedder, chunkOpt ChunkOptions) *Engine {
	if chunkOpt.ChunkSizeTokens <= 0 {
		chunkOpt = DefaultChunkOptions
	}
	return &Engine{db: db, embedder: embedder, chunkOpt: chunkOpt}
}

// EnsureSchema creates the files/chunks tables and the pgvector ANN index
// if they do not already exist.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	var filesExists *string
	if err := e.db.QueryRow(ctx, "SELECT to_regclass('public.files')").Scan(&filesExists); err != nil {
		return fmt.Errorf("memoryindex: check files table: %w", err)
	}
	if filesExists == nil || *filesExists == "" {
		if _, err := e.db.Exec(ctx, `
			CREATE TABLE files (
				path TEXT PRIMARY KEY,
				hash TEXT NOT NULL,
				mtime TIMESTAMPTZ NOT NULL,
				size BIGINT NOT NULL,
				source TEXT NOT NULL,
				indexed_at TIMESTAMPTZ NOT NULL
			)`); err != nil {
			return fmt.Errorf("memoryindex: create files table: %w", err)
		}
	}

	var chunksExists *string
	if err := e.db.QueryRow(ctx, "SELECT to_regclass('public.chunks')").Scan(&chunksExists); err != nil {
		return fmt.Errorf("memoryindex: check chunks table: %w", err)
	}
	if chunksExists == nil || *chunksExists == "" {
		if _, err := e.db.Exec(ctx, fmt.Sprintf(`
			CREATE TABLE chunks (
				id SERIAL PRIMARY KEY,
				path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
				source TEXT NOT NULL,
				start_line INT NOT NULL,
				end_line INT NOT NULL,
				hash TEXT NOT NULL,
				text TEXT NOT NULL,
				embedding vector(%d),
				updated_at TIMESTAMPTZ NOT NULL
			)`, e.embedder.Dim())); err != nil {
			return fmt.Errorf("memoryindex: create chunks table: %w", err)
		}
		if _, err := e.db.Exec(ctx, `
			CREATE INDEX chunks_embedding_idx ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`); err != nil {
			log.Warn().Err(err).Msg("memoryindex_ann_index_create_failed")
		}
		if _, err := e.db.Exec(ctx, `
			CREATE INDEX chunks_text_fts_idx ON chunks
			USING gin (to_tsvector('english', text))`); err != nil {
			log.Warn().Err(err).Msg("memoryindex_fts_index_create_failed")
		}
	}
	return nil
}

// IndexFile reads path, hashes its contents, and re-chunks/re-embeds it
// only if the hash changed since the last index. Returns the chunk count
// written (0 if the file was already up to date).
func (e *Engine) IndexFile(ctx context.Context, path string, source model.ChunkSource) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("memoryindex: read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("memoryindex: stat %s: %w", path, err)
	}
	return e.indexContent(ctx, path, string(raw), source, info.ModTime(), info.Size())
}

// IndexText indexes an in-memory blob under a logical path, with a
// synthetic size and the current time as mtime.
func (e *Engine) IndexText(ctx context.Context, text, path string, source model.ChunkSource) (int, error) {
	return e.indexContent(ctx, path, text, source, time.Now().UTC(), int64(len(text)))
}

func (e *Engine) indexContent(ctx context.Context, path, text string, source model.ChunkSource, mtime time.Time, size int64) (int, error) {
	hash := ContentHash(text)

	var existingHash *string
	if err := e.db.QueryRow(ctx, `SELECT hash FROM files WHERE path = $1`, path).Scan(&existingHash); err == nil {
		if existingHash != nil && *existingHash == hash {
			return 0, nil
		}
	}

	chunks := ChunkText(text, path, source, e.chunkOpt)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("memoryindex: embed %s: %w", path, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("memoryindex: embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("memoryindex: begin index tx for %s: %w", path, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE path = $1`, path); err != nil {
		return 0, fmt.Errorf("memoryindex: clear old chunks for %s: %w", path, err)
	}

	now := time.Now().UTC()
	for i, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (path, source, start_line, end_line, hash, text, embedding, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.Path, string(c.Source), c.StartLine, c.EndLine, c.Hash, c.Text, pgvector.NewVector(embeddings[i]), now); err != nil {
			return 0, fmt.Errorf("memoryindex: insert chunk for %s: %w", path, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO files (path, hash, mtime, size, source, indexed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (path) DO UPDATE SET hash=$2, mtime=$3, size=$4, source=$5, indexed_at=$6`,
		path, hash, mtime, size, string(source), now); err != nil {
		return 0, fmt.Errorf("memoryindex: upsert file record for %s: %w", path, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("memoryindex: commit index tx for %s: %w", path, err)
	}

	return len(chunks), nil
}

// Get returns the file's current text: the on-disk file if it still
// exists, otherwise a reconstruction from stored chunks ordered by
// start_line. Returns ("", false, nil) if neither is available.
func (e *Engine) Get(ctx context.Context, path string) (string, bool, error) {
	if raw, err := os.ReadFile(path); err == nil {
		return string(raw), true, nil
	}

	rows, err := e.db.Query(ctx, `SELECT text FROM chunks WHERE path = $1 ORDER BY start_line ASC`, path)
	if err != nil {
		return "", false, fmt.Errorf("memoryindex: reconstruct %s: %w", path, err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return "", false, fmt.Errorf("memoryindex: scan chunk for %s: %w", path, err)
		}
		parts = append(parts, text)
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}
	if len(parts) == 0 {
		return "", false, nil
	}
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += "\n"
		}
		joined += p
	}
	return joined, true, nil
}

// Sync indexes every regular file in paths, and recursively indexes every
// recognized-extension file under every directory in paths. Returns the
// count of files actually (re-)indexed.
func (e *Engine) Sync(ctx context.Context, paths []string, source model.ChunkSource) (int, error) {
	synced := 0
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return synced, fmt.Errorf("memoryindex: stat %s: %w", p, err)
		}
		if !info.IsDir() {
			n, err := e.IndexFile(ctx, p, source)
			if err != nil {
				return synced, err
			}
			if n > 0 {
				synced++
			}
			continue
		}
		err = filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if !RecognizedExtensions[filepath.Ext(path)] {
				return nil
			}
			n, ferr := e.IndexFile(ctx, path, source)
			if ferr != nil {
				return ferr
			}
			if n > 0 {
				synced++
			}
			return nil
		})
		if err != nil {
			return synced, fmt.Errorf("memoryindex: walk %s: %w", p, err)
		}
	}
	e.lastSync = time.Now().UTC()
	return synced, nil
}

// Stats summarizes the current index state.
func (e *Engine) Stats(ctx context.Context) (model.IndexStats, error) {
	stats := model.IndexStats{PerSource: make(map[string]int), LastSync: e.lastSync}

	if err := e.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&stats.FileCount); err != nil {
		return stats, fmt.Errorf("memoryindex: count files: %w", err)
	}
	if err := e.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return stats, fmt.Errorf("memoryindex: count chunks: %w", err)
	}

	rows, err := e.db.Query(ctx, `SELECT source, COUNT(*) FROM files GROUP BY source`)
	if err != nil {
		return stats, fmt.Errorf("memoryindex: per-source breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var count int
		if err := rows.Scan(&src, &count); err != nil {
			return stats, err
		}
		stats.PerSource[src] = count
	}

	if err := e.db.QueryRow(ctx, `SELECT COALESCE(SUM(pg_column_size(text) + pg_column_size(embedding)), 0) FROM chunks`).Scan(&stats.IndexBytes); err != nil {
		return stats, fmt.Errorf("memoryindex: index size: %w", err)
	}
	return stats, nil
}
