package memoryindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/pgvector/pgvector-go"
)

// SearchOptions carries a single search(...) call's parameters, per §4.G.
type SearchOptions struct {
	MaxResults   int
	MinScore     float64
	Sources      []model.ChunkSource
	VectorWeight float64
	TextWeight   float64
	SnippetLen   int
}

type candidate struct {
	chunk    model.Chunk
	vecScore float64
	hasVec   bool
	txtScore float64
	hasTxt   bool
}

// Search performs the hybrid vector + full-text search described in §4.G:
// up to 2*MaxResults candidates from each side, combined per chunk id as
// combined = vec*vectorWeight + text*textWeight (missing side counts 0),
// filtered by MinScore, and returned as the top MaxResults hits.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]model.SearchHit, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.SnippetLen <= 0 {
		opts.SnippetLen = 200
	}
	fanout := opts.MaxResults * 2

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("memoryindex: embed query: %w", err)
	}
	queryVec := vectors[0]

	byID := make(map[int64]*candidate)

	vecHits, err := e.vectorCandidates(ctx, queryVec, fanout, opts.Sources)
	if err != nil {
		return nil, err
	}
	for _, h := range vecHits {
		byID[h.chunk.ID] = &candidate{chunk: h.chunk, vecScore: h.score, hasVec: true}
	}

	txtHits, err := e.textCandidates(ctx, query, fanout, opts.Sources)
	if err != nil {
		return nil, err
	}
	for _, h := range txtHits {
		if c, ok := byID[h.chunk.ID]; ok {
			c.txtScore = h.score
			c.hasTxt = true
		} else {
			byID[h.chunk.ID] = &candidate{chunk: h.chunk, txtScore: h.score, hasTxt: true}
		}
	}

	queryTerms := tokenize(query)
	var hits []model.SearchHit
	for _, c := range byID {
		combined := combineScore(c.vecScore, c.txtScore, c.hasVec, c.hasTxt, opts.VectorWeight, opts.TextWeight)
		if combined < opts.MinScore {
			continue
		}
		hits = append(hits, model.SearchHit{
			ChunkID:   c.chunk.ID,
			Path:      c.chunk.Path,
			Source:    c.chunk.Source,
			StartLine: c.chunk.StartLine,
			EndLine:   c.chunk.EndLine,
			Score:     combined,
			Snippet:   SelectSnippet(c.chunk.Text, queryTerms, opts.SnippetLen),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > opts.MaxResults {
		hits = hits[:opts.MaxResults]
	}
	return hits, nil
}

type scoredChunk struct {
	chunk model.Chunk
	score float64
}

func (e *Engine) vectorCandidates(ctx context.Context, queryVec []float32, limit int, sources []model.ChunkSource) ([]scoredChunk, error) {
	sql, args := sourceFilteredQuery(`
		SELECT id, path, source, start_line, end_line, text, 1 - (embedding <=> $1) AS sim
		FROM chunks`, "embedding IS NOT NULL", sources, 2)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT %d", limit)

	queryArgs := append([]any{pgvector.NewVector(queryVec)}, args...)
	rows, err := e.db.Query(ctx, sql, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("memoryindex: vector search: %w", err)
	}
	defer rows.Close()

	var out []scoredChunk
	for rows.Next() {
		var c model.Chunk
		var source string
		var sim float64
		if err := rows.Scan(&c.ID, &c.Path, &source, &c.StartLine, &c.EndLine, &c.Text, &sim); err != nil {
			return nil, fmt.Errorf("memoryindex: scan vector hit: %w", err)
		}
		c.Source = model.ChunkSource(source)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		out = append(out, scoredChunk{chunk: c, score: sim})
	}
	return out, rows.Err()
}

func (e *Engine) textCandidates(ctx context.Context, query string, limit int, sources []model.ChunkSource) ([]scoredChunk, error) {
	sql, args := sourceFilteredQuery(`
		SELECT id, path, source, start_line, end_line, text,
		       ts_rank(to_tsvector('english', text), plainto_tsquery('english', $1)) AS rank
		FROM chunks`, "to_tsvector('english', text) @@ plainto_tsquery('english', $1)", sources, 2)
	sql += fmt.Sprintf(" ORDER BY rank DESC LIMIT %d", limit)

	queryArgs := append([]any{query}, args...)
	rows, err := e.db.Query(ctx, sql, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("memoryindex: text search: %w", err)
	}
	defer rows.Close()

	var out []scoredChunk
	for rows.Next() {
		var c model.Chunk
		var source string
		var rank float64
		if err := rows.Scan(&c.ID, &c.Path, &source, &c.StartLine, &c.EndLine, &c.Text, &rank); err != nil {
			return nil, fmt.Errorf("memoryindex: scan text hit: %w", err)
		}
		c.Source = model.ChunkSource(source)
		out = append(out, scoredChunk{chunk: c, score: normalizeRank(rank)})
	}
	return out, rows.Err()
}

// sourceFilteredQuery appends an optional "source = ANY($n)" clause to
// baseWhere (itself already a valid boolean expression), using
// $firstParamIdx as the sources placeholder. Returns the assembled
// "<select> WHERE ..." prefix and the extra args to append after the
// query's own leading args.
func sourceFilteredQuery(selectClause, baseWhere string, sources []model.ChunkSource, firstParamIdx int) (string, []any) {
	where := baseWhere
	var args []any
	if len(sources) > 0 {
		strs := make([]string, len(sources))
		for i, s := range sources {
			strs[i] = string(s)
		}
		where += fmt.Sprintf(" AND source = ANY($%d)", firstParamIdx)
		args = append(args, strs)
	}
	return strings.TrimRight(selectClause, "\n\t ") + " WHERE " + where, args
}
