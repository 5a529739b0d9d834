package indexread

import (
	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/internal/observability"
	"github.com/granitedb/granite/internal/part"
)

// ChunkGenerator is a single-pass pull iterator producing one chunk per
// part. Each pull materializes every projected column for the current part
// synchronously; mark files are loaded inline on the pulling goroutine.
type ChunkGenerator struct {
	parts  []*part.Part
	schema []RequestedColumn
	cache  *marks.Cache
	stats  *observability.ReadStats
	idx    int
}

// NewChunkGenerator creates a generator over the filtered part list. The
// part order is preserved as given.
func NewChunkGenerator(parts []*part.Part, schema []RequestedColumn, cache *marks.Cache, stats *observability.ReadStats) *ChunkGenerator {
	return &ChunkGenerator{parts: parts, schema: schema, cache: cache, stats: stats}
}

// Schema returns the generator's resolved projection.
func (g *ChunkGenerator) Schema() []RequestedColumn { return g.schema }

// Stats returns the read's counters.
func (g *ChunkGenerator) Stats() *observability.ReadStats { return g.stats }

// Next emits the chunk for the next part, or (nil, nil) once all parts are
// exhausted. A part with zero granules still yields its (zero-height) chunk.
func (g *ChunkGenerator) Next() (*column.Chunk, error) {
	if g.idx >= len(g.parts) {
		return nil, nil
	}
	p := g.parts[g.idx]
	g.idx++

	pm := &partMarks{part: p, cache: g.cache}
	granules := p.Granularity().MarksCount()

	cols := make([]column.Column, 0, len(g.schema))
	for _, req := range g.schema {
		col, err := materialize(pm, req, g.stats)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	chunk, err := column.NewChunk(cols, granules)
	if err != nil {
		return nil, err
	}
	if g.stats != nil {
		g.stats.ChunksEmitted.Add(1)
		g.stats.RowsEmitted.Add(int64(granules))
	}
	return chunk, nil
}
