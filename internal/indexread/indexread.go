// Package indexread materializes the sparse primary index of a part-based
// table as a relation: one row per granule, carrying the primary-key values
// recorded at that granule, synthetic part metadata, and optionally the
// per-column mark bookmarks used to seek into the part's physical streams.
package indexread

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/granitedb/granite/internal/access"
	"github.com/granitedb/granite/internal/catalog"
	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/internal/observability"
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/internal/query/parser"
	"github.com/granitedb/granite/internal/table"
	"github.com/granitedb/granite/pkg/types"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// Options configures an IndexTable.
type Options struct {
	// WithMarks exposes one <column>.mark pseudo-column per storage column.
	WithMarks bool

	// MarkCache is the shared mark loader cache. A private cache is
	// created when nil.
	MarkCache *marks.Cache

	// Authorizer gates reads. Defaults to access.AllowAll.
	Authorizer access.Authorizer
}

// IndexTable is the virtual table over a source table's primary index. The
// part list and primary-key schema are captured once at construction; later
// changes to the source table are not reflected.
type IndexTable struct {
	source     string
	parts      []*part.Part
	primaryKey types.Schema
	resolver   *Resolver
	cache      *marks.Cache
	auth       access.Authorizer
	log        zerolog.Logger
}

// New builds an IndexTable over src, snapshotting its parts and primary key.
// Only part-based tables are accepted.
func New(ctx context.Context, src *table.Table, opts Options) (*IndexTable, error) {
	if src.Engine() != catalog.EngineMergeTree {
		return nil, gerrors.Newf(gerrors.ErrCategoryValidation, gerrors.CodeBadSourceTable,
			"table %s has engine %s, only %s tables have a parts index",
			src.Name(), src.Engine(), catalog.EngineMergeTree)
	}

	pk, err := src.PrimaryKey()
	if err != nil {
		return nil, err
	}
	parts, err := src.Parts(ctx)
	if err != nil {
		return nil, err
	}

	cache := opts.MarkCache
	if cache == nil {
		cache = marks.NewCache(0)
	}
	auth := opts.Authorizer
	if auth == nil {
		auth = access.AllowAll{}
	}

	return &IndexTable{
		source:     src.Name(),
		parts:      parts,
		primaryKey: pk,
		resolver:   NewResolver(pk, src.Schema(), opts.WithMarks),
		cache:      cache,
		auth:       auth,
		log:        logging.Component("indexread"),
	}, nil
}

// Schema returns the index table's full logical schema.
func (t *IndexTable) Schema() types.Schema {
	return t.resolver.Schema()
}

// SourceTable returns the name of the table whose index is exposed.
func (t *IndexTable) SourceTable() string { return t.source }

// Read resolves the projection, authorizes it against the underlying storage
// columns, prunes parts by the filter expression, and returns a pull
// generator over the surviving parts. All name resolution and authorization
// happens here, before any file is opened.
func (t *IndexTable) Read(ctx context.Context, columns []string, filterExpr parser.Expression) (*ChunkGenerator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved, err := t.resolver.Resolve(columns)
	if err != nil {
		return nil, err
	}
	if err := t.auth.CheckSelect(t.source, t.resolver.Underlying(resolved)); err != nil {
		return nil, err
	}

	filtered, err := FilterParts(t.parts, filterExpr)
	if err != nil {
		return nil, err
	}

	stats := observability.NewReadStats()
	stats.PartsScanned.Add(int64(len(filtered)))
	stats.PartsPruned.Add(int64(len(t.parts) - len(filtered)))

	t.log.Debug().
		Str("table", t.source).
		Int("columns", len(resolved)).
		Int("parts", len(filtered)).
		Int("parts_pruned", len(t.parts)-len(filtered)).
		Msg("index read")

	return NewChunkGenerator(filtered, resolved, t.cache, stats), nil
}
