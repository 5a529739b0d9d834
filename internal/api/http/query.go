package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/indexread"
	"github.com/granitedb/granite/internal/observability"
	"github.com/granitedb/granite/internal/query/filter"
	"github.com/granitedb/granite/internal/query/parser"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// IndexTableName is the SQL name the parts index answers to.
const IndexTableName = "system.parts_index"

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse carries the result rows and read statistics.
type QueryResponse struct {
	Columns   []string               `json:"columns"`
	Rows      [][]interface{}        `json:"rows"`
	Stats     observability.Snapshot `json:"stats"`
	RequestID string                 `json:"request_id"`
}

// QueryHandler serves SELECT queries over the parts index.
type QueryHandler struct {
	index *indexread.IndexTable
}

// NewQueryHandler creates a query handler over an index table.
func NewQueryHandler(index *indexread.IndexTable) *QueryHandler {
	return &QueryHandler{index: index}
}

// ServeHTTP handles POST /v1/query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			gerrors.NewValidationError(gerrors.CodeInvalidConfig, "method not allowed"), requestID)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			gerrors.NewQueryError(gerrors.CodeParseError, "invalid request body: "+err.Error()), requestID)
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest,
			gerrors.NewQueryError(gerrors.CodeParseError, "sql is required"), requestID)
		return
	}

	stmt, err := parser.Parse(req.SQL)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			gerrors.NewQueryError(gerrors.CodeParseError, err.Error()), requestID)
		return
	}
	sel, ok := stmt.(*parser.SelectStatement)
	if !ok {
		writeError(w, http.StatusBadRequest,
			gerrors.NewQueryError(gerrors.CodeUnsupportedSyntax, "only SELECT statements are supported"), requestID)
		return
	}
	if sel.From != IndexTableName {
		writeError(w, http.StatusBadRequest,
			gerrors.NewQueryError(gerrors.CodeTableNotFound, "unknown table "+sel.From), requestID)
		return
	}

	columns := sel.Columns
	if len(columns) == 1 && columns[0] == "*" {
		columns = h.index.Schema().Names()
	}

	gen, err := h.index.Read(r.Context(), columns, sel.Where)
	if err != nil {
		writeError(w, statusForError(err), err, requestID)
		return
	}

	rows, err := collectRows(gen, columns, sel.Where, sel.Limit)
	if err != nil {
		writeError(w, statusForError(err), err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Columns:   columns,
		Rows:      rows,
		Stats:     gen.Stats().Snapshot(),
		RequestID: requestID,
	})
}

// collectRows drains the generator, applying the residual WHERE filter over
// the materialized columns and the LIMIT across chunks. Part pruning already
// happened inside the read; this pass filters individual granule rows.
func collectRows(gen *indexread.ChunkGenerator, names []string, where parser.Expression, limit *int64) ([][]interface{}, error) {
	rows := [][]interface{}{}
	for {
		chunk, err := gen.Next()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return rows, nil
		}

		keep, err := chunkRows(chunk, names, where)
		if err != nil {
			return nil, err
		}
		for _, i := range keep {
			rows = append(rows, chunk.Row(i))
			if limit != nil && int64(len(rows)) >= *limit {
				return rows, nil
			}
		}
	}
}

func chunkRows(chunk *column.Chunk, names []string, where parser.Expression) ([]int, error) {
	if where == nil {
		keep := make([]int, chunk.Rows())
		for i := range keep {
			keep[i] = i
		}
		return keep, nil
	}

	block := column.NewBlock()
	for i, name := range names {
		if err := block.Add(name, chunk.ColumnAt(i)); err != nil {
			return nil, err
		}
	}
	return filter.Rows(block, where)
}
