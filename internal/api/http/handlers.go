package http

import (
	"net/http"

	"github.com/granitedb/granite/internal/indexread"
)

// SchemaColumn is one entry of the schema response.
type SchemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaResponse describes the index table's logical schema.
type SchemaResponse struct {
	Table   string         `json:"table"`
	Source  string         `json:"source_table"`
	Columns []SchemaColumn `json:"columns"`
}

// SchemaHandler serves GET /v1/schema.
type SchemaHandler struct {
	index *indexread.IndexTable
}

// NewSchemaHandler creates a schema handler over an index table.
func NewSchemaHandler(index *indexread.IndexTable) *SchemaHandler {
	return &SchemaHandler{index: index}
}

func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	schema := h.index.Schema()
	cols := make([]SchemaColumn, 0, schema.Len())
	for _, def := range schema {
		cols = append(cols, SchemaColumn{Name: def.Name, Type: def.Type.String()})
	}
	writeJSON(w, http.StatusOK, SchemaResponse{
		Table:   IndexTableName,
		Source:  h.index.SourceTable(),
		Columns: cols,
	})
}

// HealthHandler serves GET /healthz.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// NewRouter wires the API handlers behind the default middleware chain.
func NewRouter(index *indexread.IndexTable) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/query", NewQueryHandler(index))
	mux.Handle("/v1/schema", NewSchemaHandler(index))
	mux.Handle("/healthz", HealthHandler())
	return DefaultMiddleware()(mux)
}
