package handler

import (
	"net/http"
	"sync"

	"github.com/plodoki/pakd/internal/openapi"
)

// OpenAPIHandler serves the generated OpenAPI document for pakd's API. The
// spec is static per process, so it is built once on first request.
type OpenAPIHandler struct {
	version string

	once sync.Once
	doc  []byte
	err  error
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(version string) *OpenAPIHandler {
	return &OpenAPIHandler{version: version}
}

// ServeSpec returns the OpenAPI 3.1 document as JSON.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		doc := openapi.GenerateSpec("/", h.version)
		h.doc, h.err = doc.MarshalJSON()
	})
	if h.err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate OpenAPI spec")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.doc)
}
