package api

import (
	"net/http"

	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/frontend"
)

// backendsResponse is the JSON response for GET /v1/backends.
type backendsResponse struct {
	Active     frontend.BackendInfo `json:"active"`
	Integrated string               `json:"integrated,omitempty"`
	Schemes    []backend.SchemeInfo `json:"schemes"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	name, _ := backend.Integrated()
	s.writeJSON(w, http.StatusOK, backendsResponse{
		Active:     s.info.Backend,
		Integrated: name,
		Schemes:    backend.Schemes(),
	})
}
