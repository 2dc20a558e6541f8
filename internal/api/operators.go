package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/status"
)

// listOperatorsResponse is the JSON response for GET /v1/operators.
type listOperatorsResponse struct {
	Operators []model.OperatorStatus `json:"operators"`
	Total     int                    `json:"total"`
}

func (s *Server) handleListOperators(w http.ResponseWriter, _ *http.Request) {
	ops := s.statuses.Snapshot()
	if ops == nil {
		ops = []model.OperatorStatus{}
	}
	s.writeJSON(w, http.StatusOK, listOperatorsResponse{Operators: ops, Total: len(ops)})
}

func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	op, err := s.statuses.Operator(name)
	if errors.Is(err, status.ErrNotRegistered) {
		s.writeError(w, http.StatusNotFound, "operator not found")
		return
	}
	if err != nil {
		s.logger.Error("get operator", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get operator")
		return
	}
	s.writeJSON(w, http.StatusOK, op)
}
