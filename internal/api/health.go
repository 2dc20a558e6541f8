package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ID: s.info.ID})
}
