package api

import (
	"net/http"

	"github.com/seantiz/mori/internal/model"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Operators   int            `json:"operators"`
	Tensors     int            `json:"tensors"`
	ByStatus    map[string]int `json:"by_status"`
	DeviceBytes uint64         `json:"device_bytes"`
	HostBytes   uint64         `json:"host_bytes"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{ByStatus: make(map[string]int)}
	for _, op := range s.statuses.Snapshot() {
		resp.Operators++
		for _, ts := range op.Tensors {
			resp.Tensors++
			resp.ByStatus[ts.Status.String()]++
			if ts.Status.OnDevice() {
				resp.DeviceBytes += ts.Size
			}
			if ts.Status == model.StatusHost || ts.Status == model.StatusCoexist {
				resp.HostBytes += ts.Size
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
