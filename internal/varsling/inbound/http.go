package inbound

import (
	"errors"
	"net/http"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/router"
)

// Liveness is anything that can tell whether it still makes progress.
type Liveness interface {
	IsAlive() bool
}

type HTTPEndpoint struct {
	uc     uc
	probes []Liveness
}

type probeResponse struct {
	Status string `json:"status"`
}

// RegisterHTTPEndpoint mounts the platform probes. The service is alive while
// every probe is.
func RegisterHTTPEndpoint(r *router.Router, uc uc, probes ...Liveness) {
	end := &HTTPEndpoint{uc: uc, probes: probes}

	r.GET("/internal/isAlive", end.IsAlive)
	r.GET("/internal/isReady", end.IsReady)
}

func (h *HTTPEndpoint) IsAlive(*http.Request) (any, error) {
	for _, p := range h.probes {
		if !p.IsAlive() {
			return nil, goerror.NewServer(errors.New("background loop is not running"))
		}
	}
	return probeResponse{Status: "alive"}, nil
}

func (h *HTTPEndpoint) IsReady(r *http.Request) (any, error) {
	if err := h.uc.Ready(r.Context()); err != nil {
		return nil, err
	}
	return probeResponse{Status: "ready"}, nil
}
