package handlers

import (
	"github.com/fasthttp/router"

	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
)

type HealthChecker interface {
	Check() error
}

type HealthHandler struct {
	checks []HealthChecker
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks ...HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	for _, c := range h.checks {
		if err := c.Check(); err != nil {
			writeError(ctx, 500, err.Error())
			return
		}
	}
	writeJSON(ctx, 200, map[string]string{"status": "ok"})
}
