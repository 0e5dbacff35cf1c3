package handlers

import (
	"github.com/fasthttp/router"

	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
)

// QueueAdmin is the introspection surface one queue exposes.
type QueueAdmin interface {
	Name() string
	GetStats() (*queue.Stats, error)
	CleanCompleted() error
	CleanFailed() error
	Drain() error
}

type QueueHandler struct {
	queues []QueueAdmin
}

func RegisterQueueRoutes(e *router.Group, h *QueueHandler, auth xhttp.MiddlewareFunc) {
	e.GET("/queue/status", auth(h.GetStatus))
	e.DELETE("/queue/status", auth(h.Manage))
}

func NewQueueHandler(queues ...QueueAdmin) *QueueHandler {
	return &QueueHandler{queues: queues}
}

func (h *QueueHandler) GetStatus(ctx *xhttp.RequestCtx) {
	out := make(map[string]*queue.Stats, len(h.queues))
	for _, q := range h.queues {
		stats, err := q.GetStats()
		if err != nil {
			writeError(ctx, 500, "failed to read stats for queue "+q.Name()+": "+err.Error())
			return
		}
		out[q.Name()] = stats
	}
	writeJSON(ctx, 200, out)
}

// Manage applies a maintenance action to one queue or, when no queue
// parameter is given, to all of them.
func (h *QueueHandler) Manage(ctx *xhttp.RequestCtx) {
	action := string(ctx.QueryArgs().Peek("action"))
	target := string(ctx.QueryArgs().Peek("queue"))

	var apply func(QueueAdmin) error
	switch action {
	case "clean-completed":
		apply = QueueAdmin.CleanCompleted
	case "clean-failed":
		apply = QueueAdmin.CleanFailed
	case "drain":
		apply = QueueAdmin.Drain
	default:
		writeError(ctx, 400, "action must be one of clean-completed, clean-failed, drain")
		return
	}

	matched := false
	for _, q := range h.queues {
		if target != "" && q.Name() != target {
			continue
		}
		matched = true
		if err := apply(q); err != nil {
			writeError(ctx, 500, "action "+action+" failed for queue "+q.Name()+": "+err.Error())
			return
		}
	}
	if !matched {
		writeError(ctx, 404, "unknown queue: "+target)
		return
	}
	writeJSON(ctx, 200, map[string]string{"action": action, "status": "ok"})
}
