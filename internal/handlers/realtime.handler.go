package handlers

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/fasthttp/router"

	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/prom"
)

const (
	// eventBuffer absorbs bursts; a stream that cannot keep up drops
	// events rather than blocking the bus dispatcher.
	eventBuffer       = 64
	heartbeatInterval = 30 * time.Second
)

// EventSource subscribes a callback to one campaign's update feed and
// returns an unsubscribe func.
type EventSource interface {
	SubscribeCampaign(campaignID int64, cb func(pubsub.Event)) func()
}

type RealtimeHandler struct {
	source EventSource
}

func RegisterRealtimeRoutes(e *router.Group, h *RealtimeHandler) {
	e.GET("/realtime/campaigns/{campaignId}", h.StreamCampaign)
}

func NewRealtimeHandler(source EventSource) *RealtimeHandler {
	return &RealtimeHandler{source: source}
}

// StreamCampaign serves a server-sent-event stream of one campaign's
// progress. The first frame is always a synthetic connected event.
func (h *RealtimeHandler) StreamCampaign(ctx *xhttp.RequestCtx) {
	campaignID, err := pathInt64(ctx, "campaignId")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	events := make(chan pubsub.Event, eventBuffer)
	unsubscribe := h.source.SubscribeCampaign(campaignID, func(ev pubsub.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("realtime stream lagging, dropping event",
				"campaign_id", campaignID, "status", ev.Status)
		}
	})

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")

	connected := pubsub.Event{
		Key:       "connected",
		Status:    "connected",
		Timestamp: time.Now().UTC(),
	}
	connected.Data, _ = json.Marshal(pubsub.ConnectedData{Type: "connected", CampaignID: campaignID})

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		prom.AddRealtimeConnections("campaign", 1)
		defer prom.AddRealtimeConnections("campaign", -1)
		defer unsubscribe()

		if err := writeSSE(w, connected); err != nil {
			return
		}

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case ev := <-events:
				if err := writeSSE(w, ev); err != nil {
					return
				}
			case <-heartbeat.C:
				// Comment frame keeps intermediaries from closing
				// an otherwise idle connection.
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

func writeSSE(w *bufio.Writer, ev pubsub.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
