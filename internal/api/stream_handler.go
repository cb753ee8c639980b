package api

import (
	"io"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/realtime"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// keepAlive stops proxies from closing an idle stream
const keepAlive = 25 * time.Second

// StreamHandler serves the live feed as server-sent events
type StreamHandler struct {
	services *service.Services
	hub      *realtime.Hub
	log      zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(services *service.Services, hub *realtime.Hub, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		services: services,
		hub:      hub,
		log:      log.With().Str("handler", "stream").Logger(),
	}
}

// Stream handles GET /v1/stream?open=<post id>&archived=<bool>&client_id=<id>
// Sends the actor's post list as "posts" on connect and again after every
// "change". With open set, the post follows each list as "open", or as
// "open_failed" once it can no longer be shown.
func (h *StreamHandler) Stream(c *gin.Context) {
	actor := mustActor(c)
	ctx := c.Request.Context()
	filter := filterFrom(c)
	open := c.Query("open")

	sub := h.hub.Subscribe(actor)
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"user_id": actor.UserID})
	h.snapshot(c, actor, filter, open)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("change", change)
			h.snapshot(c, actor, filter, open)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
	h.log.Debug().Str("user_id", actor.UserID).Msg("Stream closed")
}

// snapshot re-reads what the client is looking at
func (h *StreamHandler) snapshot(c *gin.Context, actor models.Actor, filter models.PostFilter, open string) {
	ctx := c.Request.Context()

	posts, err := h.services.Post.List(ctx, actor, filter)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", actor.UserID).Msg("Failed to refresh stream posts")
		c.SSEvent("posts_failed", gin.H{"kind": workflow.KindOf(err)})
	} else {
		c.SSEvent("posts", gin.H{"posts": posts, "count": len(posts)})
	}

	if open == "" {
		return
	}
	if _, err := uuid.Parse(open); err != nil {
		c.SSEvent("open_failed", gin.H{"id": open, "kind": workflow.KindNotFound})
		return
	}
	detail, err := h.services.Post.Get(ctx, actor, open)
	if err != nil {
		c.SSEvent("open_failed", gin.H{"id": open, "kind": workflow.KindOf(err)})
		return
	}
	c.SSEvent("open", detail)
}
