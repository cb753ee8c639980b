package api

import (
	"net/http"

	"github.com/GianDevelops/corex-portal/internal/auth"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// statusFor maps a workflow error kind to an HTTP status
func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindValidation:
		return http.StatusUnprocessableEntity
	case workflow.KindPermission:
		return http.StatusForbidden
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindTimeout:
		return http.StatusGatewayTimeout
	case workflow.KindPersistence, workflow.KindAsset, workflow.KindNotification:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Infrastructure causes are logged, never returned.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	kind := workflow.KindOf(err)
	status := statusFor(kind)

	event := log.Warn()
	if status >= 500 {
		event = log.Error()
	}
	event.Err(err).Str("kind", string(kind)).Str("path", c.Request.URL.Path).Msg("Request failed")

	body := gin.H{"error": workflow.PublicMessage(err)}
	if kind != "" {
		body["kind"] = kind
	}
	c.JSON(status, body)
}

// requireDesigner rejects clients
func requireDesigner() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := auth.ActorFrom(c)
		if actor.Role != models.RoleDesigner {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "designers only", "kind": workflow.KindPermission})
			return
		}
		c.Next()
	}
}

// mustActor returns the authenticated actor; the auth middleware guarantees one
func mustActor(c *gin.Context) models.Actor {
	actor, _ := auth.ActorFrom(c)
	return actor
}

// postID returns the canonical form of the :id path parameter. Anything that
// is not a UUID names no post, so it is answered with 404 right here.
func postID(c *gin.Context, log zerolog.Logger) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, log, workflow.NotFound("lookup_post", "post not found"))
		return "", false
	}
	return id.String(), true
}
