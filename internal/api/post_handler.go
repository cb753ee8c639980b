package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/GianDevelops/corex-portal/internal/validation"
	"github.com/GianDevelops/corex-portal/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PostHandler handles post and workflow endpoints
type PostHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *PostHandler {
	return &PostHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "post").Logger(),
	}
}

// actionRequest is the optional body of POST /v1/posts/:id/actions/:action
type actionRequest struct {
	Text        string                    `json:"text"`
	Platforms   []string                  `json:"platforms"`
	ScheduledAt *time.Time                `json:"scheduled_at"`
	Edit        *models.UpdatePostRequest `json:"edit"`
}

func filterFrom(c *gin.Context) models.PostFilter {
	archived, _ := strconv.ParseBool(c.Query("archived"))
	if c.Query("view") == "archived" {
		archived = true
	}
	return models.PostFilter{ClientID: c.Query("client_id"), Archived: archived}
}

// List handles GET /v1/posts
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.services.Post.List(c.Request.Context(), mustActor(c), filterFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// Board handles GET /v1/board
func (h *PostHandler) Board(c *gin.Context) {
	board, err := h.services.Post.Board(c.Request.Context(), mustActor(c), filterFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// Create handles POST /v1/posts
func (h *PostHandler) Create(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	detail, err := h.services.Post.Create(c.Request.Context(), mustActor(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// Get handles GET /v1/posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	id, ok := postID(c, h.log)
	if !ok {
		return
	}
	detail, err := h.services.Post.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Edit handles PATCH /v1/posts/:id
func (h *PostHandler) Edit(c *gin.Context) {
	var req models.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if errs := validation.NewValidator().ValidateEdit(&req); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid edit", "kind": workflow.KindValidation, "errors": errs})
		return
	}
	h.perform(c, workflow.Command{Action: workflow.ActionEditContent, Edit: &req}, http.StatusOK)
}

// Delete handles DELETE /v1/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	h.perform(c, workflow.Command{Action: workflow.ActionDelete}, http.StatusNoContent)
}

// AddFeedback handles POST /v1/posts/:id/feedback
func (h *PostHandler) AddFeedback(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	h.perform(c, workflow.Command{Action: workflow.ActionAddFeedback, Text: req.Text}, http.StatusOK)
}

// MarkSeen handles POST /v1/posts/:id/seen
func (h *PostHandler) MarkSeen(c *gin.Context) {
	h.perform(c, workflow.Command{Action: workflow.ActionMarkSeen}, http.StatusOK)
}

// Action handles POST /v1/posts/:id/actions/:action
func (h *PostHandler) Action(c *gin.Context) {
	action, ok := workflow.ParseAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown action", "kind": workflow.KindValidation})
		return
	}
	if action == workflow.ActionUploadMedia || action == workflow.ActionAttachMedia {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "upload files to the media endpoint", "kind": workflow.KindValidation})
		return
	}

	var req actionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	status := http.StatusOK
	if action == workflow.ActionDelete {
		status = http.StatusNoContent
	}
	h.perform(c, workflow.Command{
		Action:      action,
		Text:        req.Text,
		Platforms:   req.Platforms,
		ScheduledAt: req.ScheduledAt,
		Edit:        req.Edit,
	}, status)
}

func (h *PostHandler) perform(c *gin.Context, cmd workflow.Command, status int) {
	id, ok := postID(c, h.log)
	if !ok {
		return
	}
	detail, err := h.services.Workflow.Perform(c.Request.Context(), mustActor(c), id, cmd)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if detail == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(status, detail)
}

// UploadMedia handles POST /v1/posts/:id/media (multipart, field "files")
func (h *PostHandler) UploadMedia(c *gin.Context) {
	id, ok := postID(c, h.log)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Storage.MaxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "upload too large, max size is " + strconv.FormatInt(h.cfg.Storage.MaxUploadSize/(1024*1024), 10) + " MB",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files is required"})
		return
	}
	defer form.RemoveAll()

	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "at least one media item is required", "kind": workflow.KindValidation})
		return
	}

	files := make([]models.MediaUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, mediaUpload(fh))
	}

	detail, err := h.services.Workflow.UploadMedia(c.Request.Context(), mustActor(c), id, files)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func mediaUpload(fh *multipart.FileHeader) models.MediaUpload {
	return models.MediaUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// ListClients handles GET /v1/clients
func (h *PostHandler) ListClients(c *gin.Context) {
	clients, err := h.services.User.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}
