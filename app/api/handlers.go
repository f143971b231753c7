package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/migration"
)

func NewHandler(baseCtx context.Context, postRepo database.PostRepository, runner RunnerInterface,
	defaultOptions migration.Options) *Handler {
	return &Handler{
		postRepo:       postRepo,
		runner:         runner,
		defaultOptions: defaultOptions,
		baseCtx:        baseCtx,
	}
}

func (h *Handler) GetPost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing post id parameter"})
		return
	}

	post, err := h.postRepo.GetPost(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "post_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not migrated"})
		return
	}

	response := postResponse{
		ID:          post.ID,
		Title:       post.Title,
		Body:        post.Body,
		Excerpt:     post.Excerpt,
		ReadingTime: post.ReadingTime,
		Images:      post.Images,
		UpdatedAt:   post.UpdatedAt.Format(time.RFC3339),
	}
	if !post.PublishedAt.IsZero() {
		publishedAt := post.PublishedAt.Format(time.RFC3339)
		response.PublishedAt = &publishedAt
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if postCount, err := h.postRepo.GetPostCount(c.Request.Context()); err == nil {
		health["posts"] = postCount
	}

	runID, running := h.runner.Running()
	health["run_in_progress"] = running
	if running {
		health["run_id"] = runID
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIGetLatestRun(c *gin.Context) {
	summary, err := h.runner.Latest(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No migration run recorded"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) APIStartRun(c *gin.Context) {
	var request startRunRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	opts := h.defaultOptions
	if request.PageSize != nil {
		opts.PageSize = *request.PageSize
	}
	if request.MaxConcurrency != nil {
		opts.MaxConcurrency = *request.MaxConcurrency
	}
	if request.StartPage != nil {
		opts.StartPage = *request.StartPage
	}

	if opts.PageSize <= 0 || opts.MaxConcurrency <= 0 || opts.StartPage < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size and max_concurrency must be positive, start_page non-negative"})
		return
	}

	runID, err := h.runner.Start(h.baseCtx, opts)
	if errors.Is(err, migration.ErrRunInProgress) {
		current, _ := h.runner.Running()
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Migration run already in progress",
			"run_id": current,
		})
		return
	}
	if err != nil {
		slog.Error("Error starting migration run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start migration run",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Migration run started via API", "run_id", runID,
		"page_size", opts.PageSize, "max_concurrency", opts.MaxConcurrency, "start_page", opts.StartPage)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"run_id":  runID,
		"options": opts,
	})
}
