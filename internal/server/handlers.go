package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maine/ai_news_digest/internal/snapshot"
)

// Handler обслуживает эндпоинты данных.
type Handler struct {
	store SnapshotReader
}

// NewHandler создаёт обработчики поверх хранилища снапшотов.
func NewHandler(store SnapshotReader) *Handler {
	return &Handler{store: store}
}

// HealthCheck сообщает, что процесс жив, и возраст текущего снапшота.
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if snap, err := h.store.ReadLatest(c.Request.Context()); err == nil {
		resp["updated_at"] = snap.UpdatedAt
		resp["articles"] = len(snap.Articles)
		resp["age_seconds"] = int(time.Since(snap.UpdatedAt).Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// GetLatest отдаёт текущий снапшот. Клиент должен перепроверять его каждый раз.
func (h *Handler) GetLatest(c *gin.Context) {
	snap, err := h.store.ReadLatest(c.Request.Context())
	if err != nil {
		h.writeError(c, "get_latest", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, snap)
}

// ListArchive отдаёт список дат, за которые есть архив.
func (h *Handler) ListArchive(c *gin.Context) {
	keys, err := h.store.ListArchive(c.Request.Context())
	if err != nil {
		h.writeError(c, "list_archive", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"dates": keys})
}

// GetArchive отдаёт архив за дату (YYYY-MM-DD или YYYY-MM-DD.json).
func (h *Handler) GetArchive(c *gin.Context) {
	key := strings.TrimSuffix(c.Param("date"), ".json")
	if !snapshot.ValidArchiveKey(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	snap, err := h.store.ReadArchive(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, "get_archive", err)
		return
	}
	// Архив за прошедший день не меняется, но текущий день ещё может перезаписаться
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	slog.Error("Snapshot read failed", "operation", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
