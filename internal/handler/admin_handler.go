package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/middleware"
)

// FetchTrigger はソースの即時フェッチのインターフェースを定義する。
type FetchTrigger interface {
	// RunOne は指定IDのソースを即時フェッチする。
	RunOne(ctx context.Context, sourceID string) error
}

// AdminHandler は運用操作のHTTPハンドラー。
type AdminHandler struct {
	trigger FetchTrigger
	cache   cache.Service
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(trigger FetchTrigger, cacheService cache.Service) *AdminHandler {
	return &AdminHandler{
		trigger: trigger,
		cache:   cacheService,
	}
}

// TriggerFetch は指定ソースの即時フェッチを実行する。
// POST /api/sources/{id}/fetch
func (h *AdminHandler) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")

	if err := h.trigger.RunOne(r.Context(), sourceID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "completed",
		"source_id": sourceID,
	})
}

// InvalidateNewsCache はニュース系キャッシュを一括無効化する。
// POST /api/admin/cache/invalidate
func (h *AdminHandler) InvalidateNewsCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.RemoveByPattern(r.Context(), cache.PatternAllNews); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "invalidated",
		"pattern": cache.PatternAllNews,
	})
}
