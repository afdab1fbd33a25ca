package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsportal/internal/middleware"
	"github.com/hitoshi/newsportal/internal/model"
)

// ImageStoreInterface は画像ハンドラーが必要とするストアインターフェース。
type ImageStoreInterface interface {
	// GetBytes は指定IDの画像データとMIMEタイプを取得する。
	// 画像が存在しない場合はnilを返す。エラーはストレージ障害を示す。
	GetBytes(ctx context.Context, id string) ([]byte, string, error)
}

// ImageHandler は記事画像配信のHTTPハンドラー。
type ImageHandler struct {
	store ImageStoreInterface
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(store ImageStoreInterface) *ImageHandler {
	return &ImageHandler{store: store}
}

// GetImage は画像データを配信する。
// GET /api/images/{id}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, contentType, err := h.store.GetBytes(r.Context(), id)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	if data == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "IMAGE_NOT_FOUND",
			Message:  "指定された画像が見つかりません。",
			Category: "not_found",
		})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// 画像は不変のため長期キャッシュを許可する
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
