// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsportal/internal/middleware"
	"github.com/hitoshi/newsportal/internal/model"
)

// defaultFeaturedCount はフィーチャー記事のデフォルト取得件数。
const defaultFeaturedCount = 5

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	// GetLatest は最新記事の一覧をページ取得する。
	GetLatest(ctx context.Context, page, pageSize int) (model.PagedResult[model.ArticleSummary], error)
	// GetByCategorySlug は指定カテゴリの記事一覧をページ取得する。
	GetByCategorySlug(ctx context.Context, slug string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error)
	// GetBySourceSlug は指定ソースの記事一覧をページ取得する。
	GetBySourceSlug(ctx context.Context, slug string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error)
	// GetDetail は指定slugの記事詳細を取得する。
	GetDetail(ctx context.Context, slug string) (*model.Article, error)
	// GetFeatured はフィーチャー記事を最大count件取得する。
	GetFeatured(ctx context.Context, count int) ([]model.ArticleSummary, error)
	// Search は記事の全文検索を行う。
	Search(ctx context.Context, query string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error)
	// CreateArticle は単一の記事を直接作成する。
	CreateArticle(ctx context.Context, candidate model.CandidateArticle) (*model.Article, error)
}

// NewsHandler はニュース記事のHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// --- レスポンス型 ---

// articleSummaryResponse は記事一覧のサマリーレスポンス。
type articleSummaryResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary"`
	ThumbID     string     `json:"thumb_id,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceID    string     `json:"source_id"`
	SourceName  string     `json:"source_name"`
	CategoryID  *string    `json:"category_id,omitempty"`
}

// articleListResponse はページネーション付き記事一覧のレスポンス。
type articleListResponse struct {
	Items      []articleSummaryResponse `json:"items"`
	TotalCount int                      `json:"total_count"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
}

// articleDetailResponse は記事詳細のレスポンス。
type articleDetailResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary"`
	Content     string     `json:"content"` // サニタイズ済みHTML
	SourceURL   string     `json:"source_url"`
	ImageID     string     `json:"image_id,omitempty"`
	ThumbID     string     `json:"thumb_id,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
	ViewCount   int        `json:"view_count"`
	IsFeatured  bool       `json:"is_featured"`
	SourceID    string     `json:"source_id"`
	CategoryID  *string    `json:"category_id,omitempty"`
}

// createArticleRequest は記事直接作成リクエストのボディ。
type createArticleRequest struct {
	Title            string     `json:"title"`
	Summary          string     `json:"summary"`
	Content          string     `json:"content"`
	SourceURL        string     `json:"source_url"`
	OriginalImageURL string     `json:"original_image_url"`
	Author           string     `json:"author"`
	PublishedAt      *time.Time `json:"published_at"`
	SourceID         string     `json:"source_id"`
}

func toSummaryResponse(s model.ArticleSummary) articleSummaryResponse {
	return articleSummaryResponse{
		ID:          s.ID,
		Title:       s.Title,
		Slug:        s.Slug,
		Summary:     s.Summary,
		ThumbID:     s.ThumbID,
		ImageURL:    s.ImageURL,
		Author:      s.Author,
		PublishedAt: s.PublishedAt,
		SourceID:    s.SourceID,
		SourceName:  s.SourceName,
		CategoryID:  s.CategoryID,
	}
}

func toListResponse(result model.PagedResult[model.ArticleSummary]) articleListResponse {
	items := make([]articleSummaryResponse, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, toSummaryResponse(s))
	}
	return articleListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
}

func toDetailResponse(a *model.Article) articleDetailResponse {
	return articleDetailResponse{
		ID:          a.ID,
		Title:       a.Title,
		Slug:        a.Slug,
		Summary:     a.Summary,
		Content:     a.Content,
		SourceURL:   a.SourceURL,
		ImageID:     a.ImageID,
		ThumbID:     a.ThumbID,
		Author:      a.Author,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
		ViewCount:   a.ViewCount,
		IsFeatured:  a.IsFeatured,
		SourceID:    a.SourceID,
		CategoryID:  a.CategoryID,
	}
}

// pagingFromQuery はクエリパラメータからページネーションを取り出す。
func pagingFromQuery(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// ListLatest は最新記事の一覧を取得する。
// GET /api/news?page=1&page_size=20
func (h *NewsHandler) ListLatest(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagingFromQuery(r)

	result, err := h.service.GetLatest(r.Context(), page, pageSize)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(result))
}

// ListByCategory はカテゴリ別の記事一覧を取得する。
// GET /api/news/category/{slug}?page=1&page_size=20
func (h *NewsHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	page, pageSize := pagingFromQuery(r)

	result, err := h.service.GetByCategorySlug(r.Context(), slug, page, pageSize)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(result))
}

// ListBySource はソース別の記事一覧を取得する。
// GET /api/news/source/{slug}?page=1&page_size=20
func (h *NewsHandler) ListBySource(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	page, pageSize := pagingFromQuery(r)

	result, err := h.service.GetBySourceSlug(r.Context(), slug, page, pageSize)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(result))
}

// GetArticle は記事詳細を取得する。
// GET /api/news/{slug}
func (h *NewsHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	article, err := h.service.GetDetail(r.Context(), slug)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(article))
}

// ListFeatured はフィーチャー記事の一覧を取得する。
// GET /api/news/featured?count=5
func (h *NewsHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if count < 1 {
		count = defaultFeaturedCount
	}

	items, err := h.service.GetFeatured(r.Context(), count)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]articleSummaryResponse, 0, len(items))
	for _, s := range items {
		responses = append(responses, toSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, responses)
}

// Search は記事の全文検索を行う。
// GET /api/news/search?q=keyword&page=1&page_size=20
func (h *NewsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, pageSize := pagingFromQuery(r)

	result, err := h.service.Search(r.Context(), query, page, pageSize)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(result))
}

// CreateArticle は記事を直接作成する。
// POST /api/articles
func (h *NewsHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST_BODY",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
		})
		return
	}

	article, err := h.service.CreateArticle(r.Context(), model.CandidateArticle{
		Title:            req.Title,
		Summary:          req.Summary,
		Content:          req.Content,
		SourceURL:        req.SourceURL,
		OriginalImageURL: req.OriginalImageURL,
		Author:           req.Author,
		PublishedAt:      req.PublishedAt,
		SourceID:         req.SourceID,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDetailResponse(article))
}
