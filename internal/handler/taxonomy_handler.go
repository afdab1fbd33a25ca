package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsportal/internal/middleware"
	"github.com/hitoshi/newsportal/internal/model"
)

// CategoryServiceInterface はカテゴリハンドラーが必要とするサービスインターフェース。
type CategoryServiceInterface interface {
	// ListActive はアクティブなカテゴリの一覧を記事数付きで取得する。
	ListActive(ctx context.Context) ([]model.CategoryWithCount, error)
	// GetBySlug は指定slugのカテゴリを取得する。
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
}

// SourceServiceInterface はソースハンドラーが必要とするサービスインターフェース。
type SourceServiceInterface interface {
	// ListActive はアクティブなソースの一覧を記事数付きで取得する。
	ListActive(ctx context.Context) ([]model.SourceWithCount, error)
}

// TaxonomyHandler はカテゴリとソースのHTTPハンドラー。
type TaxonomyHandler struct {
	categories CategoryServiceInterface
	sources    SourceServiceInterface
}

// NewTaxonomyHandler はTaxonomyHandlerを生成する。
func NewTaxonomyHandler(categories CategoryServiceInterface, sources SourceServiceInterface) *TaxonomyHandler {
	return &TaxonomyHandler{
		categories: categories,
		sources:    sources,
	}
}

// --- レスポンス型 ---

// categoryResponse はカテゴリのレスポンス。
type categoryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NameBn       string `json:"name_bn,omitempty"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Color        string `json:"color,omitempty"`
	SortOrder    int    `json:"sort_order"`
	ArticleCount int    `json:"article_count"`
}

// sourceResponse はソースのレスポンス。取得用の資格情報は含めない。
type sourceResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	BaseURL       string     `json:"base_url"`
	LogoURL       string     `json:"logo_url,omitempty"`
	FetchMethod   string     `json:"fetch_method"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	ArticleCount  int        `json:"article_count"`
}

// ListCategories はアクティブなカテゴリの一覧を取得する。
// GET /api/categories
func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListActive(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		responses = append(responses, categoryResponse{
			ID:           c.ID,
			Name:         c.Name,
			NameBn:       c.NameBn,
			Slug:         c.Slug,
			Description:  c.Description,
			Icon:         c.Icon,
			Color:        c.Color,
			SortOrder:    c.SortOrder,
			ArticleCount: c.ArticleCount,
		})
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetCategory はカテゴリ詳細を取得する。
// GET /api/categories/{slug}
func (h *TaxonomyHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	category, err := h.categories.GetBySlug(r.Context(), slug)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, categoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		NameBn:      category.NameBn,
		Slug:        category.Slug,
		Description: category.Description,
		Icon:        category.Icon,
		Color:       category.Color,
		SortOrder:   category.SortOrder,
	})
}

// ListSources はアクティブなソースの一覧を取得する。
// GET /api/sources
func (h *TaxonomyHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListActive(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		responses = append(responses, sourceResponse{
			ID:            s.ID,
			Name:          s.Name,
			Slug:          s.Slug,
			BaseURL:       s.BaseURL,
			LogoURL:       s.LogoURL,
			FetchMethod:   string(s.FetchMethod),
			LastFetchedAt: s.LastFetchedAt,
			ArticleCount:  s.ArticleCount,
		})
	}
	writeJSON(w, http.StatusOK, responses)
}
