package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/metrics"
	"github.com/hitoshi/newsportal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Collector         *metrics.Collector

	// サービス
	NewsService     NewsServiceInterface
	CategoryService CategoryServiceInterface
	SourceService   SourceServiceInterface
	ImageStore      ImageStoreInterface
	FetchTrigger    FetchTrigger
	Cache           cache.Service
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → Logging → RateLimit
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(deps.RateLimiter.Middleware())

	newsHandler := NewNewsHandler(deps.NewsService)
	taxonomyHandler := NewTaxonomyHandler(deps.CategoryService, deps.SourceService)
	imageHandler := NewImageHandler(deps.ImageStore)
	adminHandler := NewAdminHandler(deps.FetchTrigger, deps.Cache)

	// ニュース読み取り
	r.Route("/api/news", func(r chi.Router) {
		r.Get("/", newsHandler.ListLatest)
		r.Get("/featured", newsHandler.ListFeatured)
		r.Get("/search", newsHandler.Search)
		r.Get("/category/{slug}", newsHandler.ListByCategory)
		r.Get("/source/{slug}", newsHandler.ListBySource)

		// slugはパス階層と衝突しないよう最後に配置
		r.Get("/{slug}", newsHandler.GetArticle)
	})

	// 記事の直接作成
	r.Post("/api/articles", newsHandler.CreateArticle)

	// カテゴリ
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", taxonomyHandler.ListCategories)
		r.Get("/{slug}", taxonomyHandler.GetCategory)
	})

	// ソース
	r.Route("/api/sources", func(r chi.Router) {
		r.Get("/", taxonomyHandler.ListSources)
		r.Post("/{id}/fetch", adminHandler.TriggerFetch)
	})

	// 画像配信
	r.Get("/api/images/{id}", imageHandler.GetImage)

	// 運用操作
	r.Post("/api/admin/cache/invalidate", adminHandler.InvalidateNewsCache)

	// ヘルスチェック
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// メトリクス
	r.Handle("/metrics", deps.Collector.Handler())

	return r
}
