// Package news は記事の取り込みと読み取りのユースケースを提供する。
//
// 取り込みはsource_urlによる重複排除を行い、読み取りはRedisの
// リードスルーキャッシュを経由する。取り込み成功時には一覧系の
// キャッシュを無効化する。
package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/image"
	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/repository"
	"github.com/hitoshi/newsportal/internal/security"
)

// ページネーションの正規化パラメータ。
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ViewCountEnqueuer は閲覧数加算の非同期キューのインターフェースを定義する。
type ViewCountEnqueuer interface {
	// Enqueue は記事IDをキューに投入する。ブロックせず、キューが
	// 満杯の場合は投入を破棄する。
	Enqueue(articleID string)
}

// Service は記事の取り込みと読み取りのユースケースを実装する。
type Service struct {
	articles   repository.ArticleRepository
	sources    repository.SourceRepository
	categories repository.CategoryRepository
	sanitizer  security.ContentSanitizerService
	images     image.Store
	cache      cache.Service
	views      ViewCountEnqueuer
}

// NewService はServiceの新しいインスタンスを生成する。
// imagesがnilの場合、画像の取り込みはスキップされる。
func NewService(
	articles repository.ArticleRepository,
	sources repository.SourceRepository,
	categories repository.CategoryRepository,
	sanitizer security.ContentSanitizerService,
	images image.Store,
	cacheService cache.Service,
	views ViewCountEnqueuer,
) *Service {
	return &Service{
		articles:   articles,
		sources:    sources,
		categories: categories,
		sanitizer:  sanitizer,
		images:     images,
		cache:      cacheService,
		views:      views,
	}
}

// ImportArticles は候補記事のバッチを取り込み、受理された件数を返す。
// 既存のsource_urlを持つ候補は正常スキップとして扱う。個々の候補の
// 失敗はログに記録して続行し、バッチ全体を止めない。1件以上受理された
// 場合は最新一覧とフィーチャー一覧のキャッシュを無効化する。
func (s *Service) ImportArticles(ctx context.Context, candidates []model.CandidateArticle) (int, error) {
	accepted := 0

	for _, candidate := range candidates {
		if candidate.SourceURL == "" || strings.TrimSpace(candidate.Title) == "" {
			continue
		}

		exists, err := s.articles.ExistsBySourceURL(ctx, candidate.SourceURL)
		if err != nil {
			slog.Warn("重複チェックに失敗しました", "source_url", candidate.SourceURL, "error", err)
			continue
		}
		if exists {
			slog.Debug("既存の記事をスキップします", "source_url", candidate.SourceURL)
			continue
		}

		article := s.buildArticle(ctx, candidate)
		if err := s.articles.Create(ctx, article); err != nil {
			slog.Warn("記事の保存に失敗しました", "source_url", candidate.SourceURL, "error", err)
			continue
		}
		accepted++
	}

	if accepted > 0 {
		s.invalidateListCaches(ctx)
		slog.Info("記事を取り込みました", "accepted", accepted, "candidates", len(candidates))
	}

	return accepted, nil
}

// CreateArticle は単一の記事を直接作成する。
// 同一source_urlの記事が既に存在する場合は重複エラーを返す。
func (s *Service) CreateArticle(ctx context.Context, candidate model.CandidateArticle) (*model.Article, error) {
	if candidate.SourceURL == "" {
		return nil, &model.APIError{
			Code:     "VALIDATION_ERROR",
			Message:  "source_urlは必須です。",
			Category: "validation",
		}
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return nil, &model.APIError{
			Code:     "VALIDATION_ERROR",
			Message:  "タイトルは必須です。",
			Category: "validation",
		}
	}

	exists, err := s.articles.ExistsBySourceURL(ctx, candidate.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateSourceURLError(candidate.SourceURL)
	}

	article := s.buildArticle(ctx, candidate)
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("記事の保存に失敗しました: %w", err)
	}

	s.invalidateListCaches(ctx)
	return article, nil
}

// buildArticle は候補記事から永続化用のArticleを構築する。
// コンテンツはサニタイズし、検索用のプレーンテキストを導出する。
// 画像の取り込みはベストエフォートで行い、失敗しても記事は成立する。
func (s *Service) buildArticle(ctx context.Context, candidate model.CandidateArticle) *model.Article {
	now := time.Now().UTC()
	sanitized := s.sanitizer.Sanitize(candidate.Content)

	article := &model.Article{
		ID:               uuid.NewString(),
		Title:            strings.TrimSpace(candidate.Title),
		Slug:             GenerateSlug(candidate.Title, now),
		Summary:          s.sanitizer.StripTags(candidate.Summary),
		Content:          sanitized,
		PlainText:        s.sanitizer.StripTags(sanitized),
		SourceURL:        candidate.SourceURL,
		OriginalImageURL: candidate.OriginalImageURL,
		Author:           s.sanitizer.StripTags(candidate.Author),
		PublishedAt:      candidate.PublishedAt,
		FetchedAt:        now,
		IsActive:         true,
		SourceID:         candidate.SourceID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if s.images != nil && candidate.OriginalImageURL != "" {
		imageID, thumbID, err := s.images.IngestFromURL(ctx, article.ID, candidate.OriginalImageURL)
		if err != nil {
			slog.Warn("画像の取り込みに失敗しました",
				"article_id", article.ID,
				"image_url", candidate.OriginalImageURL,
				"error", err)
		} else {
			article.ImageID = imageID
			article.ThumbID = thumbID
		}
	}

	return article
}

// invalidateListCaches は記事追加の影響を受ける一覧キャッシュを無効化する。
func (s *Service) invalidateListCaches(ctx context.Context) {
	if err := s.cache.RemoveByPattern(ctx, cache.PatternLatestNews()); err != nil {
		slog.Warn("最新一覧キャッシュの無効化に失敗しました", "error", err)
	}
	if err := s.cache.RemoveByPattern(ctx, cache.PatternFeaturedNews()); err != nil {
		slog.Warn("フィーチャー一覧キャッシュの無効化に失敗しました", "error", err)
	}
}

// GetLatest は最新記事の一覧をページ取得する。
func (s *Service) GetLatest(ctx context.Context, page, pageSize int) (model.PagedResult[model.ArticleSummary], error) {
	page, pageSize = normalizePaging(page, pageSize)

	return cache.GetOrSet(ctx, s.cache, cache.KeyLatestNews(page, pageSize), cache.TTLShort,
		func(ctx context.Context) (model.PagedResult[model.ArticleSummary], error) {
			items, err := s.articles.ListLatest(ctx, page, pageSize)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			total, err := s.articles.CountActive(ctx)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			return pagedResult(items, total, page, pageSize), nil
		})
}

// GetByCategorySlug は指定カテゴリの記事一覧をページ取得する。
// カテゴリが存在しない場合は未検出エラーを返す。
func (s *Service) GetByCategorySlug(ctx context.Context, slug string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error) {
	page, pageSize = normalizePaging(page, pageSize)

	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return model.PagedResult[model.ArticleSummary]{}, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if category == nil {
		return model.PagedResult[model.ArticleSummary]{}, model.NewCategoryNotFoundError(slug)
	}

	return cache.GetOrSet(ctx, s.cache, cache.KeyNewsByCategory(category.ID, page, pageSize), cache.TTLShort,
		func(ctx context.Context) (model.PagedResult[model.ArticleSummary], error) {
			items, err := s.articles.ListByCategory(ctx, category.ID, page, pageSize)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			total, err := s.articles.CountByCategory(ctx, category.ID)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			return pagedResult(items, total, page, pageSize), nil
		})
}

// GetBySourceSlug は指定ソースの記事一覧をページ取得する。
// ソースが存在しない場合は未検出エラーを返す。
func (s *Service) GetBySourceSlug(ctx context.Context, slug string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error) {
	page, pageSize = normalizePaging(page, pageSize)

	source, err := s.sources.FindBySlug(ctx, slug)
	if err != nil {
		return model.PagedResult[model.ArticleSummary]{}, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	if source == nil {
		return model.PagedResult[model.ArticleSummary]{}, model.NewSourceNotFoundError(slug)
	}

	return cache.GetOrSet(ctx, s.cache, cache.KeyNewsBySource(source.ID, page, pageSize), cache.TTLShort,
		func(ctx context.Context) (model.PagedResult[model.ArticleSummary], error) {
			items, err := s.articles.ListBySource(ctx, source.ID, page, pageSize)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			total, err := s.articles.CountBySource(ctx, source.ID)
			if err != nil {
				return model.PagedResult[model.ArticleSummary]{}, err
			}
			return pagedResult(items, total, page, pageSize), nil
		})
}

// GetDetail は指定slugの記事詳細を取得する。
// 記事が存在しない場合は未検出エラーを返す。取得成功時には閲覧数の
// 加算を非同期キューに投入する（レスポンスをブロックしない）。
func (s *Service) GetDetail(ctx context.Context, slug string) (*model.Article, error) {
	article, err := cache.GetOrSet(ctx, s.cache, cache.KeyArticleBySlug(slug), cache.TTLMedium,
		func(ctx context.Context) (*model.Article, error) {
			found, err := s.articles.FindBySlug(ctx, slug)
			if err != nil {
				return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
			}
			if found == nil {
				return nil, model.NewArticleNotFoundError(slug)
			}
			return found, nil
		})
	if err != nil {
		return nil, err
	}

	if s.views != nil {
		s.views.Enqueue(article.ID)
	}

	return article, nil
}

// GetFeatured はフィーチャー記事を最大count件取得する。
func (s *Service) GetFeatured(ctx context.Context, count int) ([]model.ArticleSummary, error) {
	if count < 1 {
		count = 5
	}

	return cache.GetOrSet(ctx, s.cache, cache.KeyFeaturedNews(count), cache.TTLShort,
		func(ctx context.Context) ([]model.ArticleSummary, error) {
			return s.articles.ListFeatured(ctx, count)
		})
}

// Search は記事の全文検索を行う。検索結果は都度変化するため
// キャッシュしない。
func (s *Service) Search(ctx context.Context, query string, page, pageSize int) (model.PagedResult[model.ArticleSummary], error) {
	page, pageSize = normalizePaging(page, pageSize)

	query = strings.TrimSpace(query)
	if query == "" {
		return model.EmptyPagedResult[model.ArticleSummary](page, pageSize), nil
	}

	items, err := s.articles.SearchByText(ctx, query, page, pageSize)
	if err != nil {
		return model.PagedResult[model.ArticleSummary]{}, fmt.Errorf("記事の検索に失敗しました: %w", err)
	}
	total, err := s.articles.CountBySearch(ctx, query)
	if err != nil {
		return model.PagedResult[model.ArticleSummary]{}, fmt.Errorf("検索件数の取得に失敗しました: %w", err)
	}
	return pagedResult(items, total, page, pageSize), nil
}

// normalizePaging はページネーションパラメータを有効範囲に正規化する。
func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// pagedResult はページ取得結果を組み立てる。itemsがnilの場合は
// 空スライスに置き換え、JSONでnullではなく[]を返せるようにする。
func pagedResult(items []model.ArticleSummary, total, page, pageSize int) model.PagedResult[model.ArticleSummary] {
	if items == nil {
		items = []model.ArticleSummary{}
	}
	return model.PagedResult[model.ArticleSummary]{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
}
