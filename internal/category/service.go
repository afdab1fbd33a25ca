// Package category はカテゴリの読み取りユースケースを提供する。
package category

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/repository"
)

// Service はカテゴリの読み取りユースケースを実装する。
// カテゴリは変更頻度が低いため、一覧は長めのTTLでキャッシュする。
type Service struct {
	categories repository.CategoryRepository
	articles   repository.ArticleRepository
	cache      cache.Service
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(categories repository.CategoryRepository, articles repository.ArticleRepository, cacheService cache.Service) *Service {
	return &Service{
		categories: categories,
		articles:   articles,
		cache:      cacheService,
	}
}

// ListActive はアクティブなカテゴリの一覧を記事数付きで取得する。
// 個々のカテゴリの記事数取得に失敗した場合は0件として扱い、一覧を返す。
func (s *Service) ListActive(ctx context.Context) ([]model.CategoryWithCount, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyCategories, cache.TTLLong,
		func(ctx context.Context) ([]model.CategoryWithCount, error) {
			categories, err := s.categories.ListActive(ctx)
			if err != nil {
				return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
			}

			result := make([]model.CategoryWithCount, 0, len(categories))
			for _, c := range categories {
				count, err := s.articles.CountByCategory(ctx, c.ID)
				if err != nil {
					slog.Warn("カテゴリの記事数取得に失敗しました", "category_id", c.ID, "error", err)
					count = 0
				}
				result = append(result, model.CategoryWithCount{Category: *c, ArticleCount: count})
			}
			return result, nil
		})
}

// GetBySlug は指定slugのカテゴリを取得する。
// カテゴリが存在しない場合は未検出エラーを返す。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyCategoryBySlug(slug), cache.TTLMedium,
		func(ctx context.Context) (*model.Category, error) {
			category, err := s.categories.FindBySlug(ctx, slug)
			if err != nil {
				return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
			}
			if category == nil {
				return nil, model.NewCategoryNotFoundError(slug)
			}
			return category, nil
		})
}
