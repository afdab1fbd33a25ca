// Package source はニュースソースの読み取りユースケースを提供する。
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/repository"
)

// Service はニュースソースの読み取りユースケースを実装する。
type Service struct {
	sources  repository.SourceRepository
	articles repository.ArticleRepository
	cache    cache.Service
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sources repository.SourceRepository, articles repository.ArticleRepository, cacheService cache.Service) *Service {
	return &Service{
		sources:  sources,
		articles: articles,
		cache:    cacheService,
	}
}

// ListActive はアクティブなソースの一覧を記事数付きで取得する。
// 個々のソースの記事数取得に失敗した場合は0件として扱い、一覧を返す。
func (s *Service) ListActive(ctx context.Context) ([]model.SourceWithCount, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyActiveSources, cache.TTLLong,
		func(ctx context.Context) ([]model.SourceWithCount, error) {
			sources, err := s.sources.ListActive(ctx)
			if err != nil {
				return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
			}

			result := make([]model.SourceWithCount, 0, len(sources))
			for _, src := range sources {
				count, err := s.articles.CountBySource(ctx, src.ID)
				if err != nil {
					slog.Warn("ソースの記事数取得に失敗しました", "source_id", src.ID, "error", err)
					count = 0
				}
				result = append(result, model.SourceWithCount{Source: *src, ArticleCount: count})
			}
			return result, nil
		})
}

// GetByID は指定IDのソースを取得する。
// ソースが存在しない場合は未検出エラーを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Source, error) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	if source == nil {
		return nil, model.NewSourceNotFoundError(id)
	}
	return source, nil
}

// MarkFetched はソースの最終フェッチ日時を更新し、ソース一覧の
// キャッシュを無効化する。
func (s *Service) MarkFetched(ctx context.Context, id string, fetchedAt time.Time) error {
	if err := s.sources.UpdateLastFetched(ctx, id, fetchedAt); err != nil {
		return fmt.Errorf("最終フェッチ日時の更新に失敗しました: %w", err)
	}
	if err := s.cache.Remove(ctx, cache.KeyActiveSources); err != nil {
		slog.Warn("ソース一覧キャッシュの無効化に失敗しました", "error", err)
	}
	return nil
}
