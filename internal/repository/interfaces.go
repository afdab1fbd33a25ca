// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newsportal/internal/model"
)

// ArticleRepository は記事データの永続化インターフェース。
// slugとsource_urlの一意性はストレージ層の制約で保証される。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindBySlug は指定slugのアクティブな記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)

	// ExistsBySourceURL は指定source_urlの記事が存在するかを返す。
	// アクティブ・非アクティブを問わず判定する（一度取り込んだURLは再取り込みしない）。
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)

	// Create は記事を作成する。
	Create(ctx context.Context, article *model.Article) error

	// ListLatest はアクティブな記事をpublished_at降順でページ取得する。
	ListLatest(ctx context.Context, page, pageSize int) ([]model.ArticleSummary, error)

	// ListByCategory は指定カテゴリのアクティブな記事をページ取得する。
	ListByCategory(ctx context.Context, categoryID string, page, pageSize int) ([]model.ArticleSummary, error)

	// ListBySource は指定ソースのアクティブな記事をページ取得する。
	ListBySource(ctx context.Context, sourceID string, page, pageSize int) ([]model.ArticleSummary, error)

	// ListFeatured はフィーチャー記事をpublished_at降順で最大count件取得する。
	ListFeatured(ctx context.Context, count int) ([]model.ArticleSummary, error)

	// SearchByText はplain_text/titleの部分一致で記事を検索する。
	SearchByText(ctx context.Context, query string, page, pageSize int) ([]model.ArticleSummary, error)

	// CountActive はアクティブな記事の総数を返す。
	CountActive(ctx context.Context) (int, error)

	// CountByCategory は指定カテゴリのアクティブな記事数を返す。
	CountByCategory(ctx context.Context, categoryID string) (int, error)

	// CountBySource は指定ソースのアクティブな記事数を返す。
	CountBySource(ctx context.Context, sourceID string) (int, error)

	// CountBySearch は検索条件に一致するアクティブな記事数を返す。
	CountBySearch(ctx context.Context, query string) (int, error)

	// IncrementViewCount は閲覧数を1加算する。ベストエフォートで呼ばれる。
	IncrementViewCount(ctx context.Context, id string) error
}

// SourceRepository はニュースソースデータの永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定IDのソースをScrapingConfig付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// FindBySlug は指定slugのソースを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Source, error)

	// ListActive はアクティブなソース一覧をScrapingConfig付きで取得する。
	ListActive(ctx context.Context) ([]*model.Source, error)

	// UpdateLastFetched は最終フェッチ日時を指定時刻に更新する。
	UpdateLastFetched(ctx context.Context, id string, fetchedAt time.Time) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// FindBySlug は指定slugのアクティブなカテゴリを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)

	// ListActive はアクティブなカテゴリをsort_order昇順で取得する。
	ListActive(ctx context.Context) ([]*model.Category, error)
}
