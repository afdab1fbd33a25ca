package cache

import "fmt"

// キー空間は階層的で予測可能な形に固定する。
// アドホックな文字列連結によるキーの揺れを防ぐため、
// キャッシュキーは必ずこのファイルのビルダー経由で生成する。
const (
	// KeyCategories は全カテゴリ一覧のキャッシュキー。
	KeyCategories = "categories:all"
	// KeyActiveSources はアクティブソース一覧のキャッシュキー。
	KeyActiveSources = "sources:active"
	// PatternAllNews は全ニュース系キャッシュの一括無効化パターン。
	PatternAllNews = "news:*"
)

// KeyLatestNews は最新ニュース一覧のキャッシュキーを生成する。
func KeyLatestNews(page, pageSize int) string {
	return fmt.Sprintf("news:latest:%d:%d", page, pageSize)
}

// KeyNewsByCategory はカテゴリ別ニュース一覧のキャッシュキーを生成する。
func KeyNewsByCategory(categoryID string, page, pageSize int) string {
	return fmt.Sprintf("news:category:%s:%d:%d", categoryID, page, pageSize)
}

// KeyNewsBySource はソース別ニュース一覧のキャッシュキーを生成する。
func KeyNewsBySource(sourceID string, page, pageSize int) string {
	return fmt.Sprintf("news:source:%s:%d:%d", sourceID, page, pageSize)
}

// KeyArticleBySlug は記事詳細のキャッシュキーを生成する。
func KeyArticleBySlug(slug string) string {
	return fmt.Sprintf("news:article:slug:%s", slug)
}

// KeyFeaturedNews はフィーチャー記事一覧のキャッシュキーを生成する。
func KeyFeaturedNews(count int) string {
	return fmt.Sprintf("news:featured:%d", count)
}

// KeyCategoryBySlug はカテゴリ詳細のキャッシュキーを生成する。
func KeyCategoryBySlug(slug string) string {
	return fmt.Sprintf("category:slug:%s", slug)
}

// PatternLatestNews は最新ニュース一覧全ページの無効化パターンを返す。
func PatternLatestNews() string {
	return "news:latest:*"
}

// PatternFeaturedNews はフィーチャー記事一覧の無効化パターンを返す。
func PatternFeaturedNews() string {
	return "news:featured:*"
}
