// Package model はドメインモデルを定義する。
package model

import "time"

// FetchMethod はニュースソースの取得方式を表す。
type FetchMethod string

const (
	// FetchMethodFeed はRSS/Atomフィードによる取得方式。
	FetchMethodFeed FetchMethod = "feed"
	// FetchMethodAPI は構造化APIによる取得方式。現時点では未実装の拡張ポイント。
	FetchMethodAPI FetchMethod = "api"
	// FetchMethodScrape はHTMLセレクタによるスクレイピング取得方式。
	FetchMethodScrape FetchMethod = "scrape"
)

// Source は設定されたニュースの取得元を表す。
// fetch方式がscrapeの場合はScrapingConfigを1件所有する。
type Source struct {
	ID                   string
	Name                 string
	Slug                 string
	BaseURL              string
	LogoURL              string
	FetchMethod          FetchMethod
	FeedURL              string
	APIEndpoint          string
	APIKey               string
	FetchIntervalMinutes int
	LastFetchedAt        *time.Time
	IsActive             bool
	ScrapingConfig       *ScrapingConfig
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ScrapingConfig はスクレイピング対象ソースのセレクタ設定を表す。
// セレクタが空の場合、フェッチャー側でデフォルトセレクタが適用される。
type ScrapingConfig struct {
	ID                  string
	SourceID            string
	ListPageURL         string
	ArticleLinkSelector string
	TitleSelector       string
	ContentSelector     string
	SummarySelector     string
	ImageSelector       string
	DateSelector        string
	AuthorSelector      string
}
