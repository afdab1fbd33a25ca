// Package model はドメインモデルを定義する。
package model

import "time"

// CandidateArticle はフェッチャーが生成する未保存の記事候補を表す。
// sourceUrlによる重複排除を通過して初めてArticleとして永続化される。
type CandidateArticle struct {
	Title            string
	Summary          string
	Content          string
	SourceURL        string
	OriginalImageURL string
	Author           string
	PublishedAt      *time.Time
	SourceID         string
}

// Article は永続化されたニュース記事を表す。
// SourceURLは全記事を通して一意であり、重複排除の主キーとして使用される。
type Article struct {
	ID               string
	Title            string
	Slug             string
	Summary          string
	Content          string // サニタイズ済みHTML
	PlainText        string // タグ除去済みテキスト（検索用）
	SourceURL        string
	OriginalImageURL string
	ImageID          string // 画像ストア上のオリジナル画像ID
	ThumbID          string // 画像ストア上のサムネイルID
	Author           string
	PublishedAt      *time.Time
	FetchedAt        time.Time
	ViewCount        int
	IsFeatured       bool
	IsActive         bool
	SourceID         string
	CategoryID       *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ArticleSummary は一覧表示用の記事サマリーを表す。
// 一覧クエリではContent/PlainTextを読み込まない。
type ArticleSummary struct {
	ID          string
	Title       string
	Slug        string
	Summary     string
	ThumbID     string
	ImageURL    string
	Author      string
	PublishedAt *time.Time
	SourceID    string
	SourceName  string
	CategoryID  *string
}
