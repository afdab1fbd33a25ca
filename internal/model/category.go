// Package model はドメインモデルを定義する。
package model

import "time"

// Category はニュース記事のカテゴリを表す。
// NameBnはベンガル語のローカライズ名。記事は最大1つのカテゴリを参照する。
type Category struct {
	ID          string
	Name        string
	NameBn      string
	Slug        string
	Description string
	Icon        string
	Color       string
	SortOrder   int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryWithCount はカテゴリとアクティブ記事数を結合したモデル。
type CategoryWithCount struct {
	Category
	ArticleCount int
}

// SourceWithCount はソースとアクティブ記事数を結合したモデル。
type SourceWithCount struct {
	Source
	ArticleCount int
}
