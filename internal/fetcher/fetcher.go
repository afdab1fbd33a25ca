// Package fetcher はニュースソースからの記事候補の取得を提供する。
//
// 取得方式（feed / api / scrape）ごとにSourceFetcherの実装を持ち、
// DispatcherがソースのFetchMethodに応じて実装を選択する。
package fetcher

import (
	"context"

	"github.com/hitoshi/newsportal/internal/model"
)

// SourceFetcher は単一ソースからの記事候補の取得インターフェースを定義する。
type SourceFetcher interface {
	// Fetch はソースから記事候補のリストを取得する。
	// 返される候補のSourceIDにはソースのIDが設定される。
	Fetch(ctx context.Context, source *model.Source) ([]model.CandidateArticle, error)
}

// Dispatcher は取得方式に応じてSourceFetcherの実装を選択する。
type Dispatcher struct {
	fetchers map[model.FetchMethod]SourceFetcher
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(feedF, apiF, scrapeF SourceFetcher) *Dispatcher {
	return &Dispatcher{
		fetchers: map[model.FetchMethod]SourceFetcher{
			model.FetchMethodFeed:   feedF,
			model.FetchMethodAPI:    apiF,
			model.FetchMethodScrape: scrapeF,
		},
	}
}

// Fetch はソースの取得方式に対応するフェッチャーへ処理を委譲する。
// 未知の取得方式の場合はバリデーションエラーを返す。
func (d *Dispatcher) Fetch(ctx context.Context, source *model.Source) ([]model.CandidateArticle, error) {
	f, ok := d.fetchers[source.FetchMethod]
	if !ok {
		return nil, model.NewInvalidFetchMethodError(source.FetchMethod)
	}
	return f.Fetch(ctx, source)
}
