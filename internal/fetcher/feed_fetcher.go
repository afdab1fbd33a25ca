package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsportal/internal/model"
)

// FeedParser はフィードのフェッチと解析のインターフェースを定義する。
type FeedParser interface {
	FetchItems(ctx context.Context, feedURL string) ([]model.CandidateArticle, error)
}

// feedFetcher はRSS/Atomフィードからの取得を行うSourceFetcherの実装。
type feedFetcher struct {
	parser FeedParser
}

// NewFeedFetcher はフィード取得方式のSourceFetcherを生成する。
func NewFeedFetcher(parser FeedParser) SourceFetcher {
	return &feedFetcher{parser: parser}
}

// Fetch はソースのフィードURLから記事候補を取得する。
// フィードURLが未設定の場合はエラーを返す。
func (f *feedFetcher) Fetch(ctx context.Context, source *model.Source) ([]model.CandidateArticle, error) {
	if source.FeedURL == "" {
		return nil, fmt.Errorf("ソースにフィードURLが設定されていません: %s", source.ID)
	}

	candidates, err := f.parser.FetchItems(ctx, source.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	for i := range candidates {
		candidates[i].SourceID = source.ID
	}

	slog.Info("フィードから記事候補を取得しました",
		"source_id", source.ID,
		"source_name", source.Name,
		"count", len(candidates))

	return candidates, nil
}
