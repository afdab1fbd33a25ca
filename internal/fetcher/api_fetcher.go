package fetcher

import (
	"context"
	"log/slog"

	"github.com/hitoshi/newsportal/internal/model"
)

// apiFetcher は構造化APIからの取得を行うSourceFetcherの実装。
// プロバイダごとのレスポンス形式が定まっていないため、現時点では
// 取得を行わず空のリストを返す拡張ポイントとして存在する。
type apiFetcher struct{}

// NewAPIFetcher はAPI取得方式のSourceFetcherを生成する。
func NewAPIFetcher() SourceFetcher {
	return &apiFetcher{}
}

// Fetch は常に空のリストを返す。ディスパッチの一貫性を保つため、
// エラーにはせずログのみ記録する。
func (f *apiFetcher) Fetch(_ context.Context, source *model.Source) ([]model.CandidateArticle, error) {
	slog.Info("API取得方式は未実装のため記事候補を返しません",
		"source_id", source.ID,
		"source_name", source.Name,
		"api_endpoint", source.APIEndpoint)
	return nil, nil
}
