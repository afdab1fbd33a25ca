// Package fetch はニュースソースの定期フェッチを実行するワーカーを提供する。
//
// スケジューラはアクティブなソースを走査し、ソースごとのフェッチ間隔を
// 過ぎたものだけを処理する。個々のソースの失敗は他のソースの処理を
// 妨げない。
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newsportal/internal/metrics"
	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/repository"
)

// defaultMaxConcurrent は同時にフェッチするソース数の上限。
const defaultMaxConcurrent = 4

// CandidateFetcher はソースからの記事候補取得のインターフェースを定義する。
type CandidateFetcher interface {
	Fetch(ctx context.Context, source *model.Source) ([]model.CandidateArticle, error)
}

// ArticleImporter は記事候補バッチの取り込みインターフェースを定義する。
type ArticleImporter interface {
	ImportArticles(ctx context.Context, candidates []model.CandidateArticle) (int, error)
}

// FetchMarker はソースの最終フェッチ日時の記録インターフェースを定義する。
type FetchMarker interface {
	MarkFetched(ctx context.Context, id string, fetchedAt time.Time) error
}

// Scheduler はソースの定期フェッチを実行する。
type Scheduler struct {
	sources       repository.SourceRepository
	fetcher       CandidateFetcher
	importer      ArticleImporter
	marker        FetchMarker
	collector     *metrics.Collector
	maxConcurrent int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// collectorはnilでもよい。
func NewScheduler(
	sources repository.SourceRepository,
	fetcher CandidateFetcher,
	importer ArticleImporter,
	marker FetchMarker,
	collector *metrics.Collector,
) *Scheduler {
	return &Scheduler{
		sources:       sources,
		fetcher:       fetcher,
		importer:      importer,
		marker:        marker,
		collector:     collector,
		maxConcurrent: defaultMaxConcurrent,
	}
}

// Start は指定間隔でRunAllDueを繰り返し実行する。
// 起動直後に1回実行し、以降はティックごとに実行する。
// コンテキストのキャンセルで停止する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	slog.Info("フェッチスケジューラを開始します", "interval", interval)

	s.RunAllDue(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("フェッチスケジューラを停止します")
			return
		case <-ticker.C:
			s.RunAllDue(ctx)
		}
	}
}

// RunAllDue はフェッチ期限の到来したアクティブなソースをすべて処理する。
// ソースごとの失敗はログとメトリクスに記録して続行し、エラーを返さない。
func (s *Scheduler) RunAllDue(ctx context.Context) {
	sources, err := s.sources.ListActive(ctx)
	if err != nil {
		slog.Error("アクティブソースの取得に失敗しました", "error", err)
		return
	}

	now := time.Now().UTC()
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for _, source := range sources {
		if !isDue(source, now) {
			slog.Debug("フェッチ間隔が未到来のためスキップします",
				"source_id", source.ID,
				"source_name", source.Name,
				"last_fetched_at", source.LastFetchedAt)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(src *model.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("ソースフェッチ中にパニックが発生しました",
						"source_id", src.ID,
						"panic", r)
					s.collector.RecordFetchFailure()
				}
			}()

			if err := s.runSource(ctx, src); err != nil {
				slog.Error("ソースフェッチに失敗しました",
					"source_id", src.ID,
					"source_name", src.Name,
					"error", err)
				s.collector.RecordFetchFailure()
			}
		}(source)
	}

	wg.Wait()
}

// RunOne は指定IDのソースを即時フェッチする。手動トリガー用。
// RunAllDueと異なり、失敗はエラーとして呼び出し元へ伝播する。
// フェッチ間隔の到来は確認しない。
func (s *Scheduler) RunOne(ctx context.Context, sourceID string) error {
	source, err := s.sources.FindByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	if source == nil {
		return model.NewSourceNotFoundError(sourceID)
	}

	if err := s.runSource(ctx, source); err != nil {
		s.collector.RecordFetchFailure()
		return err
	}
	return nil
}

// runSource は単一ソースのフェッチ、取り込み、最終フェッチ日時の更新を行う。
func (s *Scheduler) runSource(ctx context.Context, source *model.Source) error {
	candidates, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return fmt.Errorf("記事候補の取得に失敗しました: %w", err)
	}

	accepted, err := s.importer.ImportArticles(ctx, candidates)
	if err != nil {
		return fmt.Errorf("記事の取り込みに失敗しました: %w", err)
	}

	if err := s.marker.MarkFetched(ctx, source.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("最終フェッチ日時の記録に失敗しました: %w", err)
	}

	s.collector.RecordFetchSuccess()
	s.collector.RecordArticlesImported(accepted)

	slog.Info("ソースフェッチが完了しました",
		"source_id", source.ID,
		"source_name", source.Name,
		"candidates", len(candidates),
		"accepted", accepted)

	return nil
}

// isDue はソースのフェッチ期限が到来しているかを判定する。
// 一度もフェッチされていないソースは常に期限到来として扱う。
func isDue(source *model.Source, now time.Time) bool {
	if source.LastFetchedAt == nil {
		return true
	}
	interval := time.Duration(source.FetchIntervalMinutes) * time.Minute
	if interval <= 0 {
		return true
	}
	return now.Sub(*source.LastFetchedAt) >= interval
}
