// Package viewcount は記事閲覧数の非同期加算ワーカーを提供する。
//
// 閲覧数の加算は読み取りレスポンスをブロックしないよう、有界キューに
// 投入してバックグラウンドで処理する。キューが満杯の場合は加算を
// 破棄する。閲覧数はベストエフォートの統計値であり、欠落を許容する。
package viewcount

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newsportal/internal/metrics"
	"github.com/hitoshi/newsportal/internal/repository"
)

// incrementTimeout は1件の加算処理に許容する時間。
const incrementTimeout = 5 * time.Second

// Worker は閲覧数加算の有界キューとバックグラウンド処理を保持する。
type Worker struct {
	articles  repository.ArticleRepository
	queue     chan string
	collector *metrics.Collector
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// queueSizeはキューの容量。collectorはnilでもよい。
func NewWorker(articles repository.ArticleRepository, queueSize int, collector *metrics.Collector) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		articles:  articles,
		queue:     make(chan string, queueSize),
		collector: collector,
	}
}

// Enqueue は記事IDをキューに投入する。ブロックせず、キューが満杯の
// 場合は投入を破棄してメトリクスに記録する。
func (w *Worker) Enqueue(articleID string) {
	select {
	case w.queue <- articleID:
	default:
		w.collector.RecordViewCountDrop()
		slog.Debug("キューが満杯のため閲覧数加算を破棄しました", "article_id", articleID)
	}
}

// Start はキューからの取り出しと加算処理を開始する。
// コンテキストのキャンセルで停止する。加算の失敗はログに記録して続行する。
func (w *Worker) Start(ctx context.Context) {
	slog.Info("閲覧数ワーカーを開始します", "queue_size", cap(w.queue))

	for {
		select {
		case <-ctx.Done():
			slog.Info("閲覧数ワーカーを停止します", "pending", len(w.queue))
			return
		case articleID := <-w.queue:
			w.increment(articleID)
		}
	}
}

// increment は1件の閲覧数加算を実行する。
func (w *Worker) increment(articleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
	defer cancel()

	if err := w.articles.IncrementViewCount(ctx, articleID); err != nil {
		slog.Warn("閲覧数の加算に失敗しました", "article_id", articleID, "error", err)
	}
}
