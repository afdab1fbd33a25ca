package viewcount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/newsportal/internal/model"
)

// mockArticleRepo は閲覧数加算のみを記録するArticleRepositoryモック。
type mockArticleRepo struct {
	mu         sync.Mutex
	increments []string
}

func (m *mockArticleRepo) FindByID(_ context.Context, _ string) (*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) FindBySlug(_ context.Context, _ string) (*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) ExistsBySourceURL(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (m *mockArticleRepo) Create(_ context.Context, _ *model.Article) error { return nil }

func (m *mockArticleRepo) ListLatest(_ context.Context, _, _ int) ([]model.ArticleSummary, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListByCategory(_ context.Context, _ string, _, _ int) ([]model.ArticleSummary, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListBySource(_ context.Context, _ string, _, _ int) ([]model.ArticleSummary, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListFeatured(_ context.Context, _ int) ([]model.ArticleSummary, error) {
	return nil, nil
}

func (m *mockArticleRepo) SearchByText(_ context.Context, _ string, _, _ int) ([]model.ArticleSummary, error) {
	return nil, nil
}

func (m *mockArticleRepo) CountActive(_ context.Context) (int, error)             { return 0, nil }
func (m *mockArticleRepo) CountByCategory(_ context.Context, _ string) (int, error) { return 0, nil }
func (m *mockArticleRepo) CountBySource(_ context.Context, _ string) (int, error)   { return 0, nil }
func (m *mockArticleRepo) CountBySearch(_ context.Context, _ string) (int, error)   { return 0, nil }

func (m *mockArticleRepo) IncrementViewCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments = append(m.increments, id)
	return nil
}

func (m *mockArticleRepo) incremented() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.increments...)
}

func TestWorker_ProcessesEnqueuedIDs(t *testing.T) {
	repo := &mockArticleRepo{}
	w := NewWorker(repo, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Enqueue("a-1")
	w.Enqueue("a-2")
	w.Enqueue("a-3")

	deadline := time.After(2 * time.Second)
	for {
		if len(repo.incremented()) == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("加算が処理されない: %v", repo.incremented())
		case <-time.After(10 * time.Millisecond):
		}
	}

	got := repo.incremented()
	want := []string{"a-1", "a-2", "a-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("加算順序が一致しない: got %v, want %v", got, want)
			break
		}
	}
}

func TestWorker_DropsWhenQueueFull(t *testing.T) {
	repo := &mockArticleRepo{}
	w := NewWorker(repo, 2, nil)

	// ワーカーを起動せずにキューを満杯にする
	w.Enqueue("a-1")
	w.Enqueue("a-2")
	w.Enqueue("a-3") // 破棄される

	if got := len(w.queue); got != 2 {
		t.Errorf("キュー長 = %d, want 2", got)
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	repo := &mockArticleRepo{}
	w := NewWorker(repo, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後もワーカーが停止しない")
	}
}
