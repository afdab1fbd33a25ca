package news

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/security"
)

// --- テスト用モック ---

type mockArticleRepo struct {
	existing     map[string]bool // source_url -> 存在フラグ
	created      []*model.Article
	bySlug       map[string]*model.Article
	latest       []model.ArticleSummary
	listCalls    int
	incrementIDs []string
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{
		existing: make(map[string]bool),
		bySlug:   make(map[string]*model.Article),
	}
}

func (m *mockArticleRepo) FindByID(_ context.Context, id string) (*model.Article, error) {
	for _, a := range m.created {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockArticleRepo) FindBySlug(_ context.Context, slug string) (*model.Article, error) {
	return m.bySlug[slug], nil
}

func (m *mockArticleRepo) ExistsBySourceURL(_ context.Context, sourceURL string) (bool, error) {
	return m.existing[sourceURL], nil
}

func (m *mockArticleRepo) Create(_ context.Context, article *model.Article) error {
	m.created = append(m.created, article)
	m.existing[article.SourceURL] = true
	return nil
}

func (m *mockArticleRepo) ListLatest(_ context.Context, _, _ int) ([]model.ArticleSummary, error) {
	m.listCalls++
	return m.latest, nil
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
	m.listCalls++
	return m.latest, nil
}

func (m *mockArticleRepo) CountActive(_ context.Context) (int, error) {
	return len(m.latest), nil
}

func (m *mockArticleRepo) CountByCategory(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockArticleRepo) CountBySource(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockArticleRepo) CountBySearch(_ context.Context, _ string) (int, error) {
	return len(m.latest), nil
}

func (m *mockArticleRepo) IncrementViewCount(_ context.Context, id string) error {
	m.incrementIDs = append(m.incrementIDs, id)
	return nil
}

type mockSourceRepo struct {
	bySlug map[string]*model.Source
}

func (m *mockSourceRepo) FindByID(_ context.Context, _ string) (*model.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) FindBySlug(_ context.Context, slug string) (*model.Source, error) {
	return m.bySlug[slug], nil
}

func (m *mockSourceRepo) ListActive(_ context.Context) ([]*model.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) UpdateLastFetched(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type mockCategoryRepo struct {
	bySlug map[string]*model.Category
}

func (m *mockCategoryRepo) FindBySlug(_ context.Context, slug string) (*model.Category, error) {
	return m.bySlug[slug], nil
}

func (m *mockCategoryRepo) ListActive(_ context.Context) ([]*model.Category, error) {
	return nil, nil
}

// memCache はテスト用のインメモリキャッシュ。
type memCache struct {
	entries         map[string][]byte
	removedPatterns []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	return m.entries[key], nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memCache) Remove(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memCache) RemoveByPattern(_ context.Context, pattern string) error {
	m.removedPatterns = append(m.removedPatterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type mockImageStore struct {
	ingested []string // 取り込んだ画像URL
	failWith error
}

func (m *mockImageStore) IngestFromURL(_ context.Context, _, imageURL string) (string, string, error) {
	if m.failWith != nil {
		return "", "", m.failWith
	}
	m.ingested = append(m.ingested, imageURL)
	return "img-id", "thumb-id", nil
}

func (m *mockImageStore) GetBytes(_ context.Context, _ string) ([]byte, string, error) {
	return nil, "", nil
}

func (m *mockImageStore) GetThumbnailID(_ context.Context, _ string) string { return "" }

func (m *mockImageStore) Delete(_ context.Context, _ string) {}

type mockEnqueuer struct {
	enqueued []string
}

func (m *mockEnqueuer) Enqueue(articleID string) {
	m.enqueued = append(m.enqueued, articleID)
}

type fixture struct {
	service    *Service
	articles   *mockArticleRepo
	sources    *mockSourceRepo
	categories *mockCategoryRepo
	cache      *memCache
	images     *mockImageStore
	views      *mockEnqueuer
}

func newFixture() *fixture {
	f := &fixture{
		articles:   newMockArticleRepo(),
		sources:    &mockSourceRepo{bySlug: make(map[string]*model.Source)},
		categories: &mockCategoryRepo{bySlug: make(map[string]*model.Category)},
		cache:      newMemCache(),
		images:     &mockImageStore{},
		views:      &mockEnqueuer{},
	}
	f.service = NewService(f.articles, f.sources, f.categories,
		security.NewContentSanitizer(), f.images, f.cache, f.views)
	return f
}

func candidate(i string) model.CandidateArticle {
	return model.CandidateArticle{
		Title:     "記事" + i,
		Summary:   "要約" + i,
		Content:   "<p>本文" + i + "</p>",
		SourceURL: "https://example.com/news/" + i,
		SourceID:  "src-1",
	}
}

// --- 取り込みのテスト ---

func TestImportArticles_SkipsExistingSourceURLs(t *testing.T) {
	f := newFixture()
	f.articles.existing["https://example.com/news/2"] = true
	f.articles.existing["https://example.com/news/4"] = true

	candidates := []model.CandidateArticle{
		candidate("1"), candidate("2"), candidate("3"), candidate("4"), candidate("5"),
	}

	accepted, err := f.service.ImportArticles(context.Background(), candidates)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if accepted != 3 {
		t.Errorf("受理件数 = %d, want 3", accepted)
	}
	if len(f.articles.created) != 3 {
		t.Errorf("作成件数 = %d, want 3", len(f.articles.created))
	}
	for _, a := range f.articles.created {
		if a.SourceURL == "https://example.com/news/2" || a.SourceURL == "https://example.com/news/4" {
			t.Errorf("既存URLの記事が作成された: %s", a.SourceURL)
		}
	}
}

func TestImportArticles_InvalidatesListCaches(t *testing.T) {
	f := newFixture()

	if _, err := f.service.ImportArticles(context.Background(), []model.CandidateArticle{candidate("1")}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	want := map[string]bool{"news:latest:*": false, "news:featured:*": false}
	for _, p := range f.cache.removedPatterns {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for pattern, seen := range want {
		if !seen {
			t.Errorf("パターン %q が無効化されていない", pattern)
		}
	}
}

func TestImportArticles_NoAcceptedNoInvalidation(t *testing.T) {
	f := newFixture()
	f.articles.existing["https://example.com/news/1"] = true

	accepted, err := f.service.ImportArticles(context.Background(), []model.CandidateArticle{candidate("1")})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if accepted != 0 {
		t.Errorf("受理件数 = %d, want 0", accepted)
	}
	if len(f.cache.removedPatterns) != 0 {
		t.Errorf("受理0件でキャッシュが無効化された: %v", f.cache.removedPatterns)
	}
}

func TestImportArticles_SkipsCandidatesWithoutTitle(t *testing.T) {
	f := newFixture()

	c := candidate("1")
	c.Title = "   "

	accepted, err := f.service.ImportArticles(context.Background(), []model.CandidateArticle{c})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if accepted != 0 {
		t.Errorf("タイトルなし候補が受理された: %d", accepted)
	}
}

func TestCreateArticle_BuildsSanitizedArticle(t *testing.T) {
	f := newFixture()

	c := candidate("1")
	c.Content = `<p>本文</p><script>alert("xss")</script>`
	c.Summary = `<b>太字の要約</b>`
	c.OriginalImageURL = "https://example.com/img/1.jpg"

	article, err := f.service.CreateArticle(context.Background(), c)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if strings.Contains(article.Content, "script") {
		t.Errorf("コンテンツがサニタイズされていない: %q", article.Content)
	}
	if article.PlainText != "本文" {
		t.Errorf("PlainText = %q, want %q", article.PlainText, "本文")
	}
	if article.Summary != "太字の要約" {
		t.Errorf("Summaryのタグが除去されていない: %q", article.Summary)
	}
	if article.Slug == "" {
		t.Error("Slugが生成されていない")
	}
	if article.ID == "" {
		t.Error("IDが生成されていない")
	}
	if !article.IsActive {
		t.Error("新規記事はアクティブであるべき")
	}
	if article.ImageID != "img-id" || article.ThumbID != "thumb-id" {
		t.Errorf("画像IDが設定されていない: image=%q thumb=%q", article.ImageID, article.ThumbID)
	}
	if len(f.images.ingested) != 1 {
		t.Errorf("画像の取り込み回数 = %d, want 1", len(f.images.ingested))
	}
}

func TestCreateArticle_DuplicateSourceURL(t *testing.T) {
	f := newFixture()
	f.articles.existing["https://example.com/news/1"] = true

	_, err := f.service.CreateArticle(context.Background(), candidate("1"))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らない: %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateSourceURL {
		t.Errorf("エラーコードが一致しない: %s", apiErr.Code)
	}
}

func TestCreateArticle_ImageFailureDoesNotFailArticle(t *testing.T) {
	f := newFixture()
	f.images.failWith = errors.New("download failed")

	c := candidate("1")
	c.OriginalImageURL = "https://example.com/img/broken.jpg"

	article, err := f.service.CreateArticle(context.Background(), c)
	if err != nil {
		t.Fatalf("画像失敗が記事作成を止めた: %v", err)
	}
	if article.ImageID != "" || article.ThumbID != "" {
		t.Errorf("失敗した画像のIDが設定された: image=%q thumb=%q", article.ImageID, article.ThumbID)
	}
}

// --- 読み取りのテスト ---

func TestGetLatest_CachesResult(t *testing.T) {
	f := newFixture()
	f.articles.latest = []model.ArticleSummary{{ID: "a-1", Title: "記事1"}}

	ctx := context.Background()

	first, err := f.service.GetLatest(ctx, 1, 20)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(first.Items) != 1 || first.TotalCount != 1 {
		t.Fatalf("結果が一致しない: %+v", first)
	}

	second, err := f.service.GetLatest(ctx, 1, 20)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if f.articles.listCalls != 1 {
		t.Errorf("キャッシュヒット時にリポジトリが再度呼ばれた: %d回", f.articles.listCalls)
	}
	if len(second.Items) != 1 || second.Items[0].Title != "記事1" {
		t.Errorf("キャッシュから復元した結果が一致しない: %+v", second)
	}
}

func TestGetLatest_NormalizesPaging(t *testing.T) {
	f := newFixture()

	result, err := f.service.GetLatest(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Page != 1 || result.PageSize != defaultPageSize {
		t.Errorf("ページ正規化が行われていない: page=%d pageSize=%d", result.Page, result.PageSize)
	}
	if result.Items == nil {
		t.Error("Itemsはnilではなく空スライスであるべき")
	}
}

func TestGetByCategorySlug_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetByCategorySlug(context.Background(), "missing", 1, 20)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らない: %v", err)
	}
	if apiErr.Code != model.ErrCodeCategoryNotFound {
		t.Errorf("エラーコードが一致しない: %s", apiErr.Code)
	}
}

func TestGetDetail_EnqueuesViewCount(t *testing.T) {
	f := newFixture()
	f.articles.bySlug["breaking-20260824093000"] = &model.Article{
		ID:   "a-1",
		Slug: "breaking-20260824093000",
	}

	article, err := f.service.GetDetail(context.Background(), "breaking-20260824093000")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if article.ID != "a-1" {
		t.Errorf("記事IDが一致しない: %q", article.ID)
	}
	if len(f.views.enqueued) != 1 || f.views.enqueued[0] != "a-1" {
		t.Errorf("閲覧数加算がキューに投入されていない: %v", f.views.enqueued)
	}
}

func TestGetDetail_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetDetail(context.Background(), "missing-slug")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らない: %v", err)
	}
	if apiErr.Code != model.ErrCodeArticleNotFound {
		t.Errorf("エラーコードが一致しない: %s", apiErr.Code)
	}
	if len(f.views.enqueued) != 0 {
		t.Errorf("未検出の記事で閲覧数が投入された: %v", f.views.enqueued)
	}
}

func TestSearch_EmptyQueryReturnsEmptyResult(t *testing.T) {
	f := newFixture()

	result, err := f.service.Search(context.Background(), "  ", 1, 20)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(result.Items) != 0 || result.TotalCount != 0 {
		t.Errorf("空クエリは空結果を返すべき: %+v", result)
	}
	if f.articles.listCalls != 0 {
		t.Errorf("空クエリでリポジトリが呼ばれた: %d回", f.articles.listCalls)
	}
}
