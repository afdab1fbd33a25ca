package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/newsportal/internal/model"
)

// mockFeedParser はテスト用のFeedParserモック。
type mockFeedParser struct {
	items []model.CandidateArticle
	err   error
	calls []string
}

func (m *mockFeedParser) FetchItems(_ context.Context, feedURL string) ([]model.CandidateArticle, error) {
	m.calls = append(m.calls, feedURL)
	return m.items, m.err
}

// mockDocumentFetcher はテスト用のDocumentFetcherモック。
// URLごとに返すHTMLを登録する。未登録のURLはエラーを返す。
type mockDocumentFetcher struct {
	pages map[string]string
	calls []string
}

func (m *mockDocumentFetcher) FetchDocument(_ context.Context, pageURL string) (*goquery.Document, error) {
	m.calls = append(m.calls, pageURL)
	html, ok := m.pages[pageURL]
	if !ok {
		return nil, errors.New("page not found")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func TestDispatcher_SelectsFetcherByMethod(t *testing.T) {
	parser := &mockFeedParser{items: []model.CandidateArticle{
		{Title: "記事", SourceURL: "https://example.com/news/1"},
	}}
	d := NewDispatcher(NewFeedFetcher(parser), NewAPIFetcher(), NewScrapeFetcher(&mockDocumentFetcher{}, 20))

	source := &model.Source{
		ID:          "src-1",
		FetchMethod: model.FetchMethodFeed,
		FeedURL:     "https://example.com/rss",
	}

	candidates, err := d.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("候補数が一致しない: %d", len(candidates))
	}
	if candidates[0].SourceID != "src-1" {
		t.Errorf("SourceIDが設定されていない: %q", candidates[0].SourceID)
	}
	if len(parser.calls) != 1 || parser.calls[0] != "https://example.com/rss" {
		t.Errorf("フィードURLでパーサーが呼ばれていない: %v", parser.calls)
	}
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d := NewDispatcher(NewFeedFetcher(&mockFeedParser{}), NewAPIFetcher(), NewScrapeFetcher(&mockDocumentFetcher{}, 20))

	source := &model.Source{ID: "src-1", FetchMethod: model.FetchMethod("unknown")}

	_, err := d.Fetch(context.Background(), source)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らない: %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidFetchMethod {
		t.Errorf("エラーコードが一致しない: %s", apiErr.Code)
	}
}

func TestFeedFetcher_MissingFeedURL(t *testing.T) {
	f := NewFeedFetcher(&mockFeedParser{})

	source := &model.Source{ID: "src-1", FetchMethod: model.FetchMethodFeed}

	if _, err := f.Fetch(context.Background(), source); err == nil {
		t.Error("フィードURL未設定がエラーにならなかった")
	}
}

func TestAPIFetcher_ReturnsEmpty(t *testing.T) {
	f := NewAPIFetcher()

	source := &model.Source{ID: "src-1", FetchMethod: model.FetchMethodAPI, APIEndpoint: "https://api.example.com/v1/news"}

	candidates, err := f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("未実装のAPI方式は空リストを返すべき: %v", candidates)
	}
}

func articlePage(title string) string {
	return fmt.Sprintf(`<html><body>
		<h1>%s</h1>
		<article><p>本文の段落</p></article>
		<img src="/images/photo.jpg">
		<div class="author">記者名</div>
	</body></html>`, title)
}

func scrapeSource() *model.Source {
	return &model.Source{
		ID:          "src-scrape",
		Name:        "スクレイピングソース",
		FetchMethod: model.FetchMethodScrape,
		ScrapingConfig: &model.ScrapingConfig{
			SourceID:            "src-scrape",
			ListPageURL:         "https://example.com/list",
			ArticleLinkSelector: "a.article",
		},
	}
}

func TestScrapeFetcher_ExtractsArticles(t *testing.T) {
	docs := &mockDocumentFetcher{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="article" href="/news/1">記事1</a>
			<a class="article" href="/news/2">記事2</a>
		</body></html>`,
		"https://example.com/news/1": articlePage("最初の記事"),
		"https://example.com/news/2": articlePage("2番目の記事"),
	}}
	f := NewScrapeFetcher(docs, 20)

	candidates, err := f.Fetch(context.Background(), scrapeSource())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("候補数が一致しない: %d", len(candidates))
	}

	first := candidates[0]
	if first.Title != "最初の記事" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.SourceURL != "https://example.com/news/1" {
		t.Errorf("SourceURL = %q", first.SourceURL)
	}
	if !strings.Contains(first.Content, "本文の段落") {
		t.Errorf("ContentにコンテンツHTMLが含まれない: %q", first.Content)
	}
	if first.Summary != "本文の段落" {
		t.Errorf("Summary = %q", first.Summary)
	}
	if first.Author != "記者名" {
		t.Errorf("Author = %q", first.Author)
	}
	if first.OriginalImageURL != "https://example.com/images/photo.jpg" {
		t.Errorf("画像URLが絶対URLに解決されていない: %q", first.OriginalImageURL)
	}
	if first.PublishedAt == nil {
		t.Error("PublishedAtが設定されていない")
	}
	if first.SourceID != "src-scrape" {
		t.Errorf("SourceID = %q", first.SourceID)
	}
}

func TestScrapeFetcher_CapsLinkCount(t *testing.T) {
	var listLinks strings.Builder
	pages := make(map[string]string)
	for i := 1; i <= 25; i++ {
		link := fmt.Sprintf("/news/%d", i)
		listLinks.WriteString(fmt.Sprintf(`<a class="article" href="%s">記事%d</a>`, link, i))
		pages[fmt.Sprintf("https://example.com/news/%d", i)] = articlePage(fmt.Sprintf("記事%d", i))
	}
	pages["https://example.com/list"] = "<html><body>" + listLinks.String() + "</body></html>"

	docs := &mockDocumentFetcher{pages: pages}
	f := NewScrapeFetcher(docs, 20)

	candidates, err := f.Fetch(context.Background(), scrapeSource())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(candidates) != 20 {
		t.Errorf("リンク数の上限が適用されていない: %d", len(candidates))
	}
	// 一覧ページ1回 + 記事ページ20回
	if len(docs.calls) != 21 {
		t.Errorf("取得回数が一致しない: %d", len(docs.calls))
	}
}

func TestScrapeFetcher_DiscardsArticlesWithoutTitle(t *testing.T) {
	docs := &mockDocumentFetcher{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="article" href="/news/1">タイトルあり</a>
			<a class="article" href="/news/2">タイトルなし</a>
		</body></html>`,
		"https://example.com/news/1": articlePage("タイトルあり"),
		"https://example.com/news/2": `<html><body><article><p>タイトル要素のないページ</p></article></body></html>`,
	}}
	f := NewScrapeFetcher(docs, 20)

	candidates, err := f.Fetch(context.Background(), scrapeSource())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("タイトルなしの記事が除外されていない: %d", len(candidates))
	}
	if candidates[0].Title != "タイトルあり" {
		t.Errorf("Title = %q", candidates[0].Title)
	}
}

func TestScrapeFetcher_ArticleFailureDoesNotAbortBatch(t *testing.T) {
	docs := &mockDocumentFetcher{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="article" href="/news/1">取得できる記事</a>
			<a class="article" href="/news/broken">取得できない記事</a>
			<a class="article" href="/news/3">後続の記事</a>
		</body></html>`,
		"https://example.com/news/1": articlePage("取得できる記事"),
		"https://example.com/news/3": articlePage("後続の記事"),
	}}
	f := NewScrapeFetcher(docs, 20)

	candidates, err := f.Fetch(context.Background(), scrapeSource())
	if err != nil {
		t.Fatalf("個別記事の失敗がバッチ全体を止めた: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("候補数が一致しない: %d", len(candidates))
	}
	if candidates[1].Title != "後続の記事" {
		t.Errorf("失敗したリンクの後続が処理されていない: %q", candidates[1].Title)
	}
}

func TestScrapeFetcher_MissingConfig(t *testing.T) {
	f := NewScrapeFetcher(&mockDocumentFetcher{}, 20)

	source := &model.Source{ID: "src-1", FetchMethod: model.FetchMethodScrape}
	if _, err := f.Fetch(context.Background(), source); err == nil {
		t.Error("スクレイピング設定なしがエラーにならなかった")
	}

	source.ScrapingConfig = &model.ScrapingConfig{SourceID: "src-1"}
	if _, err := f.Fetch(context.Background(), source); err == nil {
		t.Error("一覧ページURLなしがエラーにならなかった")
	}
}
