package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// mockSSRFGuard はテスト用のSSRFGuardServiceモック。
// httptestサーバーはループバックで動作するため、検証を通過させ
// 素のHTTPクライアントを返す。
type mockSSRFGuard struct{}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return nil
}

func mustParseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("HTMLの解析に失敗: %v", err)
	}
	return doc
}

func TestFetchDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agentヘッダが設定されていない: %q", ua)
		}
		w.Write([]byte(`<html><body><h1>見出し</h1></body></html>`))
	}))
	defer server.Close()

	e := NewExtractor(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	doc, err := e.FetchDocument(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got := ExtractText(doc, "h1"); got != "見出し" {
		t.Errorf("取得したドキュメントの内容が一致しない: %q", got)
	}
}

func TestFetchDocument_Non2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e := NewExtractor(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	if _, err := e.FetchDocument(context.Background(), server.URL); err == nil {
		t.Error("404レスポンスがエラーにならなかった")
	}
}

func TestExtractText(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<h1>  最初の見出し  </h1>
		<h1>2番目の見出し</h1>
		<p class="summary">要約テキスト</p>
	</body></html>`)

	tests := []struct {
		name     string
		selector string
		want     string
	}{
		{"最初の一致要素のテキストを返す", "h1", "最初の見出し"},
		{"クラスセレクタ", "p.summary", "要約テキスト"},
		{"一致なしは空文字列", ".missing", ""},
		{"空セレクタは空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(doc, tt.selector); got != tt.want {
				t.Errorf("ExtractText(%q) = %q, want %q", tt.selector, got, tt.want)
			}
		})
	}
}

func TestExtractAttribute(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<img src="https://example.com/a.jpg" alt="写真">
		<img src="https://example.com/b.jpg">
	</body></html>`)

	if got := ExtractAttribute(doc, "img", "src"); got != "https://example.com/a.jpg" {
		t.Errorf("最初の一致要素の属性が返らない: %q", got)
	}
	if got := ExtractAttribute(doc, "img", "data-missing"); got != "" {
		t.Errorf("存在しない属性は空文字列を返すべき: %q", got)
	}
	if got := ExtractAttribute(doc, ".missing", "src"); got != "" {
		t.Errorf("一致なしは空文字列を返すべき: %q", got)
	}
}

func TestExtractLinks(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<a href="/news/1">記事1</a>
		<a href="https://example.com/news/2">記事2</a>
		<a href="/news/1">記事1の重複</a>
		<a href="#section">ページ内リンク</a>
		<a href="javascript:void(0)">スクリプト</a>
		<a>hrefなし</a>
		<a href="mailto:info@example.com">メール</a>
	</body></html>`)

	base, _ := url.Parse("https://example.com/index.html")
	got := ExtractLinks(doc, base, "a")

	want := []string{
		"https://example.com/news/1",
		"https://example.com/news/2",
	}
	if len(got) != len(want) {
		t.Fatalf("リンク数が一致しない: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractLinks_NoMatches(t *testing.T) {
	doc := mustParseDoc(t, `<html><body><p>リンクなし</p></body></html>`)
	base, _ := url.Parse("https://example.com/")

	if got := ExtractLinks(doc, base, "a.article-link"); len(got) != 0 {
		t.Errorf("一致なしは空スライスを返すべき: %v", got)
	}
}
