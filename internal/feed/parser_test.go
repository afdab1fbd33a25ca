package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
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

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>ニュースフィード</title>
    <link>https://example.com</link>
    <item>
      <title>最初の記事</title>
      <link>https://example.com/news/1</link>
      <description>&lt;p&gt;要約1&lt;/p&gt;&lt;img src="https://example.com/img/1.jpg"&gt;</description>
      <author>taro@example.com (山田太郎)</author>
      <pubDate>Mon, 24 Aug 2026 09:30:00 GMT</pubDate>
    </item>
    <item>
      <title>2番目の記事</title>
      <link>https://example.com/news/2</link>
      <description>画像なしの要約</description>
    </item>
    <item>
      <title></title>
      <link>https://example.com/news/3</link>
      <description>タイトルなしのアイテム</description>
    </item>
    <item>
      <title>リンクなしのアイテム</title>
      <description>除外される</description>
    </item>
  </channel>
</rss>`

func newFeedServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
}

func TestFetchItems(t *testing.T) {
	server := newFeedServer(sampleRSS)
	defer server.Close()

	p := NewParser(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	items, err := p.FetchItems(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	// タイトルなし・リンクなしの2アイテムは除外される
	if len(items) != 2 {
		t.Fatalf("アイテム数が一致しない: got %d, want 2", len(items))
	}

	first := items[0]
	if first.Title != "最初の記事" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.SourceURL != "https://example.com/news/1" {
		t.Errorf("SourceURL = %q", first.SourceURL)
	}
	if first.OriginalImageURL != "https://example.com/img/1.jpg" {
		t.Errorf("説明HTML内のimg srcが抽出されていない: %q", first.OriginalImageURL)
	}
	if first.PublishedAt == nil {
		t.Fatal("PublishedAtがnil")
	}
	want := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", first.PublishedAt, want)
	}

	second := items[1]
	if second.OriginalImageURL != "" {
		t.Errorf("画像なしアイテムのOriginalImageURLは空のはず: %q", second.OriginalImageURL)
	}
	if second.PublishedAt != nil {
		t.Errorf("日付なしアイテムのPublishedAtはnilのはず: %v", second.PublishedAt)
	}
}

func TestFetchItems_MalformedFeedReturnsEmpty(t *testing.T) {
	server := newFeedServer(`これはフィードではない`)
	defer server.Close()

	p := NewParser(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	items, err := p.FetchItems(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("解析失敗はエラーにしない設計: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("不正なフィードは空リストを返すべき: %v", items)
	}
}

func TestFetchItems_HTTPErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewParser(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	if _, err := p.FetchItems(context.Background(), server.URL); err == nil {
		t.Error("HTTPエラーが伝播していない")
	}
}

func TestFetchItems_EnclosureImage(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>フィード</title>
    <link>https://example.com</link>
    <item>
      <title>エンクロージャ付き記事</title>
      <link>https://example.com/news/10</link>
      <enclosure url="https://example.com/img/10.png" type="image/png" length="1024"/>
    </item>
  </channel>
</rss>`
	server := newFeedServer(rss)
	defer server.Close()

	p := NewParser(&mockSSRFGuard{}, 5*time.Second, 1<<20, "test-agent")

	items, err := p.FetchItems(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("アイテム数が一致しない: %d", len(items))
	}
	if items[0].OriginalImageURL != "https://example.com/img/10.png" {
		t.Errorf("enclosureの画像URLが抽出されていない: %q", items[0].OriginalImageURL)
	}
}
