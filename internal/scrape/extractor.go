// Package scrape はHTMLページの取得とCSSセレクタによる要素抽出を提供する。
//
// goqueryでドキュメントを解析し、セレクタに一致する要素が存在しない場合は
// エラーではなく空の結果を返す。ページ構造の揺れで取り込み全体を
// 止めないための設計である。
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/newsportal/internal/security"
)

// Extractor はWebページの取得とセレクタベースの要素抽出を行う。
// 取得にはSSRF防止機能付きのHTTPクライアントを使用する。
type Extractor struct {
	ssrfGuard security.SSRFGuardService
	timeout   time.Duration
	maxSize   int64
	userAgent string
}

// NewExtractor はExtractorの新しいインスタンスを生成する。
func NewExtractor(ssrfGuard security.SSRFGuardService, timeout time.Duration, maxSize int64, userAgent string) *Extractor {
	return &Extractor{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
		userAgent: userAgent,
	}
}

// FetchDocument は指定URLのページを取得し、解析済みドキュメントを返す。
// URLの事前検証とSSRF防止クライアントによる取得を行う。
// レスポンスボディはmaxSizeまでで打ち切る。
func (e *Extractor) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := e.ssrfGuard.ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("URLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	client := e.ssrfGuard.NewSafeClient(e.timeout, e.maxSize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ページの取得に失敗しました: status=%d url=%s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, e.maxSize))
	if err != nil {
		return nil, fmt.Errorf("HTMLの解析に失敗しました: %w", err)
	}

	return doc, nil
}

// ExtractText はセレクタに一致する最初の要素のテキストを返す。
// 一致する要素がない場合は空文字列を返す。
func ExtractText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// ExtractHTML はセレクタに一致する最初の要素の内部HTMLを返す。
// 一致する要素がない場合やHTMLの取得に失敗した場合は空文字列を返す。
func ExtractHTML(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	inner, err := sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(inner)
}

// ExtractAttribute はセレクタに一致する最初の要素の属性値を返す。
// 一致する要素がない場合や属性が存在しない場合は空文字列を返す。
func ExtractAttribute(doc *goquery.Document, selector, attr string) string {
	if selector == "" || attr == "" {
		return ""
	}
	value, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}

// ExtractLinks はセレクタに一致する全要素のhref属性を絶対URLに解決して返す。
// 相対URLはbaseURLで解決する。重複は出現順を保ったまま除去し、
// 空のhrefやjavascriptスキーム、ページ内フラグメントのみのリンクは除外する。
func ExtractLinks(doc *goquery.Document, baseURL *url.URL, selector string) []string {
	if selector == "" {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := baseURL.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		absolute := resolved.String()
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}
		links = append(links, absolute)
	})

	return links
}
