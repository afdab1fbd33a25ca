// Package feed はRSS/AtomフィードのフェッチとCandidateArticleへの変換を提供する。
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/security"
)

// Parser はフィードのフェッチと解析を行う。
// フェッチにはSSRF防止機能付きのHTTPクライアントを使用し、
// ボディを取得してからgofeedで解析する。
type Parser struct {
	ssrfGuard security.SSRFGuardService
	timeout   time.Duration
	maxSize   int64
	userAgent string
	parser    *gofeed.Parser
}

// NewParser はParserの新しいインスタンスを生成する。
func NewParser(ssrfGuard security.SSRFGuardService, timeout time.Duration, maxSize int64, userAgent string) *Parser {
	return &Parser{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
		userAgent: userAgent,
		parser:    gofeed.NewParser(),
	}
}

// FetchItems は指定URLのフィードを取得し、候補記事のリストに変換する。
// フィードの取得に失敗した場合はエラーを返す。解析に失敗した場合
// （不正なXML等）はエラーではなく空のリストを返し、取り込み全体を
// 止めない。リンクまたはタイトルを持たないアイテムは除外される。
func (p *Parser) FetchItems(ctx context.Context, feedURL string) ([]model.CandidateArticle, error) {
	if err := p.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	client := p.ssrfGuard.NewSafeClient(p.timeout, p.maxSize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("フィードの取得に失敗しました: status=%d url=%s", resp.StatusCode, feedURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxSize))
	if err != nil {
		return nil, fmt.Errorf("フィードボディの読み取りに失敗しました: %w", err)
	}

	parsed, err := p.parser.ParseString(string(body))
	if err != nil {
		slog.Warn("フィードの解析に失敗しました", "url", feedURL, "error", err)
		return nil, nil
	}

	candidates := make([]model.CandidateArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		candidate, ok := toCandidate(item)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// toCandidate はフィードアイテムを候補記事に変換する。
// タイトルまたはリンクを持たないアイテムは変換対象外。
func toCandidate(item *gofeed.Item) (model.CandidateArticle, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return model.CandidateArticle{}, false
	}

	candidate := model.CandidateArticle{
		Title:            title,
		Summary:          strings.TrimSpace(item.Description),
		Content:          item.Content,
		SourceURL:        link,
		OriginalImageURL: firstImageURL(item),
	}

	if len(item.Authors) > 0 {
		candidate.Author = strings.TrimSpace(item.Authors[0].Name)
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		candidate.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		candidate.PublishedAt = &updated
	}

	return candidate, true
}

// firstImageURL はアイテムから最初の画像URLを探す。
// 優先順位: フィードのimage要素、画像タイプのenclosure、
// コンテンツHTML内の最初のimgタグ、説明HTML内の最初のimgタグ。
// 見つからない場合は空文字列を返す。
func firstImageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if src := imgSrcFromHTML(item.Content); src != "" {
		return src
	}
	return imgSrcFromHTML(item.Description)
}

// imgSrcFromHTML はHTML断片から最初のimgタグのsrc属性を抽出する。
func imgSrcFromHTML(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return strings.TrimSpace(src)
}
