package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/newsportal/internal/model"
	"github.com/hitoshi/newsportal/internal/scrape"
)

// デフォルトセレクタ。ScrapingConfigの対応フィールドが空の場合に適用される。
const (
	defaultLinkSelector    = "a"
	defaultTitleSelector   = "h1"
	defaultContentSelector = "article"
	defaultSummarySelector = "p"
	defaultImageSelector   = "img"
	defaultAuthorSelector  = ".author"
)

// dateLayouts はスクレイピングした日付テキストの解析に試行するレイアウト。
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"2 January 2006",
}

// DocumentFetcher はWebページの取得と解析のインターフェースを定義する。
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// scrapeFetcher はHTMLスクレイピングによる取得を行うSourceFetcherの実装。
// 一覧ページから記事リンクを収集し、各記事ページを個別に取得する。
type scrapeFetcher struct {
	extractor   DocumentFetcher
	maxArticles int
}

// NewScrapeFetcher はスクレイピング取得方式のSourceFetcherを生成する。
// maxArticlesは一覧ページから辿る記事リンク数の上限。
func NewScrapeFetcher(extractor DocumentFetcher, maxArticles int) SourceFetcher {
	return &scrapeFetcher{
		extractor:   extractor,
		maxArticles: maxArticles,
	}
}

// Fetch は一覧ページから記事リンクを収集し、各記事ページの内容を抽出する。
// スクレイピング設定と一覧ページURLは必須。個々の記事ページの取得失敗は
// ログに記録して続行し、残りの記事の取り込みを妨げない。
// タイトルを抽出できなかった記事は候補から除外される。
func (f *scrapeFetcher) Fetch(ctx context.Context, source *model.Source) ([]model.CandidateArticle, error) {
	cfg := source.ScrapingConfig
	if cfg == nil {
		return nil, fmt.Errorf("ソースにスクレイピング設定がありません: %s", source.ID)
	}
	if cfg.ListPageURL == "" {
		return nil, fmt.Errorf("スクレイピング設定に一覧ページURLがありません: %s", source.ID)
	}

	listDoc, err := f.extractor.FetchDocument(ctx, cfg.ListPageURL)
	if err != nil {
		return nil, fmt.Errorf("一覧ページの取得に失敗しました: %w", err)
	}

	baseURL, err := url.Parse(cfg.ListPageURL)
	if err != nil {
		return nil, fmt.Errorf("一覧ページURLの解析に失敗しました: %w", err)
	}

	linkSelector := cfg.ArticleLinkSelector
	if linkSelector == "" {
		linkSelector = defaultLinkSelector
	}

	links := scrape.ExtractLinks(listDoc, baseURL, linkSelector)
	if len(links) > f.maxArticles {
		links = links[:f.maxArticles]
	}

	candidates := make([]model.CandidateArticle, 0, len(links))
	for _, link := range links {
		candidate, err := f.fetchArticleContent(ctx, cfg, link)
		if err != nil {
			slog.Warn("記事ページの取得に失敗しました",
				"source_id", source.ID,
				"url", link,
				"error", err)
			continue
		}
		if candidate.Title == "" {
			slog.Debug("タイトルを抽出できなかったため記事を除外します",
				"source_id", source.ID,
				"url", link)
			continue
		}
		candidate.SourceID = source.ID
		candidates = append(candidates, candidate)
	}

	slog.Info("スクレイピングで記事候補を取得しました",
		"source_id", source.ID,
		"source_name", source.Name,
		"links", len(links),
		"count", len(candidates))

	return candidates, nil
}

// fetchArticleContent は記事ページを取得し、セレクタで各フィールドを抽出する。
// 設定されていないセレクタにはデフォルトセレクタを使用する。
func (f *scrapeFetcher) fetchArticleContent(ctx context.Context, cfg *model.ScrapingConfig, articleURL string) (model.CandidateArticle, error) {
	doc, err := f.extractor.FetchDocument(ctx, articleURL)
	if err != nil {
		return model.CandidateArticle{}, err
	}

	candidate := model.CandidateArticle{
		Title:            scrape.ExtractText(doc, selectorOrDefault(cfg.TitleSelector, defaultTitleSelector)),
		Summary:          scrape.ExtractText(doc, selectorOrDefault(cfg.SummarySelector, defaultSummarySelector)),
		Content:          scrape.ExtractHTML(doc, selectorOrDefault(cfg.ContentSelector, defaultContentSelector)),
		Author:           scrape.ExtractText(doc, selectorOrDefault(cfg.AuthorSelector, defaultAuthorSelector)),
		SourceURL:        articleURL,
		OriginalImageURL: f.extractImageURL(doc, cfg, articleURL),
	}

	published := f.extractPublishedAt(doc, cfg)
	candidate.PublishedAt = &published

	return candidate, nil
}

// extractImageURL は記事ページから画像URLを抽出し、絶対URLに解決する。
func (f *scrapeFetcher) extractImageURL(doc *goquery.Document, cfg *model.ScrapingConfig, articleURL string) string {
	src := scrape.ExtractAttribute(doc, selectorOrDefault(cfg.ImageSelector, defaultImageSelector), "src")
	if src == "" {
		return ""
	}

	parsed, err := url.Parse(src)
	if err != nil {
		return ""
	}
	base, err := url.Parse(articleURL)
	if err != nil {
		return src
	}
	return base.ResolveReference(parsed).String()
}

// extractPublishedAt は日付セレクタのテキストを既知のレイアウトで解析する。
// セレクタ未設定、または解析できない場合は現在時刻（UTC）を返す。
func (f *scrapeFetcher) extractPublishedAt(doc *goquery.Document, cfg *model.ScrapingConfig) time.Time {
	if cfg.DateSelector != "" {
		text := strings.TrimSpace(scrape.ExtractText(doc, cfg.DateSelector))
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Now().UTC()
}

func selectorOrDefault(selector, fallback string) string {
	if selector != "" {
		return selector
	}
	return fallback
}
