package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newsportal/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したニュースソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// sourceColumns はソースクエリのSELECT句。ScrapingConfigをLEFT JOINで取得する。
const sourceColumns = `s.id, s.name, s.slug, s.base_url, s.logo_url, s.fetch_method,
	s.feed_url, s.api_endpoint, s.api_key, s.fetch_interval_minutes, s.last_fetched_at,
	s.is_active, s.created_at, s.updated_at,
	c.id, c.list_page_url, c.article_link_selector, c.title_selector, c.content_selector,
	c.summary_selector, c.image_selector, c.date_selector, c.author_selector`

// scanSource はソース1行（ScrapingConfig付き）を読み取る。
func scanSource(scan func(dest ...interface{}) error) (*model.Source, error) {
	src := &model.Source{}
	var lastFetchedAt sql.NullTime
	var cfgID, listPageURL, linkSel, titleSel, contentSel, summarySel, imageSel, dateSel, authorSel sql.NullString

	err := scan(
		&src.ID, &src.Name, &src.Slug, &src.BaseURL, &src.LogoURL, &src.FetchMethod,
		&src.FeedURL, &src.APIEndpoint, &src.APIKey, &src.FetchIntervalMinutes, &lastFetchedAt,
		&src.IsActive, &src.CreatedAt, &src.UpdatedAt,
		&cfgID, &listPageURL, &linkSel, &titleSel, &contentSel,
		&summarySel, &imageSel, &dateSel, &authorSel,
	)
	if err != nil {
		return nil, err
	}

	if lastFetchedAt.Valid {
		src.LastFetchedAt = &lastFetchedAt.Time
	}
	if cfgID.Valid {
		src.ScrapingConfig = &model.ScrapingConfig{
			ID:                  cfgID.String,
			SourceID:            src.ID,
			ListPageURL:         nullStringValue(listPageURL),
			ArticleLinkSelector: nullStringValue(linkSel),
			TitleSelector:       nullStringValue(titleSel),
			ContentSelector:     nullStringValue(contentSel),
			SummarySelector:     nullStringValue(summarySel),
			ImageSelector:       nullStringValue(imageSel),
			DateSelector:        nullStringValue(dateSel),
			AuthorSelector:      nullStringValue(authorSel),
		}
	}

	return src, nil
}

// FindByID は指定IDのソースをScrapingConfig付きで取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources s LEFT JOIN scraping_configs c ON c.source_id = s.id
		 WHERE s.id = $1`, id)

	src, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	return src, nil
}

// FindBySlug は指定slugのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindBySlug(ctx context.Context, slug string) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources s LEFT JOIN scraping_configs c ON c.source_id = s.id
		 WHERE s.slug = $1`, slug)

	src, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	return src, nil
}

// ListActive はアクティブなソース一覧をScrapingConfig付きで取得する。
func (r *PostgresSourceRepo) ListActive(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources s LEFT JOIN scraping_configs c ON c.source_id = s.id
		 WHERE s.is_active
		 ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("アクティブソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sources := make([]*model.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ソース一覧の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の読み取りに失敗しました: %w", err)
	}
	return sources, nil
}

// UpdateLastFetched は最終フェッチ日時を指定時刻に更新する。
func (r *PostgresSourceRepo) UpdateLastFetched(ctx context.Context, id string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_fetched_at = $2, updated_at = now() WHERE id = $1`,
		id, fetchedAt)
	if err != nil {
		return fmt.Errorf("最終フェッチ日時の更新に失敗しました: %w", err)
	}
	return nil
}
