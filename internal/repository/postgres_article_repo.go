package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsportal/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// articleColumns は記事詳細クエリのSELECT句。
const articleColumns = `id, title, slug, summary, content, plain_text, source_url,
	original_image_url, image_id, thumb_id, author, published_at, fetched_at,
	view_count, is_featured, is_active, source_id, category_id, created_at, updated_at`

// scanArticle は1行を*model.Articleに変換する。ErrNoRowsはnilとして扱う。
func scanArticle(row *sql.Row) (*model.Article, error) {
	a := &model.Article{}
	var publishedAt sql.NullTime
	var categoryID sql.NullString

	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Summary, &a.Content, &a.PlainText, &a.SourceURL,
		&a.OriginalImageURL, &a.ImageID, &a.ThumbID, &a.Author, &publishedAt, &a.FetchedAt,
		&a.ViewCount, &a.IsFeatured, &a.IsActive, &a.SourceID, &categoryID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	if categoryID.Valid {
		a.CategoryID = &categoryID.String
	}

	return a, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

// FindBySlug は指定slugのアクティブな記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1 AND is_active`, slug)
	return scanArticle(row)
}

// ExistsBySourceURL は指定source_urlの記事が存在するかを返す。
// is_activeを条件に含めない。一度取り込んだURLは再取り込みしない。
func (r *PostgresArticleRepo) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE source_url = $1)`, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("記事の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は記事を作成する。
// slug/source_urlの一意制約違反はそのままエラーとして返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, a *model.Article) error {
	var categoryID sql.NullString
	if a.CategoryID != nil {
		categoryID = sql.NullString{String: *a.CategoryID, Valid: true}
	}
	var publishedAt sql.NullTime
	if a.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *a.PublishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, slug, summary, content, plain_text, source_url,
		    original_image_url, image_id, thumb_id, author, published_at, fetched_at,
		    view_count, is_featured, is_active, source_id, category_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		a.ID, a.Title, a.Slug, a.Summary, a.Content, a.PlainText, a.SourceURL,
		a.OriginalImageURL, a.ImageID, a.ThumbID, a.Author, publishedAt, a.FetchedAt,
		a.ViewCount, a.IsFeatured, a.IsActive, a.SourceID, categoryID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// summaryColumns は一覧クエリのSELECT句。ソース名をJOINで取得する。
const summaryColumns = `a.id, a.title, a.slug, a.summary, a.thumb_id, a.original_image_url,
	a.author, a.published_at, a.source_id, s.name, a.category_id`

// scanSummaries は複数行を[]model.ArticleSummaryに変換する。
func scanSummaries(rows *sql.Rows) ([]model.ArticleSummary, error) {
	defer rows.Close()

	summaries := make([]model.ArticleSummary, 0)
	for rows.Next() {
		var s model.ArticleSummary
		var publishedAt sql.NullTime
		var categoryID sql.NullString

		if err := rows.Scan(
			&s.ID, &s.Title, &s.Slug, &s.Summary, &s.ThumbID, &s.ImageURL,
			&s.Author, &publishedAt, &s.SourceID, &s.SourceName, &categoryID,
		); err != nil {
			return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
		}

		if publishedAt.Valid {
			s.PublishedAt = &publishedAt.Time
		}
		if categoryID.Valid {
			s.CategoryID = &categoryID.String
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}
	return summaries, nil
}

// ListLatest はアクティブな記事をpublished_at降順でページ取得する。
func (r *PostgresArticleRepo) ListLatest(ctx context.Context, page, pageSize int) ([]model.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM articles a JOIN sources s ON s.id = a.source_id
		 WHERE a.is_active
		 ORDER BY a.published_at DESC NULLS LAST
		 LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("最新記事の取得に失敗しました: %w", err)
	}
	return scanSummaries(rows)
}

// ListByCategory は指定カテゴリのアクティブな記事をページ取得する。
func (r *PostgresArticleRepo) ListByCategory(ctx context.Context, categoryID string, page, pageSize int) ([]model.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM articles a JOIN sources s ON s.id = a.source_id
		 WHERE a.is_active AND a.category_id = $1
		 ORDER BY a.published_at DESC NULLS LAST
		 LIMIT $2 OFFSET $3`,
		categoryID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ別記事の取得に失敗しました: %w", err)
	}
	return scanSummaries(rows)
}

// ListBySource は指定ソースのアクティブな記事をページ取得する。
func (r *PostgresArticleRepo) ListBySource(ctx context.Context, sourceID string, page, pageSize int) ([]model.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM articles a JOIN sources s ON s.id = a.source_id
		 WHERE a.is_active AND a.source_id = $1
		 ORDER BY a.published_at DESC NULLS LAST
		 LIMIT $2 OFFSET $3`,
		sourceID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース別記事の取得に失敗しました: %w", err)
	}
	return scanSummaries(rows)
}

// ListFeatured はフィーチャー記事をpublished_at降順で最大count件取得する。
func (r *PostgresArticleRepo) ListFeatured(ctx context.Context, count int) ([]model.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM articles a JOIN sources s ON s.id = a.source_id
		 WHERE a.is_active AND a.is_featured
		 ORDER BY a.published_at DESC NULLS LAST
		 LIMIT $1`,
		count,
	)
	if err != nil {
		return nil, fmt.Errorf("フィーチャー記事の取得に失敗しました: %w", err)
	}
	return scanSummaries(rows)
}

// SearchByText はplain_text/titleの部分一致で記事を検索する。
// 全文検索ランキングは行わない。ILIKEによる単純な部分一致のみ。
func (r *PostgresArticleRepo) SearchByText(ctx context.Context, query string, page, pageSize int) ([]model.ArticleSummary, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM articles a JOIN sources s ON s.id = a.source_id
		 WHERE a.is_active AND (a.title ILIKE $1 OR a.plain_text ILIKE $1)
		 ORDER BY a.published_at DESC NULLS LAST
		 LIMIT $2 OFFSET $3`,
		pattern, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("記事の検索に失敗しました: %w", err)
	}
	return scanSummaries(rows)
}

// CountActive はアクティブな記事の総数を返す。
func (r *PostgresArticleRepo) CountActive(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM articles WHERE is_active`)
}

// CountByCategory は指定カテゴリのアクティブな記事数を返す。
func (r *PostgresArticleRepo) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM articles WHERE is_active AND category_id = $1`, categoryID)
}

// CountBySource は指定ソースのアクティブな記事数を返す。
func (r *PostgresArticleRepo) CountBySource(ctx context.Context, sourceID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM articles WHERE is_active AND source_id = $1`, sourceID)
}

// CountBySearch は検索条件に一致するアクティブな記事数を返す。
func (r *PostgresArticleRepo) CountBySearch(ctx context.Context, query string) (int, error) {
	pattern := "%" + query + "%"
	return r.count(ctx,
		`SELECT COUNT(*) FROM articles WHERE is_active AND (title ILIKE $1 OR plain_text ILIKE $1)`,
		pattern)
}

func (r *PostgresArticleRepo) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// IncrementViewCount は閲覧数を1加算する。
// 対象記事が存在しない場合もエラーにしない（ベストエフォート）。
func (r *PostgresArticleRepo) IncrementViewCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	return nil
}
