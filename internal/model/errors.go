// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し側がHTTPステータスへマッピングするためのカテゴリを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, conflict, not_found, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateSourceURL = "DUPLICATE_SOURCE_URL"
	ErrCodeSourceNotFound     = "SOURCE_NOT_FOUND"
	ErrCodeCategoryNotFound   = "CATEGORY_NOT_FOUND"
	ErrCodeArticleNotFound    = "ARTICLE_NOT_FOUND"
	ErrCodeInvalidFetchMethod = "INVALID_FETCH_METHOD"
)

// NewDuplicateSourceURLError は同一sourceUrlの記事が既に存在する場合のエラーを生成する。
// 直接作成時のみ返される。バッチインポートでは重複は正常スキップとして扱う。
func NewDuplicateSourceURLError(sourceURL string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSourceURL,
		Message:  fmt.Sprintf("同じ取得元URLの記事が既に存在します: %s", sourceURL),
		Category: "conflict",
	}
}

// NewSourceNotFoundError はソース未検出エラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定されたソースが見つかりません: %s", sourceID),
		Category: "not_found",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "not_found",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", slug),
		Category: "not_found",
	}
}

// NewInvalidFetchMethodError は未知のfetch方式エラーを生成する。
func NewInvalidFetchMethodError(method FetchMethod) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFetchMethod,
		Message:  fmt.Sprintf("サポートされていない取得方式です: %s", method),
		Category: "validation",
	}
}
