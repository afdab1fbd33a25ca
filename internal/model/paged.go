// Package model はドメインモデルを定義する。
package model

// PagedResult はページネーション付きの読み取り結果を表す。
// キャッシュにはこの形のままJSONシリアライズして格納する。
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

// EmptyPagedResult は空のPagedResultを生成する。
func EmptyPagedResult[T any](page, pageSize int) PagedResult[T] {
	return PagedResult[T]{
		Items:    []T{},
		Page:     page,
		PageSize: pageSize,
	}
}
