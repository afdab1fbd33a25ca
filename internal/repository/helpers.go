package repository

import "database/sql"

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
