// Package option provides composable gorm query options used by the
// generic repository.
package option

import (
	"strings"

	"github.com/flowmarket/flowmarket/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination. It fetches one extra row so
// callers can detect whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}
		db = db.Limit(size + 1)

		token := strings.TrimSpace(p.PageToken)
		if token == "" {
			return db
		}
		cursor, err := pagination.DecodeCursor(token)
		if err != nil || cursor == nil {
			return db
		}
		if cursor.CreatedAt != "" && cursor.ID != "" {
			db = db.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
		return db
	})
}

type QuerySortBy struct {
	Allow   map[string]bool
	Column  string
	Descend bool
}

// WithSortBy orders by the requested column when allowlisted, falling back
// to created_at DESC.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.Column)
		if column == "" || !sort.Allow[column] {
			column = "created_at"
		}
		direction := "DESC"
		if !sort.Descend && sort.Column != "" {
			direction = "ASC"
		}
		return db.Order(column + " " + direction)
	})
}

// WithWhere adds a raw conditional clause.
func WithWhere(query string, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}
