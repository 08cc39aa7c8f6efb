package option

import (
	"fmt"
	"strings"

	"ugc-marketplace/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// LockingUpdate is a gorm scope issuing SELECT ... FOR UPDATE. Dialects without
// row locks (sqlite) ignore the clause.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

func ApplyOperator(conds ...Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		for _, c := range conds {
			op := c.Operator
			if op == "" {
				op = EQ
			}
			if op == IN {
				tx = tx.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
				continue
			}
			tx = tx.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
		}
		return tx
	}
}

// WithSortBy orders by SortBy when it is listed in Allow. Without an allow list
// only the direction is applied to the primary key.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		dir := "ASC"
		if strings.EqualFold(s.OrderBy, "desc") {
			dir = "DESC"
		}

		column := "id"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			column = s.SortBy
		}

		return tx.Order(fmt.Sprintf("%s %s", column, dir))
	}
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}

// ApplyPagination applies keyset paging on id. One extra row is requested so
// callers can tell whether another page exists.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if p.Cursor != "" {
			if c, err := pagination.DecodeCursor(p.Cursor); err == nil && c.ID != "" {
				tx = tx.Where("id > ?", c.ID)
			}
		}
		if p.Limit > 0 {
			tx = tx.Limit(p.Limit + 1)
		}
		return tx.Order("id ASC")
	}
}
