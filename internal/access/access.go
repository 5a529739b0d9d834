// Package access implements column-level read authorization. Checks are made
// against the columns of the underlying table a query actually touches, not
// against the virtual columns derived from them.
package access

import (
	"sort"
	"sync"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// Authorizer decides whether a read of the named columns is permitted.
type Authorizer interface {
	// CheckSelect returns nil if all named columns of table may be read,
	// or an ACCESS_DENIED error naming the first rejected column.
	CheckSelect(table string, columns []string) error
}

// AllowAll permits every read.
type AllowAll struct{}

func (AllowAll) CheckSelect(table string, columns []string) error { return nil }

// ColumnPolicy is an allow-list authorizer: for each table it records the set
// of readable columns. Tables without an entry are fully readable.
type ColumnPolicy struct {
	mu      sync.RWMutex
	allowed map[string]map[string]bool
}

// NewColumnPolicy creates an empty policy.
func NewColumnPolicy() *ColumnPolicy {
	return &ColumnPolicy{allowed: make(map[string]map[string]bool)}
}

// Grant sets the readable columns for a table, replacing any prior grant.
func (p *ColumnPolicy) Grant(table string, columns []string) {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	p.mu.Lock()
	p.allowed[table] = set
	p.mu.Unlock()
}

// CheckSelect verifies every requested column is granted for the table.
func (p *ColumnPolicy) CheckSelect(table string, columns []string) error {
	p.mu.RLock()
	set, restricted := p.allowed[table]
	p.mu.RUnlock()
	if !restricted {
		return nil
	}

	var denied []string
	for _, c := range columns {
		if !set[c] {
			denied = append(denied, c)
		}
	}
	if len(denied) == 0 {
		return nil
	}
	sort.Strings(denied)
	return gerrors.Newf(gerrors.ErrCategoryQuery, gerrors.CodeAccessDenied,
		"not enough privileges to read column %s from table %s", denied[0], table)
}
