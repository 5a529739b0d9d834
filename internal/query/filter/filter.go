// Package filter evaluates pushed-down predicate expressions against
// in-memory column blocks. It is the generic virtual-column pruning
// evaluator: expressions over columns the block does not carry are treated
// as unknown and never eliminate a row.
package filter

import (
	"fmt"
	"strings"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/query/parser"
)

// ternary is three-valued logic for pruning: a row is kept unless the
// expression is definitely false.
type ternary int8

const (
	tFalse ternary = iota
	tTrue
	tUnknown
)

// Rows returns the indexes of block rows satisfying expr, in row order.
// A nil expression keeps every row.
func Rows(block *column.Block, expr parser.Expression) ([]int, error) {
	n := block.Rows()
	if expr == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	var out []int
	for i := 0; i < n; i++ {
		v, err := eval(block, expr, i)
		if err != nil {
			return nil, err
		}
		if v != tFalse {
			out = append(out, i)
		}
	}
	return out, nil
}

// Matches reports whether expr holds (or is unknown) for row i of the block.
func Matches(block *column.Block, expr parser.Expression, i int) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := eval(block, expr, i)
	if err != nil {
		return false, err
	}
	return v != tFalse, nil
}

func eval(block *column.Block, expr parser.Expression, row int) (ternary, error) {
	switch ex := expr.(type) {
	case *parser.ParenExpr:
		return eval(block, ex.Expr, row)

	case *parser.UnaryExpr:
		if ex.Operator != "NOT" {
			return tUnknown, fmt.Errorf("filter: unsupported unary operator %q", ex.Operator)
		}
		v, err := eval(block, ex.Operand, row)
		if err != nil {
			return tUnknown, err
		}
		switch v {
		case tTrue:
			return tFalse, nil
		case tFalse:
			return tTrue, nil
		default:
			return tUnknown, nil
		}

	case *parser.BinaryExpr:
		switch ex.Operator {
		case "AND":
			l, err := eval(block, ex.Left, row)
			if err != nil {
				return tUnknown, err
			}
			r, err := eval(block, ex.Right, row)
			if err != nil {
				return tUnknown, err
			}
			if l == tFalse || r == tFalse {
				return tFalse, nil
			}
			if l == tUnknown || r == tUnknown {
				return tUnknown, nil
			}
			return tTrue, nil
		case "OR":
			l, err := eval(block, ex.Left, row)
			if err != nil {
				return tUnknown, err
			}
			r, err := eval(block, ex.Right, row)
			if err != nil {
				return tUnknown, err
			}
			if l == tTrue || r == tTrue {
				return tTrue, nil
			}
			if l == tUnknown || r == tUnknown {
				return tUnknown, nil
			}
			return tFalse, nil
		default:
			return evalComparison(block, ex, row)
		}

	case *parser.InExpr:
		left, known, err := operand(block, ex.Expr, row)
		if err != nil || !known {
			return tUnknown, err
		}
		found := false
		for _, v := range ex.Values {
			rv, rknown, err := operand(block, v, row)
			if err != nil {
				return tUnknown, err
			}
			if !rknown {
				return tUnknown, nil
			}
			cmp, comparable := compare(left, rv)
			if comparable && cmp == 0 {
				found = true
				break
			}
		}
		if found != ex.Not {
			return tTrue, nil
		}
		return tFalse, nil

	default:
		return tUnknown, fmt.Errorf("filter: unsupported expression %T", expr)
	}
}

func evalComparison(block *column.Block, ex *parser.BinaryExpr, row int) (ternary, error) {
	left, lknown, err := operand(block, ex.Left, row)
	if err != nil {
		return tUnknown, err
	}
	right, rknown, err := operand(block, ex.Right, row)
	if err != nil {
		return tUnknown, err
	}
	if !lknown || !rknown {
		return tUnknown, nil
	}

	cmp, comparable := compare(left, right)
	if !comparable {
		return tUnknown, nil
	}

	var ok bool
	switch ex.Operator {
	case "=":
		ok = cmp == 0
	case "<>", "!=":
		ok = cmp != 0
	case "<":
		ok = cmp < 0
	case ">":
		ok = cmp > 0
	case "<=":
		ok = cmp <= 0
	case ">=":
		ok = cmp >= 0
	default:
		return tUnknown, fmt.Errorf("filter: unsupported operator %q", ex.Operator)
	}
	if ok {
		return tTrue, nil
	}
	return tFalse, nil
}

// operand resolves an expression to a scalar value for one row. known is
// false when the expression references a column outside the block.
func operand(block *column.Block, expr parser.Expression, row int) (interface{}, bool, error) {
	switch ex := expr.(type) {
	case *parser.Literal:
		return ex.Value, true, nil
	case *parser.ColumnRef:
		col := block.ByName(ex.Name)
		if col == nil {
			return nil, false, nil
		}
		return col.Value(row), true, nil
	case *parser.ParenExpr:
		return operand(block, ex.Expr, row)
	default:
		return nil, false, fmt.Errorf("filter: unsupported operand %T", expr)
	}
}

// compare orders two scalar values. Numeric kinds compare through float64;
// strings compare lexicographically. Mixed string/number is not comparable.
func compare(a, b interface{}) (int, bool) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	if aIsStr != bIsStr {
		return 0, false
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
