// Package parser provides SQL parsing for the Granite read API: a reduced
// SELECT surface plus the filter expressions handed to predicate pushdown.
package parser

import (
	"fmt"
	"strings"
)

// Statement represents a parsed SQL statement.
type Statement interface {
	statementNode()
	String() string
}

// Expression represents an expression in the AST.
type Expression interface {
	expressionNode()
	String() string
}

// SelectStatement represents a SELECT query over one table.
type SelectStatement struct {
	Columns []string // projected column names; a single "*" selects all
	From    string   // optional dotted table name
	Where   Expression
	Limit   *int64
}

func (s *SelectStatement) statementNode() {}

// String returns the SQL representation of the SELECT statement.
func (s *SelectStatement) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(s.Columns, ", "))
	if s.From != "" {
		sb.WriteString(" FROM ")
		sb.WriteString(s.From)
	}
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}
	if s.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *s.Limit)
	}
	return sb.String()
}

// ColumnRef is a (possibly dotted) column reference.
type ColumnRef struct {
	Name string
}

func (c *ColumnRef) expressionNode() {}
func (c *ColumnRef) String() string  { return c.Name }

// Literal is a string or numeric literal.
type Literal struct {
	Value interface{} // string, int64 or float64
}

func (l *Literal) expressionNode() {}

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return fmt.Sprint(l.Value)
}

// BinaryExpr is a comparison or logical conjunction/disjunction.
type BinaryExpr struct {
	Operator string // =, <>, <, >, <=, >=, AND, OR
	Left     Expression
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left.String(), b.Operator, b.Right.String())
}

// InExpr is column IN (v1, v2, ...) with optional negation.
type InExpr struct {
	Expr   Expression
	Values []Expression
	Not    bool
}

func (e *InExpr) expressionNode() {}

func (e *InExpr) String() string {
	vals := make([]string, len(e.Values))
	for i, v := range e.Values {
		vals[i] = v.String()
	}
	op := "IN"
	if e.Not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", e.Expr.String(), op, strings.Join(vals, ", "))
}

// UnaryExpr is NOT <expr> or -<number>.
type UnaryExpr struct {
	Operator string
	Operand  Expression
}

func (u *UnaryExpr) expressionNode() {}

func (u *UnaryExpr) String() string {
	if u.Operator == "NOT" {
		return "NOT " + u.Operand.String()
	}
	return u.Operator + u.Operand.String()
}

// ParenExpr preserves explicit grouping.
type ParenExpr struct {
	Expr Expression
}

func (p *ParenExpr) expressionNode() {}
func (p *ParenExpr) String() string  { return "(" + p.Expr.String() + ")" }

// ReferencedColumns returns the distinct column names an expression
// mentions, in first-appearance order.
func ReferencedColumns(expr Expression) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expression)
	walk = func(e Expression) {
		switch ex := e.(type) {
		case *ColumnRef:
			if !seen[ex.Name] {
				seen[ex.Name] = true
				out = append(out, ex.Name)
			}
		case *BinaryExpr:
			walk(ex.Left)
			walk(ex.Right)
		case *InExpr:
			walk(ex.Expr)
			for _, v := range ex.Values {
				walk(v)
			}
		case *UnaryExpr:
			walk(ex.Operand)
		case *ParenExpr:
			walk(ex.Expr)
		}
	}
	if expr != nil {
		walk(expr)
	}
	return out
}
