package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses the reduced SELECT surface:
//
//	SELECT <col>[, <col>]* [FROM <table>] [WHERE <expr>] [LIMIT <n>]
//
// and bare filter expressions via ParseExpression.
type Parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
}

// Parse parses a full statement.
func Parse(input string) (Statement, error) {
	p := newParser(input)
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ParseExpression parses a bare filter expression, e.g. a pushed-down
// predicate like "part_name = 'all_1_1_0'".
func ParseExpression(input string) (Expression, error) {
	p := newParser(input)
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return expr, nil
}

func newParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lexer.Next()
}

func (p *Parser) expectEnd() error {
	if p.cur.Type == TokenSemicolon {
		p.advance()
	}
	if p.cur.Type != TokenEOF {
		return fmt.Errorf("parser: unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
	}
	return nil
}

func (p *Parser) parseSelect() (*SelectStatement, error) {
	if p.cur.Type != TokenSelect {
		return nil, fmt.Errorf("parser: expected SELECT, got %q at position %d", p.cur.Literal, p.cur.Pos)
	}
	p.advance()

	stmt := &SelectStatement{}

	for {
		switch p.cur.Type {
		case TokenStar:
			stmt.Columns = append(stmt.Columns, "*")
		case TokenIdent:
			stmt.Columns = append(stmt.Columns, p.cur.Literal)
		default:
			return nil, fmt.Errorf("parser: expected column name, got %q at position %d", p.cur.Literal, p.cur.Pos)
		}
		p.advance()
		if p.cur.Type != TokenComma {
			break
		}
		p.advance()
	}

	if p.cur.Type == TokenFrom {
		p.advance()
		if p.cur.Type != TokenIdent {
			return nil, fmt.Errorf("parser: expected table name, got %q at position %d", p.cur.Literal, p.cur.Pos)
		}
		stmt.From = p.cur.Literal
		p.advance()
	}

	if p.cur.Type == TokenWhere {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}

	if p.cur.Type == TokenLimit {
		p.advance()
		if p.cur.Type != TokenNumber {
			return nil, fmt.Errorf("parser: expected LIMIT count, got %q at position %d", p.cur.Literal, p.cur.Pos)
		}
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: bad LIMIT %q: %w", p.cur.Literal, err)
		}
		stmt.Limit = &n
		p.advance()
	}

	return stmt, nil
}

func (p *Parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expression, error) {
	if p.cur.Type == TokenNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	// column [NOT] IN (v1, v2, ...)
	not := false
	if p.cur.Type == TokenNot && p.peek.Type == TokenIn {
		not = true
		p.advance()
	}
	if p.cur.Type == TokenIn {
		p.advance()
		values, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		return &InExpr{Expr: left, Values: values, Not: not}, nil
	}
	if not {
		return nil, fmt.Errorf("parser: expected IN after NOT at position %d", p.cur.Pos)
	}

	var op string
	switch p.cur.Type {
	case TokenEq:
		op = "="
	case TokenNe:
		op = "<>"
	case TokenLt:
		op = "<"
	case TokenGt:
		op = ">"
	case TokenLe:
		op = "<="
	case TokenGe:
		op = ">="
	default:
		return left, nil
	}
	p.advance()

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Operator: op, Left: left, Right: right}, nil
}

func (p *Parser) parseValueList() ([]Expression, error) {
	if p.cur.Type != TokenLParen {
		return nil, fmt.Errorf("parser: expected ( after IN at position %d", p.cur.Pos)
	}
	p.advance()

	var values []Expression
	for {
		v, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.cur.Type == TokenComma {
			p.advance()
			continue
		}
		break
	}

	if p.cur.Type != TokenRParen {
		return nil, fmt.Errorf("parser: expected ) at position %d", p.cur.Pos)
	}
	p.advance()
	return values, nil
}

func (p *Parser) parsePrimary() (Expression, error) {
	switch p.cur.Type {
	case TokenIdent:
		expr := &ColumnRef{Name: p.cur.Literal}
		p.advance()
		return expr, nil
	case TokenString:
		expr := &Literal{Value: p.cur.Literal}
		p.advance()
		return expr, nil
	case TokenNumber:
		expr, err := numberLiteral(p.cur.Literal)
		if err != nil {
			return nil, err
		}
		p.advance()
		return expr, nil
	case TokenMinus:
		p.advance()
		if p.cur.Type != TokenNumber {
			return nil, fmt.Errorf("parser: expected number after - at position %d", p.cur.Pos)
		}
		expr, err := numberLiteral(p.cur.Literal)
		if err != nil {
			return nil, err
		}
		p.advance()
		switch v := expr.Value.(type) {
		case int64:
			return &Literal{Value: -v}, nil
		case float64:
			return &Literal{Value: -v}, nil
		}
		return nil, fmt.Errorf("parser: cannot negate %v", expr.Value)
	case TokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TokenRParen {
			return nil, fmt.Errorf("parser: expected ) at position %d", p.cur.Pos)
		}
		p.advance()
		return &ParenExpr{Expr: inner}, nil
	default:
		return nil, fmt.Errorf("parser: unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
	}
}

func numberLiteral(literal string) (*Literal, error) {
	if strings.Contains(literal, ".") {
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: bad number %q: %w", literal, err)
		}
		return &Literal{Value: f}, nil
	}
	n, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parser: bad number %q: %w", literal, err)
	}
	return &Literal{Value: n}, nil
}
