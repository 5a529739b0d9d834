package parser

import "testing"

func TestParseSelectBasic(t *testing.T) {
	stmt, err := Parse("SELECT id, mark_number, rows_in_granule FROM system.parts_index")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*SelectStatement)
	if len(sel.Columns) != 3 || sel.Columns[1] != "mark_number" {
		t.Errorf("columns = %v", sel.Columns)
	}
	if sel.From != "system.parts_index" {
		t.Errorf("from = %q", sel.From)
	}
	if sel.Where != nil || sel.Limit != nil {
		t.Error("unexpected where/limit")
	}
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("select * from system.parts_index where part_name = 'p2' limit 10;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*SelectStatement)
	if len(sel.Columns) != 1 || sel.Columns[0] != "*" {
		t.Errorf("columns = %v", sel.Columns)
	}
	if sel.Limit == nil || *sel.Limit != 10 {
		t.Errorf("limit = %v", sel.Limit)
	}

	cmp, ok := sel.Where.(*BinaryExpr)
	if !ok || cmp.Operator != "=" {
		t.Fatalf("where = %v", sel.Where)
	}
	if cmp.Left.(*ColumnRef).Name != "part_name" {
		t.Errorf("left = %v", cmp.Left)
	}
	if cmp.Right.(*Literal).Value != "p2" {
		t.Errorf("right = %v", cmp.Right)
	}
}

func TestParseDottedMarkColumn(t *testing.T) {
	stmt, err := Parse("SELECT payload.mark FROM system.parts_index")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*SelectStatement)
	if sel.Columns[0] != "payload.mark" {
		t.Errorf("columns = %v", sel.Columns)
	}
}

func TestParseExpressionIn(t *testing.T) {
	expr, err := ParseExpression("part_name IN ('p1', 'p3') AND mark_number >= 2")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}

	and, ok := expr.(*BinaryExpr)
	if !ok || and.Operator != "AND" {
		t.Fatalf("expr = %v", expr)
	}
	in, ok := and.Left.(*InExpr)
	if !ok || len(in.Values) != 2 || in.Not {
		t.Fatalf("left = %v", and.Left)
	}

	cols := ReferencedColumns(expr)
	if len(cols) != 2 || cols[0] != "part_name" || cols[1] != "mark_number" {
		t.Errorf("referenced = %v", cols)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	expr, err := ParseExpression("a = 1 OR b = 2 AND c = 3")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	// AND binds tighter than OR.
	or, ok := expr.(*BinaryExpr)
	if !ok || or.Operator != "OR" {
		t.Fatalf("top = %v", expr)
	}
	and, ok := or.Right.(*BinaryExpr)
	if !ok || and.Operator != "AND" {
		t.Fatalf("right = %v", or.Right)
	}
}

func TestParseNotIn(t *testing.T) {
	expr, err := ParseExpression("part_name NOT IN ('p1')")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	in, ok := expr.(*InExpr)
	if !ok || !in.Not {
		t.Fatalf("expr = %v", expr)
	}
}

func TestParseNegativeNumber(t *testing.T) {
	expr, err := ParseExpression("id > -5")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	cmp := expr.(*BinaryExpr)
	if cmp.Right.(*Literal).Value != int64(-5) {
		t.Errorf("right = %v", cmp.Right.(*Literal).Value)
	}
}

func TestParseStringEscape(t *testing.T) {
	expr, err := ParseExpression("part_name = 'it''s'")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if expr.(*BinaryExpr).Right.(*Literal).Value != "it's" {
		t.Error("quote escape mismatch")
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"SELECT",
		"SELECT id FROM",
		"WHERE x = 1",
		"SELECT id WHERE x = ",
		"SELECT id WHERE x IN 1",
		"SELECT id WHERE x = 'unterminated",
		"SELECT id LIMIT x",
		"SELECT id trailing garbage",
	}
	for _, input := range bad {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}
