// Tests the lexer by verifying that a small MiniC program is tokenized
// properly. The sample was manually transformed into a slice of expected
// items holding token type, string value and source line.

package frontend

import "testing"

// expItem is one expected token of the lexer test.
type expItem struct {
	val  string
	typ  itemType
	line int
}

// TestLexer verifies that the state functions scan a sample program into the
// expected token stream.
func TestLexer(t *testing.T) {
	src := `// sum of the first n numbers
int sum(int n) {
	int s = 0;
	while (n > 0) {
		s = s + n;
		n = n - 1;
	}
	return s;
}
`
	exp := []expItem{
		{"int", INT, 2},
		{"sum", IDENTIFIER, 2},
		{"(", '(', 2},
		{"int", INT, 2},
		{"n", IDENTIFIER, 2},
		{")", ')', 2},
		{"{", '{', 2},
		{"int", INT, 3},
		{"s", IDENTIFIER, 3},
		{"=", '=', 3},
		{"0", INTEGER, 3},
		{";", ';', 3},
		{"while", WHILE, 4},
		{"(", '(', 4},
		{"n", IDENTIFIER, 4},
		{">", '>', 4},
		{"0", INTEGER, 4},
		{")", ')', 4},
		{"{", '{', 4},
		{"s", IDENTIFIER, 5},
		{"=", '=', 5},
		{"s", IDENTIFIER, 5},
		{"+", '+', 5},
		{"n", IDENTIFIER, 5},
		{";", ';', 5},
		{"n", IDENTIFIER, 6},
		{"=", '=', 6},
		{"n", IDENTIFIER, 6},
		{"-", '-', 6},
		{"1", INTEGER, 6},
		{";", ';', 6},
		{"}", '}', 7},
		{"return", RETURN, 8},
		{"s", IDENTIFIER, 8},
		{";", ';', 8},
		{"}", '}', 9},
	}

	l := newLexer(src, lexGlobal)
	go l.run()

	for i1 := 0; ; i1++ {
		tok := l.nextItem()
		if tok.typ == itemEOF {
			if i1 < len(exp) {
				t.Fatalf("expected %d tokens, got %d", len(exp), i1)
			}
			break
		}
		if i1 >= len(exp) {
			t.Fatalf("expected %d tokens, got more: %s", len(exp), tok.String())
		}
		if tok.typ != exp[i1].typ || tok.val != exp[i1].val {
			t.Errorf("(token %d): expected %q, got %q", i1+1, exp[i1].val, tok.String())
		} else if tok.line != exp[i1].line {
			t.Errorf("(token %d): expected %q on line %d, got line %d",
				i1+1, exp[i1].val, exp[i1].line, tok.line)
		}
	}
}

// TestLexerOperators verifies the multi-rune operators and comments.
func TestLexerOperators(t *testing.T) {
	src := "a && b || c == d != e <= f >= g /* skip\nme */ < >"
	exp := []expItem{
		{"a", IDENTIFIER, 1},
		{"&&", AND, 1},
		{"b", IDENTIFIER, 1},
		{"||", OR, 1},
		{"c", IDENTIFIER, 1},
		{"==", EQ, 1},
		{"d", IDENTIFIER, 1},
		{"!=", NE, 1},
		{"e", IDENTIFIER, 1},
		{"<=", LE, 1},
		{"f", IDENTIFIER, 1},
		{">=", GE, 1},
		{"g", IDENTIFIER, 1},
		{"<", '<', 2},
		{">", '>', 2},
	}

	l := newLexer(src, lexGlobal)
	go l.run()
	for i1 := 0; ; i1++ {
		tok := l.nextItem()
		if tok.typ == itemEOF {
			if i1 < len(exp) {
				t.Fatalf("expected %d tokens, got %d", len(exp), i1)
			}
			return
		}
		if i1 >= len(exp) {
			t.Fatalf("unexpected extra token %s", tok.String())
		}
		if tok.typ != exp[i1].typ || tok.val != exp[i1].val || tok.line != exp[i1].line {
			t.Errorf("(token %d): expected %q line %d, got %s", i1+1, exp[i1].val, exp[i1].line, tok.String())
		}
	}
}

// TestLexerRadixes verifies decimal, octal and hexadecimal literal scanning.
func TestLexerRadixes(t *testing.T) {
	l := newLexer("42 052 0x2A 0", lexGlobal)
	go l.run()
	for _, want := range []string{"42", "052", "0x2A", "0"} {
		tok := l.nextItem()
		if tok.typ != INTEGER || tok.val != want {
			t.Errorf("expected INTEGER %q, got %s", want, tok.String())
		}
	}
	if tok := l.nextItem(); tok.typ != itemEOF {
		t.Errorf("expected EOF, got %s", tok.String())
	}
}
