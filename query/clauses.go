package query

import (
	"fmt"
	"strings"
)

// UnsupportedClauses lists the clauses the query tool refuses. They need
// single-partition evaluation or index support that a plain cross-partition
// item query does not provide.
var UnsupportedClauses = []string{"TOP", "ORDER BY", "OFFSET", "LIMIT", "DISTINCT", "GROUP BY"}

// UnsupportedClauseError reports a clause outside the supported dialect.
type UnsupportedClauseError struct {
	Clause string
	Pos    int
}

func (e *UnsupportedClauseError) Error() string {
	return fmt.Sprintf("%s clause is not supported; use a plain projection and filter, or scope the query with a partition key in the WHERE clause", e.Clause)
}

// SyntaxError reports a query the parser could not understand.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// CheckClauses returns an *UnsupportedClauseError for the first unsupported
// clause in src. Keywords inside string literals and property names
// (c.top, c["order"]) are ignored. Other syntax problems are left to the
// store; src is scanned leniently so that no input skips the check.
func CheckClauses(src string) error {
	toks, _ := scan(src, true)
	return checkTokens(toks)
}

func checkTokens(toks []token) error {
	for i, t := range toks {
		if t.kind != tokIdent {
			continue
		}
		if i > 0 && toks[i-1].punct(".") {
			continue
		}
		switch strings.ToUpper(t.text) {
		case "TOP", "DISTINCT", "OFFSET", "LIMIT":
			return &UnsupportedClauseError{Clause: strings.ToUpper(t.text), Pos: t.pos}
		case "ORDER", "GROUP":
			if i+1 < len(toks) && toks[i+1].keyword("BY") {
				return &UnsupportedClauseError{Clause: strings.ToUpper(t.text) + " BY", Pos: t.pos}
			}
		}
	}
	return nil
}
