package passes

import (
	"regexp"
	"strings"
)

// arithOpRE matches a simple binary arithmetic expression over two operands,
// each a bare identifier, a numeric literal, or a parenthesized
// sub-expression — enough to handle the nested decomposition example spec.md
// §4.4 pass 11 calls out, `(a*2+5)*b`, by running repeatedly until no
// operand resolves to NUMERIC.
var arithOpRE = regexp.MustCompile(`([\w."$]+|\([^()]*\))\s*([+\-*/])\s*([\w."$]+|\([^()]*\))`)

// RewriteDecimalArithmetic implements spec.md §4.4 pass 11. isNumeric
// reports whether a bare operand (column name or parameter placeholder)
// resolves, via the §4.6 expression type resolver, to NUMERIC; literals and
// REAL/DOUBLE PRECISION operands must never be wrapped. The bloom-filter
// early exit (package schemacache's HasDecimalColumn) is applied inside the
// isNumeric callback the caller supplies (package translator's
// isNumericOperand), per spec.md's "has an early-exit that consults the
// decimal-table bloom filter".
func RewriteDecimalArithmetic(sql string, isNumeric func(operand string) bool) string {
	prev := ""
	cur := sql
	// Repeated passes let nested parenthesized sub-expressions resolve
	// inside-out, since regexp.ReplaceAll is not recursive.
	for i := 0; i < 8 && cur != prev; i++ {
		prev = cur
		cur = arithOpRE.ReplaceAllStringFunc(cur, func(m string) string {
			parts := arithOpRE.FindStringSubmatch(m)
			lhs, op, rhs := parts[1], parts[2], parts[3]
			if !isNumeric(stripParens(lhs)) && !isNumeric(stripParens(rhs)) {
				return m
			}
			return decimalCall(op, lhs, rhs)
		})
	}
	return cur
}

func decimalCall(op, lhs, rhs string) string {
	switch op {
	case "+":
		return "decimal_add(" + lhs + "," + rhs + ")"
	case "-":
		return "decimal_sub(" + lhs + "," + rhs + ")"
	case "*":
		return "decimal_mul(" + lhs + "," + rhs + ")"
	case "/":
		return "decimal_div(" + lhs + "," + rhs + ")"
	default:
		return lhs + op + rhs
	}
}

func stripParens(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}
