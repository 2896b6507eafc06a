// ABOUTME: Tests for the sandboxed arithmetic evaluator
// ABOUTME: Covers precedence, unary operators, limits, and rejection of non-grammar input

package calc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"10 - 2 - 3", "5"},
		{"100 / 10 / 5", "2"},
		{"-3 + 5", "2"},
		{"-(2+3)", "-5"},
		{"--4", "4"},
		{"+7", "7"},
		{"1.5 * 2", "3"},
		{".5 + .5", "1"},
		{"  42  ", "42"},
		{"((((1))))", "1"},
		{"0.1 + 0.2", "0.30000000000000004"},
		{"3 * -2", "-6"},
		{"0 * -1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := Eval(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(v))
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want error
	}{
		{"empty", "", ErrSyntax},
		{"whitespace", "   ", ErrSyntax},
		{"identifier", "abs(1)", ErrSyntax},
		{"dunder", "__import__", ErrSyntax},
		{"power", "2**3", ErrSyntax},
		{"floor div", "7//2", ErrSyntax},
		{"modulo", "7%2", ErrSyntax},
		{"trailing operator", "1+", ErrSyntax},
		{"unclosed paren", "(1+2", ErrSyntax},
		{"stray close paren", "1+2)", ErrSyntax},
		{"two dots", "1.2.3", ErrSyntax},
		{"lone dot", ".", ErrSyntax},
		{"juxtaposed numbers", "1 2", ErrSyntax},
		{"divide by zero", "1/0", ErrDivideByZero},
		{"divide by zero expression", "5/(2-2)", ErrDivideByZero},
		{"too long", strings.Repeat("1+", MaxInputLen) + "1", ErrTooComplex},
		{"too deep parens", strings.Repeat("(", MaxDepth+2) + "1" + strings.Repeat(")", MaxDepth+2), ErrTooComplex},
		{"too deep unary", strings.Repeat("-", MaxDepth+2) + "1", ErrTooComplex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.expr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
