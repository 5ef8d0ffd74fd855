package expr

import (
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// mapResolver resolves operands from a fixed table.
type mapResolver map[string]any

func (m mapResolver) ResolveOperand(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "unknown operand %q", name)
	}
	return v, nil
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"20+30", 50.0},
		{"7/2", 3.5},
		{"2 + 3 * 4", 14.0},
		{"(2 + 3) * 4", 20.0},
		{"10 - 4 - 3", 3.0},
		{"-5 + 2", -3.0},
		{"--5", 5.0},
		{"10 % 3", 1.0},
		{"-7 % 3", 2.0},
		{".5 * 4", 2.0},
		{"1.25 + 1", 2.25},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, nil)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalStringsAndLogic(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`'ab' + "cd"`, "abcd"},
		{`'-' * 3`, "---"},
		{`'a' < 'b'`, true},
		{"3 >= 3", true},
		{"3 != 3", false},
		{"1 < 2 and 2 < 3", true},
		{"1 > 2 or 'fallback'", "fallback"},
		{"not 0", true},
		{"!true", false},
		{"true && false", false},
		{"1 == '1'", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, nil)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalOperands(t *testing.T) {
	r := mapResolver{
		"self.x":       50,
		"parent.width": 400.0,
		"$name":        "shot",
		"$frame":       int64(12),
		"50%":          25.0,
	}

	tests := []struct {
		src  string
		want any
	}{
		{"self.x/2", 25.0},
		{"parent.width - self.x", 350.0},
		{"$name + '_' + str($frame)", "shot_12"},
		{"50% + 1", 26.0},
		{"(50%)", 25.0},
		{"max(self.x, 80, 10)", 80.0},
		{"upper($name)", "SHOT"},
		{"len($name)", 4.0},
		{"round(parent.width / 3, 2)", 133.33},
		{"int('42.9')", 42.0},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, r)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errs.Code
	}{
		{"unknown operand", "missing.width + 1", errs.ErrCodeUnresolvedReference},
		{"division by zero", "1 / 0", errs.ErrCodeInvalidParameterType},
		{"string minus number", "'a' - 1", errs.ErrCodeInvalidParameterType},
		{"unbalanced paren", "(1 + 2", errs.ErrCodeInvalidExpression},
		{"trailing operator", "1 +", errs.ErrCodeInvalidExpression},
		{"unknown function", "system('ls')", errs.ErrCodeInvalidExpression},
		{"bad character", "1 ^ 2", errs.ErrCodeInvalidExpression},
		{"unterminated string", "'abc", errs.ErrCodeInvalidExpression},
		{"single equals", "1 = 1", errs.ErrCodeInvalidExpression},
		{"huge repeat", "'ab' * 1000000000000000000", errs.ErrCodeInvalidParameterType},
		{"repeat past limit", "3000000000 * 'ab'", errs.ErrCodeInvalidParameterType},
		{"fractional repeat", "'ab' * 1.5", errs.ErrCodeInvalidParameterType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.src, mapResolver{})
			if err == nil {
				t.Fatalf("Eval(%q) succeeded, want error", tt.src)
			}
			if !errs.Is(err, tt.code) {
				t.Errorf("Eval(%q) error = %v, want code %v", tt.src, err, tt.code)
			}
		})
	}
}

func TestPercentVersusModulo(t *testing.T) {
	var seen []string
	r := ResolverFunc(func(name string) (any, error) {
		seen = append(seen, name)
		return 10.0, nil
	})

	if _, err := Eval("10%3", r); err != nil {
		t.Fatalf("Eval(10%%3) error: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("10%%3 resolved operands %v, want modulo with no operands", seen)
	}

	if _, err := Eval("50% * 2", r); err != nil {
		t.Fatalf("Eval(50%% * 2) error: %v", err)
	}
	if len(seen) != 1 || seen[0] != "50%" {
		t.Errorf("resolved operands = %v, want [50%%]", seen)
	}
}

func TestParseString(t *testing.T) {
	n, err := Parse("a.b + 2 * -c")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got, want := n.String(), "(a.b + (2 * (-c)))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{5.0, "5"},
		{-1.0, "-1"},
		{2.5, "2.5"},
		{7, "7"},
		{"text", "text"},
		{true, "true"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{0, false},
		{0.5, true},
		{"", false},
		{"x", true},
		{[]any{}, false},
		{[]any{1}, true},
		{false, false},
	}

	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
