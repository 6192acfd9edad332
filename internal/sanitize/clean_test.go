package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "unknown"},
		{name: "whitespace only", in: "   \t ", want: "unknown"},
		{name: "only underscores", in: "____", want: "document"},
		{name: "only reserved", in: "?*?", want: "document"},
		{name: "accent", in: "café", want: "cafe"},
		{name: "ligature", in: "Straße", want: "Strasse"},
		{name: "spaces become one underscore", in: "Coffee   Shop", want: "Coffee_Shop"},
		{name: "truncated", in: "Starbucks Coffee Downtown", want: "Starbucks_Coffe"},
		{name: "trimmed and transliterated", in: "  Müller & Söhne GmbH  ", want: "Muller_&_Sohne_"},
		{name: "reserved characters", in: `a/b\c:d*e?f"<g>|`, want: "a_b_c_d_e_f_g_"},
		{name: "mixed run of spaces and underscores", in: "a _ _ b", want: "a_b"},
		{name: "exactly fifteen", in: "abcdefghijklmno", want: "abcdefghijklmno"},
		{name: "short kept short", in: "Uber", want: "Uber"},
		{name: "accent not flattened to underscore", in: "Crème Brûlée", want: "Creme_Brulee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Properties(t *testing.T) {
	inputs := []string{
		"", " ", "a", "Ünïcödé façade déjà vu", "x/y/z", `C:\Users\receipt`,
		"日本語の領収書テキスト長い説明文です", "tab\tand\nnewline", strings.Repeat("ab ", 40),
		"|||***|||", "..hidden", "Amazon.com Order #123-456",
	}
	for _, in := range inputs {
		got := Clean(in)
		if got == "" {
			t.Errorf("Clean(%q) returned empty string", in)
		}
		if n := utf8.RuneCountInString(got); n > MaxLen {
			t.Errorf("Clean(%q) = %q has %d characters, want <= %d", in, got, n, MaxLen)
		}
		if strings.ContainsAny(got, reserved) {
			t.Errorf("Clean(%q) = %q contains a reserved character", in, got)
		}
		if strings.Contains(got, "__") {
			t.Errorf("Clean(%q) = %q contains an uncollapsed run", in, got)
		}
	}
}
