package core

import (
	"slices"
	"testing"
)

// =============================================================================
// SniffDelimiter Tests
// =============================================================================

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma", "sku,name,quantity,threshold\nA,B,1,2\n", ','},
		{"semicolon", "sku;name;quantity;threshold\nA;B;1;2\n", ';'},
		{"tab", "sku\tname\tquantity\tthreshold\n", '\t'},
		{"pipe", "sku|name|quantity|threshold\n", '|'},
		{"empty header defaults to comma", "", ','},
		{"no candidates defaults to comma", "sku\nA1\n", ','},
		{"tie goes to earlier candidate", "a,b;c\n", ','},
		{"semicolon beats tab on tie", "a;b\tc\n", ';'},
		{"only first line counts", "a;b;c\n1,2,3,4,5,6\n", ';'},
		{"quoted delimiters ignored", "\"a,b,c\";d;e\n", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffDelimiter(tt.text); got != tt.want {
				t.Errorf("SniffDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDelimiterCandidates(t *testing.T) {
	tests := []struct {
		guess rune
		want  []rune
	}{
		{',', []rune{',', ';', '\t', '|'}},
		{';', []rune{';', ',', '\t', '|'}},
		{'|', []rune{'|', ',', ';', '\t'}},
	}

	for _, tt := range tests {
		t.Run(string(tt.guess), func(t *testing.T) {
			if got := delimiterCandidates(tt.guess); !slices.Equal(got, tt.want) {
				t.Errorf("delimiterCandidates(%q) = %q, want %q", tt.guess, got, tt.want)
			}
		})
	}
}

func TestDelimiterName(t *testing.T) {
	tests := map[rune]string{0: "xlsx", '\t': "tab", ',': ",", '|': "|"}
	for d, want := range tests {
		if got := delimiterName(d); got != want {
			t.Errorf("delimiterName(%q) = %q, want %q", d, got, want)
		}
	}
}
