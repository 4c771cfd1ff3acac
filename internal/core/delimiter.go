package core

import "strings"

// delimiterOrder is the candidate set in tie-break order.
var delimiterOrder = []rune{',', ';', '\t', '|'}

// SniffDelimiter guesses the field separator from the first line of text.
// The candidate with the most occurrences outside double quotes wins; ties
// and an empty header fall back to the earlier candidate, comma first.
func SniffDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")

	counts := make(map[rune]int, len(delimiterOrder))
	inQuotes := false
	for _, r := range header {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := delimiterOrder[0], 0
	for _, d := range delimiterOrder {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// delimiterCandidates returns the order in which delimiters are tried:
// the guess first, then the rest of the candidate set.
func delimiterCandidates(guess rune) []rune {
	out := make([]rune, 0, len(delimiterOrder)+1)
	out = append(out, guess)
	for _, d := range delimiterOrder {
		if d != guess {
			out = append(out, d)
		}
	}
	return out
}

// delimiterName renders a delimiter for logs and API responses.
func delimiterName(d rune) string {
	switch d {
	case 0:
		return "xlsx"
	case '\t':
		return "tab"
	default:
		return string(d)
	}
}
