package normalize

import "strings"

// Norm folds a header to lowercase alphanumerics so that variants like
// "Loan Number", "loan_number" and "LoanNumber" compare equal.
func Norm(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PickColumn returns the index of the first header matching any of the
// candidate patterns, trying patterns in order so that more specific
// candidates take priority. A header matches a pattern when their normalized
// forms are equal or either contains the other. Exact matches are preferred
// over containment so that "adj type group" resolves to its own column and
// not to a shorter header it happens to contain. Returns -1 when nothing
// matches.
func PickColumn(headers []string, patterns ...string) int {
	normed := make([]string, len(headers))
	for i, h := range headers {
		normed[i] = Norm(h)
	}
	for _, p := range patterns {
		np := Norm(p)
		if np == "" {
			continue
		}
		for i, nh := range normed {
			if nh == np {
				return i
			}
		}
		for i, nh := range normed {
			if nh == "" {
				continue
			}
			if strings.Contains(nh, np) || strings.Contains(np, nh) {
				return i
			}
		}
	}
	return -1
}
