package layout

import (
	"regexp"
	"strings"
)

// numberingFragmentRe matches clause numbers that lost their leading
// section number during extraction, such as ".1" or ".2.3".
var numberingFragmentRe = regexp.MustCompile(`^\.\d+(?:\.\d+)*\.?$`)

func isNumberingFragment(s string) bool {
	return numberingFragmentRe.MatchString(strings.TrimSpace(s))
}

// MergeNumbering joins every line that holds nothing but a numbering
// fragment with the next non-blank line, dropping the blank lines between
// them. Other lines pass through unchanged.
func MergeNumbering(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		frag := strings.TrimSpace(lines[i])
		if !isNumberingFragment(frag) {
			out = append(out, lines[i])
			continue
		}
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j == len(lines) {
			out = append(out, lines[i])
			continue
		}
		out = append(out, frag+" "+strings.TrimSpace(lines[j]))
		i = j
	}
	return strings.Join(out, "\n")
}
