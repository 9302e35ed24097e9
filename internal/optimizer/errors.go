package optimizer

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes for classifying svgo stderr output. Checked in order
// by [classify]; the first match wins.
var (
	reParseIssue = regexp.MustCompile(
		`SvgoParserError|` +
			`Unclosed root tag|` +
			`Unexpected close tag|` +
			`Unmatched closing tag|` +
			`Non-whitespace before first tag|` +
			`Text data outside of root node|` +
			`Invalid attribute name|` +
			`Attribute without value|` +
			`Unquoted attribute value`)

	rePluginIssue = regexp.MustCompile(
		`(?i)Unknown builtin plugin|` +
			`Plugin name should be specified|` +
			`Invalid plugins type|` +
			`Cannot find module|` +
			`Error: .*config`)
)

// MatchParseIssue reports whether stderr describes malformed SVG input.
func MatchParseIssue(stderr string) bool {
	return reParseIssue.MatchString(stderr)
}

// MatchPluginIssue reports whether stderr describes a rejected configuration.
func MatchPluginIssue(stderr string) bool {
	return rePluginIssue.MatchString(stderr)
}

// classify maps svgo stderr to one of the package's failure categories.
func classify(stderr string) error {
	switch {
	case MatchParseIssue(stderr):
		return ErrParse
	case MatchPluginIssue(stderr):
		return ErrPlugin
	default:
		return ErrBackend
	}
}

// lastLines returns at most n trailing non-empty lines of s, joined by "; ".
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "; ")
}
