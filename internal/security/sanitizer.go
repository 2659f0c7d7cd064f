package security

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxRepeatedRun    = 100
	repeatedRunKeep   = 10
	maxWhitespaceRun  = 10
	whitespaceRunKeep = 5
)

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	jsURIPattern       = regexp.MustCompile(`(?i)javascript:`)
)

// Sanitize cleans raw text before detection and before it is forwarded to a
// model. The transform is deterministic and idempotent and leaves non-ASCII
// content untouched. With sanitization disabled the input is returned as is.
func Sanitize(text string, policy Policy) string {
	if !policy.SanitizeInput {
		return text
	}

	out := stripControlChars(text)
	if policy.RemoveScripts {
		out = removeScripts(out)
	}
	if policy.LimitRepeatedChars {
		out = limitRepeatedRuns(out)
	}
	out = collapseWhitespace(out)
	return strings.TrimSpace(out)
}

func isStrippedControl(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return r < 0x20 || r == 0x7f
}

func stripControlChars(s string) string {
	if strings.IndexFunc(s, isStrippedControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, s)
}

// removeScripts repeats until stable so that removal cannot splice a new
// construct together from the surrounding text. Every pass that changes s
// shortens it, so the loop ends.
func removeScripts(s string) string {
	for {
		next := scriptBlockPattern.ReplaceAllString(s, "")
		next = jsURIPattern.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

func limitRepeatedRuns(s string) string {
	return collapseRuns(s, func(prev, cur rune) bool { return prev == cur }, maxRepeatedRun, repeatedRunKeep)
}

func collapseWhitespace(s string) string {
	return collapseRuns(s, func(_, cur rune) bool { return unicode.IsSpace(cur) }, maxWhitespaceRun, whitespaceRunKeep)
}

// collapseRuns shortens every maximal run longer than limit to its first keep
// runes. sameRun decides whether cur continues the run started by prev.
func collapseRuns(s string, sameRun func(prev, cur rune) bool, limit, keep int) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		j := i + 1
		if sameRun(runes[i], runes[i]) {
			for j < len(runes) && sameRun(runes[i], runes[j]) {
				j++
			}
		}
		run := runes[i:j]
		if len(run) > limit {
			run = run[:keep]
		}
		for _, r := range run {
			b.WriteRune(r)
		}
		i = j
	}
	return b.String()
}
