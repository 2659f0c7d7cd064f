package security

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

type Category string

const (
	CategoryInjection  Category = "injection"
	CategorySuspicious Category = "suspicious"
	CategoryExplicit   Category = "explicit"
	CategoryWhitelist  Category = "whitelist"
)

type Severity string

const (
	SeverityNone   Severity = ""
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Mechanism identifies which injection toggle gates a pattern.
type Mechanism string

const (
	MechanismSystemPrompt        Mechanism = "system_prompt"
	MechanismInstructionOverride Mechanism = "instruction_override"
)

// ContentCategory identifies which explicit-content toggle gates a pattern.
type ContentCategory string

const (
	ContentViolence        ContentCategory = "violence"
	ContentIllegalActivity ContentCategory = "illegal_activity"
	ContentAdult           ContentCategory = "adult_content"
)

// Matcher is the predicate a pattern evaluates. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

// Pattern is a single detection rule. Patterns are built once and never
// mutated; active sets share them by value.
type Pattern struct {
	ID          string
	Matcher     Matcher
	Category    Category
	Severity    Severity
	Mechanism   Mechanism
	Content     ContentCategory
	Description string
}

// Source returns the regex source when the matcher is a regexp. It is
// meant for diagnostics and must never be surfaced to callers.
func (p Pattern) Source() string {
	if re, ok := p.Matcher.(*regexp.Regexp); ok {
		return re.String()
	}
	return ""
}

// Registry is the static catalogue of detection rules.
type Registry struct {
	patterns []Pattern
}

// NewRegistry builds a registry from the given patterns. Patterns without
// a matcher are ignored.
func NewRegistry(patterns []Pattern) *Registry {
	r := &Registry{patterns: make([]Pattern, 0, len(patterns))}
	for _, p := range patterns {
		if p.Matcher == nil {
			continue
		}
		r.patterns = append(r.patterns, p)
	}
	return r
}

// DefaultRegistry returns the built-in rule catalogue.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultPatterns())
}

// Patterns returns the registry patterns of one category in catalogue order.
func (r *Registry) Patterns(category Category) []Pattern {
	var out []Pattern
	for _, p := range r.patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of rules in the registry.
func (r *Registry) Len() int {
	return len(r.patterns)
}

func defaultPatterns() []Pattern {
	raw := []struct {
		id          string
		expr        string
		category    Category
		severity    Severity
		mechanism   Mechanism
		content     ContentCategory
		description string
	}{
		// Injection: instruction override
		{"ignore_instructions", `(?i)\b(ignore|disregard|forget)\s+(all\s+)?(the\s+)?(previous|above|all|prior|earlier)\s+(instructions?|commands?|rules?|prompts?)`,
			CategoryInjection, SeverityHigh, MechanismInstructionOverride, "", "Attempt to override previous instructions"},
		{"instruction_break", `(?i)\bstop\s*[.!:;]+\s*new\s+(instructions?|task|rules?)`,
			CategoryInjection, SeverityHigh, MechanismInstructionOverride, "", "Abrupt instruction break"},
		{"override_directive", `(?i)\b(new|updated|override)\s+instructions?\s*:`,
			CategoryInjection, SeverityHigh, MechanismInstructionOverride, "", "Injected replacement instructions"},
		{"role_reassignment", `(?i)\b(you\s+are\s+now|from\s+now\s+on\s+you\s+are|pretend\s+(to\s+be|you\s+are))\s+`,
			CategoryInjection, SeverityMedium, MechanismInstructionOverride, "", "Attempt to reassign the assistant role"},

		// Injection: system prompt
		{"system_role", `(?i)\bsystem\s*:\s*(you\s+are|act\s+as|pretend|forget|return)`,
			CategoryInjection, SeverityHigh, MechanismSystemPrompt, "", "System role injection"},
		{"template_injection", `\{\{[^{}]*\}\}|<\|[^|]*\|>`,
			CategoryInjection, SeverityHigh, MechanismSystemPrompt, "", "Template delimiter injection"},
		{"system_tags", `(?i)</?system>|\[/?INST\]|<s>|<</?SYS>>`,
			CategoryInjection, SeverityHigh, MechanismSystemPrompt, "", "Chat markup delimiter injection"},

		// Suspicious
		{"instructions_query", `(?i)\bwhat\s+(are|is|were)\s+your\s+(instructions|system\s+prompt|rules|guidelines)`,
			CategorySuspicious, SeverityMedium, "", "", "Probe for system instructions"},
		{"prompt_reveal", `(?i)\b(show|reveal|print|repeat|output)\s+(me\s+)?your\s+(instructions|system\s+prompt|rules)`,
			CategorySuspicious, SeverityMedium, "", "", "Request to reveal system instructions"},
		{"privilege_escalation", `(?i)\b(admin|administrator|root|developer|sudo)\s+(access|mode|privileges?)\b`,
			CategorySuspicious, SeverityMedium, "", "", "Privilege escalation phrasing"},

		// Explicit content
		{"violence_howto", `(?i)\bhow\s+(to|do\s+i|can\s+i)\s+(kill|murder|harm|hurt|poison|torture)\b`,
			CategoryExplicit, SeverityHigh, "", ContentViolence, "Violent content"},
		{"weapon_howto", `(?i)\bhow\s+(to|do\s+i|can\s+i)\s+(build|make)\s+(a\s+)?(bomb|explosive|pipe\s+bomb)\b`,
			CategoryExplicit, SeverityHigh, "", ContentViolence, "Weapon construction"},
		{"illegal_howto", `(?i)\bhow\s+(to|do\s+i|can\s+i)\s+(hack|steal|commit\s+fraud|launder\s+money|shoplift)\b`,
			CategoryExplicit, SeverityHigh, "", ContentIllegalActivity, "Illegal activity"},
		{"adult_content", `(?i)\b(sexually\s+explicit|pornograph\w*|nsfw)\b`,
			CategoryExplicit, SeverityHigh, "", ContentAdult, "Adult content"},

		// Whitelist
		{"educational_purpose", `(?i)\b(educational|academic)\b`,
			CategoryWhitelist, SeverityNone, "", "", "Educational context"},
		{"research_purpose", `(?i)\bresearch\w*\b`,
			CategoryWhitelist, SeverityNone, "", "", "Research context"},
		{"explanation_request", `(?i)\b(explain|what\s+is)\b`,
			CategoryWhitelist, SeverityNone, "", "", "Explanation request"},
	}

	patterns := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, Pattern{
			ID:          r.id,
			Matcher:     regexp.MustCompile(r.expr),
			Category:    r.category,
			Severity:    r.severity,
			Mechanism:   r.mechanism,
			Content:     r.content,
			Description: r.description,
		})
	}
	return patterns
}

// compileCustomWhitelist compiles user supplied whitelist sources. Invalid
// sources are skipped with a warning so one bad entry never disables the rest.
func compileCustomWhitelist(sources []string, logger *zerolog.Logger) []Pattern {
	var patterns []Pattern
	for i, src := range sources {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("index", i).
				Msg("skipping invalid custom whitelist pattern")
			continue
		}
		patterns = append(patterns, Pattern{
			ID:          fmt.Sprintf("custom_whitelist_%d", i),
			Matcher:     re,
			Category:    CategoryWhitelist,
			Description: "Custom whitelist pattern",
		})
	}
	return patterns
}
