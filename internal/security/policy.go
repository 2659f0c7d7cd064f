package security

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

type Level string

const (
	LevelDisabled Level = "disabled"
	LevelBasic    Level = "basic"
	LevelModerate Level = "moderate"
	LevelStrict   Level = "strict"
)

// Option keys recognized by ResolvePolicy.
const (
	OptSecurityLevel             = "SECURITY_LEVEL"
	OptBlockExplicitContent      = "BLOCK_EXPLICIT_CONTENT"
	OptBlockViolence             = "BLOCK_VIOLENCE"
	OptBlockIllegalActivities    = "BLOCK_ILLEGAL_ACTIVITIES"
	OptBlockAdultContent         = "BLOCK_ADULT_CONTENT"
	OptDetectPromptInjection     = "DETECT_PROMPT_INJECTION"
	OptDetectSystemPrompts       = "DETECT_SYSTEM_PROMPTS"
	OptDetectInstructionOverride = "DETECT_INSTRUCTION_OVERRIDE"
	OptSanitizeInput             = "SANITIZE_INPUT"
	OptRemoveScripts             = "REMOVE_SCRIPTS"
	OptLimitRepeatedChars        = "LIMIT_REPEATED_CHARS"
	OptDeepScanThreshold         = "MAX_PROMPT_LENGTH_FOR_DEEP_SCAN"
	OptAllowEducationalContent   = "ALLOW_EDUCATIONAL_CONTENT"
	OptWhitelistPatterns         = "WHITELIST_PATTERNS"
)

// OptionKeys lists every recognized option key.
var OptionKeys = []string{
	OptSecurityLevel,
	OptBlockExplicitContent,
	OptBlockViolence,
	OptBlockIllegalActivities,
	OptBlockAdultContent,
	OptDetectPromptInjection,
	OptDetectSystemPrompts,
	OptDetectInstructionOverride,
	OptSanitizeInput,
	OptRemoveScripts,
	OptLimitRepeatedChars,
	OptDeepScanThreshold,
	OptAllowEducationalContent,
	OptWhitelistPatterns,
}

const DefaultDeepScanThreshold = 1000

// Options are named, environment style configuration values.
type Options map[string]string

// Policy is the resolved validation policy. Treat it as an immutable value:
// every rule set derived from it is fully determined by its fields.
type Policy struct {
	Level Level `json:"level"`

	BlockExplicitContent   bool `json:"block_explicit_content"`
	BlockViolence          bool `json:"block_violence"`
	BlockIllegalActivities bool `json:"block_illegal_activities"`
	BlockAdultContent      bool `json:"block_adult_content"`

	DetectPromptInjection     bool `json:"detect_prompt_injection"`
	DetectSystemPrompts       bool `json:"detect_system_prompts"`
	DetectInstructionOverride bool `json:"detect_instruction_override"`

	SanitizeInput      bool `json:"sanitize_input"`
	RemoveScripts      bool `json:"remove_scripts"`
	LimitRepeatedChars bool `json:"limit_repeated_chars"`

	DeepScanThreshold       int      `json:"deep_scan_threshold"`
	AllowEducationalContent bool     `json:"allow_educational_content"`
	CustomWhitelist         []string `json:"custom_whitelist"`
}

// DefaultPolicy is the policy resolved from an empty option set.
func DefaultPolicy() Policy {
	return ResolvePolicy(nil)
}

// ResolvePolicy turns named options into a Policy. It never fails: absent or
// malformed values fall back to their defaults.
func ResolvePolicy(opts Options) Policy {
	return Policy{
		Level: parseLevel(opts[OptSecurityLevel]),

		BlockExplicitContent:   enabledUnlessFalse(opts[OptBlockExplicitContent]),
		BlockViolence:          enabledUnlessFalse(opts[OptBlockViolence]),
		BlockIllegalActivities: enabledUnlessFalse(opts[OptBlockIllegalActivities]),
		BlockAdultContent:      enabledUnlessFalse(opts[OptBlockAdultContent]),

		DetectPromptInjection:     enabledUnlessFalse(opts[OptDetectPromptInjection]),
		DetectSystemPrompts:       enabledUnlessFalse(opts[OptDetectSystemPrompts]),
		DetectInstructionOverride: enabledUnlessFalse(opts[OptDetectInstructionOverride]),

		SanitizeInput:      enabledUnlessFalse(opts[OptSanitizeInput]),
		RemoveScripts:      enabledUnlessFalse(opts[OptRemoveScripts]),
		LimitRepeatedChars: enabledUnlessFalse(opts[OptLimitRepeatedChars]),

		DeepScanThreshold:       parseThreshold(opts[OptDeepScanThreshold]),
		AllowEducationalContent: enabledOnlyIfTrue(opts[OptAllowEducationalContent]),
		CustomWhitelist:         splitSources(opts[OptWhitelistPatterns]),
	}
}

// Fingerprint returns a stable key identifying every field of the policy.
func (p Policy) Fingerprint() string {
	if len(p.CustomWhitelist) == 0 {
		p.CustomWhitelist = nil
	}
	// Marshalling a struct of plain fields cannot fail.
	canonical, _ := json.Marshal(p)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Disabled reports whether all checks are bypassed.
func (p Policy) Disabled() bool {
	return p.Level == LevelDisabled
}

// IsLong reports whether a prompt of n runes gets the reduced-depth scan.
func (p Policy) IsLong(n int) bool {
	return n > p.DeepScanThreshold
}

func parseLevel(value string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case LevelDisabled:
		return LevelDisabled
	case LevelBasic:
		return LevelBasic
	case LevelStrict:
		return LevelStrict
	default:
		return LevelModerate
	}
}

func enabledUnlessFalse(value string) bool {
	return !strings.EqualFold(strings.TrimSpace(value), "false")
}

func enabledOnlyIfTrue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func parseThreshold(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return DefaultDeepScanThreshold
	}
	return n
}

func splitSources(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var sources []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			sources = append(sources, part)
		}
	}
	return sources
}
