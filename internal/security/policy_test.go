package security

import (
	"reflect"
	"testing"
)

func TestResolvePolicy_Defaults(t *testing.T) {
	p := ResolvePolicy(nil)

	if p.Level != LevelModerate {
		t.Errorf("Level: got %s, want %s", p.Level, LevelModerate)
	}
	enabled := map[string]bool{
		"BlockExplicitContent":      p.BlockExplicitContent,
		"BlockViolence":             p.BlockViolence,
		"BlockIllegalActivities":    p.BlockIllegalActivities,
		"BlockAdultContent":         p.BlockAdultContent,
		"DetectPromptInjection":     p.DetectPromptInjection,
		"DetectSystemPrompts":       p.DetectSystemPrompts,
		"DetectInstructionOverride": p.DetectInstructionOverride,
		"SanitizeInput":             p.SanitizeInput,
		"RemoveScripts":             p.RemoveScripts,
		"LimitRepeatedChars":        p.LimitRepeatedChars,
	}
	for name, v := range enabled {
		if !v {
			t.Errorf("%s should default to enabled", name)
		}
	}
	if p.AllowEducationalContent {
		t.Error("AllowEducationalContent should default to disabled")
	}
	if p.DeepScanThreshold != DefaultDeepScanThreshold {
		t.Errorf("DeepScanThreshold: got %d, want %d", p.DeepScanThreshold, DefaultDeepScanThreshold)
	}
	if len(p.CustomWhitelist) != 0 {
		t.Errorf("CustomWhitelist should be empty, got %v", p.CustomWhitelist)
	}
}

func TestResolvePolicy_Parsing(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		check func(t *testing.T, p Policy)
	}{
		{
			name: "level is case insensitive",
			opts: Options{OptSecurityLevel: " STRICT "},
			check: func(t *testing.T, p Policy) {
				if p.Level != LevelStrict {
					t.Errorf("got %s, want strict", p.Level)
				}
			},
		},
		{
			name: "unknown level falls back to moderate",
			opts: Options{OptSecurityLevel: "paranoid"},
			check: func(t *testing.T, p Policy) {
				if p.Level != LevelModerate {
					t.Errorf("got %s, want moderate", p.Level)
				}
			},
		},
		{
			name: "false disables a default-on toggle",
			opts: Options{OptBlockViolence: "FALSE", OptSanitizeInput: "false"},
			check: func(t *testing.T, p Policy) {
				if p.BlockViolence || p.SanitizeInput {
					t.Error("expected toggles to be disabled")
				}
			},
		},
		{
			name: "malformed boolean keeps default-on toggle enabled",
			opts: Options{OptDetectPromptInjection: "nope"},
			check: func(t *testing.T, p Policy) {
				if !p.DetectPromptInjection {
					t.Error("expected injection detection to stay enabled")
				}
			},
		},
		{
			name: "opt-in flag needs an explicit true",
			opts: Options{OptAllowEducationalContent: "yes"},
			check: func(t *testing.T, p Policy) {
				if p.AllowEducationalContent {
					t.Error("expected educational content to stay disabled")
				}
			},
		},
		{
			name: "opt-in flag enabled",
			opts: Options{OptAllowEducationalContent: "True"},
			check: func(t *testing.T, p Policy) {
				if !p.AllowEducationalContent {
					t.Error("expected educational content to be enabled")
				}
			},
		},
		{
			name: "numeric threshold",
			opts: Options{OptDeepScanThreshold: "250"},
			check: func(t *testing.T, p Policy) {
				if p.DeepScanThreshold != 250 {
					t.Errorf("got %d, want 250", p.DeepScanThreshold)
				}
			},
		},
		{
			name: "malformed threshold falls back",
			opts: Options{OptDeepScanThreshold: "lots"},
			check: func(t *testing.T, p Policy) {
				if p.DeepScanThreshold != DefaultDeepScanThreshold {
					t.Errorf("got %d, want default", p.DeepScanThreshold)
				}
			},
		},
		{
			name: "negative threshold falls back",
			opts: Options{OptDeepScanThreshold: "-3"},
			check: func(t *testing.T, p Policy) {
				if p.DeepScanThreshold != DefaultDeepScanThreshold {
					t.Errorf("got %d, want default", p.DeepScanThreshold)
				}
			},
		},
		{
			name: "custom whitelist is split and trimmed",
			opts: Options{OptWhitelistPatterns: " alpha , ,beta\\d+ "},
			check: func(t *testing.T, p Policy) {
				want := []string{"alpha", `beta\d+`}
				if !reflect.DeepEqual(p.CustomWhitelist, want) {
					t.Errorf("got %v, want %v", p.CustomWhitelist, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ResolvePolicy(tt.opts))
		})
	}
}

func TestPolicy_Fingerprint(t *testing.T) {
	base := DefaultPolicy()

	if base.Fingerprint() != DefaultPolicy().Fingerprint() {
		t.Fatal("equal policies must share a fingerprint")
	}

	variants := map[string]Policy{}

	p := base
	p.BlockViolence = false
	variants["violence off"] = p

	p = base
	p.DeepScanThreshold = 999
	variants["threshold"] = p

	p = base
	p.Level = LevelStrict
	variants["strict"] = p

	p = base
	p.CustomWhitelist = []string{"a,b"}
	variants["one custom source"] = p

	p = base
	p.CustomWhitelist = []string{"a", "b"}
	variants["two custom sources"] = p

	seen := map[string]string{base.Fingerprint(): "base"}
	for name, v := range variants {
		fp := v.Fingerprint()
		if other, ok := seen[fp]; ok {
			t.Errorf("%s shares a fingerprint with %s", name, other)
		}
		seen[fp] = name
	}
}

func TestPolicy_FingerprintEmptyWhitelist(t *testing.T) {
	a := DefaultPolicy()
	b := DefaultPolicy()
	b.CustomWhitelist = []string{}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("nil and empty custom whitelists should fingerprint the same")
	}
}
