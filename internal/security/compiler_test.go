package security

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newTestCompiler(t *testing.T, size int) *Compiler {
	t.Helper()
	c, err := NewCompiler(DefaultRegistry(), size, newTestLogger())
	if err != nil {
		t.Fatalf("NewCompiler failed: %v", err)
	}
	return c
}

func TestCompiler_DefaultPolicy(t *testing.T) {
	c := newTestCompiler(t, 0)
	set := c.Compile(DefaultPolicy())

	if len(set.Injection) != 7 {
		t.Errorf("expected 7 injection patterns, got %d", len(set.Injection))
	}
	if len(set.Explicit) != 4 {
		t.Errorf("expected 4 explicit patterns, got %d", len(set.Explicit))
	}
	if len(set.Suspicious) != 3 {
		t.Errorf("expected 3 suspicious patterns, got %d", len(set.Suspicious))
	}
	if len(set.Whitelist) != 0 {
		t.Errorf("expected no whitelist patterns by default, got %d", len(set.Whitelist))
	}

	// High severity rules are ordered first.
	last := set.Injection[len(set.Injection)-1]
	if last.Severity != SeverityMedium {
		t.Errorf("expected medium severity rule last, got %s (%s)", last.ID, last.Severity)
	}
}

func TestCompiler_Toggles(t *testing.T) {
	tests := []struct {
		name          string
		opts          Options
		wantInjection int
		wantExplicit  int
		wantSuspect   int
		wantWhitelist int
	}{
		{"disabled level", Options{OptSecurityLevel: "disabled"}, 0, 0, 0, 0},
		{"basic level", Options{OptSecurityLevel: "basic"}, 6, 4, 0, 0},
		{"no injection detection", Options{OptDetectPromptInjection: "false"}, 0, 4, 3, 0},
		{"no system prompt detection", Options{OptDetectSystemPrompts: "false"}, 4, 4, 3, 0},
		{"no instruction override detection", Options{OptDetectInstructionOverride: "false"}, 3, 4, 3, 0},
		{"no explicit content", Options{OptBlockExplicitContent: "false"}, 7, 0, 3, 0},
		{"no violence", Options{OptBlockViolence: "false"}, 7, 2, 3, 0},
		{"no illegal activity", Options{OptBlockIllegalActivities: "false"}, 7, 3, 3, 0},
		{"no adult content", Options{OptBlockAdultContent: "false"}, 7, 3, 3, 0},
		{"educational content", Options{OptAllowEducationalContent: "true"}, 7, 4, 3, 3},
		{"custom whitelist", Options{OptWhitelistPatterns: "alpha,beta"}, 7, 4, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompiler(t, 0)
			set := c.Compile(ResolvePolicy(tt.opts))

			if len(set.Injection) != tt.wantInjection {
				t.Errorf("injection: got %d, want %d", len(set.Injection), tt.wantInjection)
			}
			if len(set.Explicit) != tt.wantExplicit {
				t.Errorf("explicit: got %d, want %d", len(set.Explicit), tt.wantExplicit)
			}
			if len(set.Suspicious) != tt.wantSuspect {
				t.Errorf("suspicious: got %d, want %d", len(set.Suspicious), tt.wantSuspect)
			}
			if len(set.Whitelist) != tt.wantWhitelist {
				t.Errorf("whitelist: got %d, want %d", len(set.Whitelist), tt.wantWhitelist)
			}
		})
	}
}

func TestCompiler_DisabledIsEmpty(t *testing.T) {
	c := newTestCompiler(t, 0)
	set := c.Compile(ResolvePolicy(Options{
		OptSecurityLevel:           "disabled",
		OptAllowEducationalContent: "true",
		OptWhitelistPatterns:       "alpha",
	}))
	if !set.Empty() {
		t.Errorf("disabled policy should compile to an empty set, got %d patterns", set.Len())
	}
}

func TestCompiler_CacheHit(t *testing.T) {
	c := newTestCompiler(t, 0)

	first := c.Compile(DefaultPolicy())
	second := c.Compile(DefaultPolicy())

	if first != second {
		t.Error("equal policies should return the same compiled set")
	}
	stats := c.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %+v", stats)
	}
}

func TestCompiler_DistinctPoliciesNotShared(t *testing.T) {
	c := newTestCompiler(t, 0)

	a := DefaultPolicy()
	b := DefaultPolicy()
	b.BlockViolence = false

	setA := c.Compile(a)
	setB := c.Compile(b)

	if setA == setB {
		t.Fatal("policies differing in one toggle must not share a set")
	}
	if len(setA.Explicit) == len(setB.Explicit) {
		t.Error("violence toggle should change the explicit rule count")
	}
	if c.Stats().Misses != 2 {
		t.Errorf("expected 2 misses, got %d", c.Stats().Misses)
	}
}

func TestCompiler_InvalidCustomPatternSkipped(t *testing.T) {
	c := newTestCompiler(t, 0)
	set := c.Compile(ResolvePolicy(Options{OptWhitelistPatterns: "([,safe-word"}))

	if len(set.Whitelist) != 1 {
		t.Fatalf("expected the valid custom pattern only, got %d", len(set.Whitelist))
	}
	if !set.Whitelist[0].Matcher.MatchString("please allow SAFE-WORD here") {
		t.Error("valid custom pattern should match case-insensitively")
	}
}

func TestCompiler_Reset(t *testing.T) {
	c := newTestCompiler(t, 0)
	p := DefaultPolicy()

	before := c.Compile(p)
	c.Reset()
	c.Reset()

	if _, ok := c.Peek(p); ok {
		t.Error("reset should drop memoized sets")
	}
	stats := c.Stats()
	if stats.Entries != 0 || stats.Resets != 2 {
		t.Errorf("unexpected stats after reset: %+v", stats)
	}

	after := c.Compile(p)
	if after == before {
		t.Error("expected a fresh compilation after reset")
	}
	if c.Stats().Misses != 2 {
		t.Errorf("expected 2 misses, got %d", c.Stats().Misses)
	}
}

func TestCompiler_LRUEviction(t *testing.T) {
	c := newTestCompiler(t, 2)

	p1 := ResolvePolicy(Options{OptDeepScanThreshold: "100"})
	p2 := ResolvePolicy(Options{OptDeepScanThreshold: "200"})
	p3 := ResolvePolicy(Options{OptDeepScanThreshold: "300"})

	c.Compile(p1)
	c.Compile(p2)
	c.Compile(p1) // p2 is now least recently used
	c.Compile(p3)

	if _, ok := c.Peek(p2); ok {
		t.Error("least recently used policy should be evicted")
	}
	if _, ok := c.Peek(p1); !ok {
		t.Error("recently used policy should stay cached")
	}
	if set, ok := c.Peek(p3); !ok || set.Fingerprint != p3.Fingerprint() {
		t.Error("newest policy should be cached under its own fingerprint")
	}
}

func TestCompiler_ConcurrentCompile(t *testing.T) {
	c := newTestCompiler(t, 0)
	p := DefaultPolicy()

	const workers = 32
	sets := make([]*PatternSet, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				c.Reset()
			}
			sets[i] = c.Compile(p)
		}(i)
	}
	wg.Wait()

	for i, s := range sets {
		if s == nil || s.Len() != sets[0].Len() {
			t.Fatalf("worker %d got an inconsistent set", i)
		}
	}
}
