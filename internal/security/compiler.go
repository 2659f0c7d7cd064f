package security

import (
	"fmt"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 16

// PatternSet is the active rule set derived from one policy. It is shared
// between concurrent validations and must not be modified.
type PatternSet struct {
	Fingerprint string
	Injection   []Pattern
	Suspicious  []Pattern
	Explicit    []Pattern
	Whitelist   []Pattern
}

// Len returns the number of active patterns across all categories.
func (s *PatternSet) Len() int {
	return len(s.Injection) + len(s.Suspicious) + len(s.Explicit) + len(s.Whitelist)
}

func (s *PatternSet) Empty() bool {
	return s.Len() == 0
}

// CacheStats is a point-in-time view of the compiler cache.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Resets  int64 `json:"resets"`
}

// Compiler maps policies to pattern sets, memoized in an LRU keyed by the
// policy fingerprint.
type Compiler struct {
	registry *Registry
	cache    *lru.Cache[string, *PatternSet]
	group    singleflight.Group
	logger   *zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	resets atomic.Int64
}

func NewCompiler(registry *Registry, size int, logger *zerolog.Logger) (*Compiler, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, *PatternSet](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	return &Compiler{
		registry: registry,
		cache:    cache,
		logger:   logger,
	}, nil
}

// Compile returns the active pattern set for the policy. Concurrent calls
// with the same fingerprint share a single compilation.
func (c *Compiler) Compile(policy Policy) *PatternSet {
	return c.compile(policy.Fingerprint(), policy)
}

// compile is Compile with the fingerprint already computed by the caller.
func (c *Compiler) compile(key string, policy Policy) *PatternSet {
	if set, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return set
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if set, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			return set, nil
		}
		c.misses.Add(1)
		set := c.build(policy, key)
		c.cache.Add(key, set)

		c.logger.Debug().
			Str("fingerprint", key).
			Str("level", string(policy.Level)).
			Int("patterns", set.Len()).
			Msg("compiled pattern set")
		return set, nil
	})
	return v.(*PatternSet)
}

// Peek returns the memoized set for the policy without compiling it or
// touching its recency.
func (c *Compiler) Peek(policy Policy) (*PatternSet, bool) {
	return c.cache.Peek(policy.Fingerprint())
}

func (c *Compiler) peek(key string) (*PatternSet, bool) {
	return c.cache.Peek(key)
}

// Reset drops every memoized set. Validations already holding a set keep
// using it.
func (c *Compiler) Reset() {
	c.cache.Purge()
	c.resets.Add(1)
}

func (c *Compiler) Stats() CacheStats {
	return CacheStats{
		Entries: c.cache.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Resets:  c.resets.Load(),
	}
}

func (c *Compiler) build(policy Policy, fingerprint string) *PatternSet {
	set := &PatternSet{Fingerprint: fingerprint}
	if policy.Disabled() {
		return set
	}

	if policy.AllowEducationalContent {
		set.Whitelist = append(set.Whitelist, c.registry.Patterns(CategoryWhitelist)...)
	}
	set.Whitelist = append(set.Whitelist, compileCustomWhitelist(policy.CustomWhitelist, c.logger)...)

	if policy.DetectPromptInjection {
		for _, p := range c.registry.Patterns(CategoryInjection) {
			if !injectionEnabled(policy, p) {
				continue
			}
			if policy.Level == LevelBasic && p.Severity != SeverityHigh {
				continue
			}
			set.Injection = append(set.Injection, p)
		}
		// High severity first so the match cap never hides a blocking rule.
		slices.SortStableFunc(set.Injection, func(a, b Pattern) int {
			return severityRank(a.Severity) - severityRank(b.Severity)
		})
	}

	if policy.BlockExplicitContent {
		for _, p := range c.registry.Patterns(CategoryExplicit) {
			if contentEnabled(policy, p.Content) {
				set.Explicit = append(set.Explicit, p)
			}
		}
	}

	if policy.Level != LevelBasic {
		set.Suspicious = c.registry.Patterns(CategorySuspicious)
	}

	return set
}

func severityRank(s Severity) int {
	if s == SeverityHigh {
		return 0
	}
	return 1
}

func injectionEnabled(policy Policy, p Pattern) bool {
	switch p.Mechanism {
	case MechanismSystemPrompt:
		return policy.DetectSystemPrompts
	case MechanismInstructionOverride:
		return policy.DetectInstructionOverride
	default:
		return true
	}
}

func contentEnabled(policy Policy, content ContentCategory) bool {
	switch content {
	case ContentViolence:
		return policy.BlockViolence
	case ContentIllegalActivity:
		return policy.BlockIllegalActivities
	case ContentAdult:
		return policy.BlockAdultContent
	default:
		return true
	}
}
