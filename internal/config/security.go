package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
	"gopkg.in/yaml.v3"
)

const defaultSecurityConfigPath = "configs/security.yaml"

// SecurityFile is the on-disk layout of the security options file.
// Values may be scalars or, for WHITELIST_PATTERNS, a list.
type SecurityFile struct {
	Security map[string]any `yaml:"security"`
}

// LoadSecurityOptions reads the options file named by SECURITY_CONFIG_PATH
// (or the default path, which may be absent) and overlays non-empty
// environment variables of the same keys.
func LoadSecurityOptions() (security.Options, error) {
	path := os.Getenv("SECURITY_CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultSecurityConfigPath
	}

	opts, err := loadSecurityFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			opts = security.Options{}
		} else {
			return nil, err
		}
	}

	for _, key := range security.OptionKeys {
		if v := os.Getenv(key); v != "" {
			opts[key] = v
		}
	}
	return opts, nil
}

func loadSecurityFile(path string) (security.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file SecurityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid security config %s: %w", path, err)
	}

	opts := security.Options{}
	for key, value := range file.Security {
		opts[strings.ToUpper(key)] = stringify(value)
	}
	return opts, nil
}

func (f *SecurityFile) Validate() error {
	var unknown []string
	for key := range f.Security {
		if !slices.Contains(security.OptionKeys, strings.ToUpper(key)) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("unknown option keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
