package provider

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

var (
	envVarPattern    = regexp.MustCompile(`\$\{(\w+)\}`)
	nonIdentPattern  = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	trailingUnders   = regexp.MustCompile(`_+$`)
	leadingUnders    = regexp.MustCompile(`^_+`)
)

// NormalizePrefix derives a provider's namespace prefix from its configured
// name: runs of non-alphanumeric separators collapse to a single underscore
// so downstream tool identifiers stay valid symbolic names
// ("dish-mcp" -> "dish_mcp").
func NormalizePrefix(name string) string {
	prefix := nonIdentPattern.ReplaceAllString(name, "_")
	prefix = leadingUnders.ReplaceAllString(prefix, "")
	prefix = trailingUnders.ReplaceAllString(prefix, "")
	return prefix
}

// substituteEnv replaces every ${NAME} token in the raw document text with
// the process environment value. Unset variables substitute to the empty
// string with a warning; partially configured deployments still start.
func substituteEnv(raw []byte, logger *slog.Logger) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(envVarPattern.FindSubmatch(match)[1])
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			logger.Warn("environment variable is not set", "var", name)
		}
		return []byte(value)
	})
}

// LoadProviders reads the registry document at path, substitutes environment
// placeholders over the raw text, and builds one unconnected Provider per
// entry with the hook registered for that provider name (absent entry means
// calls pass through unmodified).
//
// Missing file, unparseable document and duplicate normalized prefixes are
// all fatal, wrapping ErrConfig.
func LoadProviders(path string, hooks map[string]Hook, logger *slog.Logger) ([]*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "provider-registry")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	raw = substituteEnv(raw, logger)

	var doc configFile
	if err := json5.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	// Sort names for deterministic construction order and stable collision
	// reporting.
	names := make([]string, 0, len(doc.Providers))
	for name := range doc.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	providers := make([]*Provider, 0, len(names))
	for _, name := range names {
		cfg := doc.Providers[name]
		if cfg == nil {
			return nil, fmt.Errorf("%w: provider %q has no configuration", ErrConfig, name)
		}
		cfg.Name = name

		prefix := NormalizePrefix(name)
		if prefix == "" {
			return nil, fmt.Errorf("%w: provider %q normalizes to an empty prefix", ErrConfig, name)
		}
		if other, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("%w: providers %q and %q collide on namespace prefix %q", ErrConfig, other, name, prefix)
		}
		seen[prefix] = name

		providers = append(providers, NewProvider(cfg, prefix, hooks[name], logger))
		logger.Debug("loaded provider config",
			"name", name,
			"prefix", prefix,
			"hooked", hooks[name] != nil)
	}

	return providers, nil
}
