// Package config is the properties store described in spec.md §6: a
// layered, typed lookup over the project's ".ao/properties" files, the
// user's and system's ao.properties, and "_AO_"-prefixed environment
// variables, built on the teacher's own configuration library.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/DataDog/viper"
)

// envPrefix is the prefix spec.md §6 documents for property overrides:
// "Shop.Time.Precision" becomes "_AO_SHOP_TIME_PRECISION".
const envPrefix = "_AO"

// Config wraps a *viper.Viper with the layering and typed accessors the
// rest of the module needs; it is deliberately not a package-level
// singleton so tests and concurrent CLI invocations can hold independent
// instances.
type Config struct {
	v          *viper.Viper
	projectDir string
}

// Option customizes Load.
type Option func(*Config)

// WithProjectDir points the project-local ".ao/properties" layer at dir
// instead of the current working directory.
func WithProjectDir(dir string) Option {
	return func(c *Config) {
		c.projectDir = dir
	}
}

// Load builds a Config by layering, lowest precedence first: compiled-in
// defaults, the project-local ".ao/properties", the installation's
// "etc/ao.properties", "/etc/ao.properties", "~/.ao.properties", and finally
// "_AO_"-prefixed environment variables (highest precedence), matching
// spec.md §6's documented search order. Each layer is an extensionless
// ".properties"-format file, read via an explicit SetConfigFile+MergeInConfig
// pass rather than viper's AddConfigPath search, since AddConfigPath stops
// at the first match instead of merging across layers.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()
	v.SetConfigType("properties")

	c := &Config{v: v, projectDir: "."}
	setDefaults(v)

	for _, opt := range opts {
		opt(c)
	}

	candidates := []string{filepath.Join(c.projectDir, ".ao", "properties")}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "etc", "ao.properties"))
	}
	candidates = append(candidates, "/etc/ao.properties")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".ao.properties"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Identity.Hash", "crc")
	v.SetDefault("MMap.Larger.Than", int64(32768))
	v.SetDefault("Dcode.Cache.Secs", 300)
	v.SetDefault("Shop.Time.Precision", 6)
	v.SetDefault("Members.Only", false)
	v.SetDefault("Absolute.Paths", false)
	v.SetDefault("Leave.Roadmap", false)
	v.SetDefault("Reuse.Roadmap", false)
	v.SetDefault("Original.Datestamp", false)
	v.SetDefault("Strict.Audit", false)
	v.SetDefault("Strict.Download", false)
	v.SetDefault("Strict.Upload", false)
	v.SetDefault("Strict.Error", 0)
	v.SetDefault("Verbosity", "STD")
	v.SetDefault("Upload.Only", false)
	v.SetDefault("Download.Only", false)
	v.SetDefault("Execute.Only", false)
	v.SetDefault("Audit.Only", false)
}

// GetString returns the string value of key, or "" if unset.
func (c *Config) GetString(key string) string { return c.v.GetString(key) }

// GetBool returns the boolean value of key, or false if unset.
func (c *Config) GetBool(key string) bool { return c.v.GetBool(key) }

// GetInt returns the integer value of key, or 0 if unset.
func (c *Config) GetInt(key string) int { return c.v.GetInt(key) }

// GetInt64 returns the 64-bit integer value of key, or 0 if unset.
func (c *Config) GetInt64(key string) int64 { return c.v.GetInt64(key) }

// GetDuration returns the duration value of key, or 0 if unset.
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

// GetStringSlice returns the slice value of key, splitting a
// comma-separated string if that's how it was set.
func (c *Config) GetStringSlice(key string) []string { return c.v.GetStringSlice(key) }

// IsSet reports whether key has any value, default or explicit.
func (c *Config) IsSet(key string) bool { return c.v.IsSet(key) }

// Set overrides key programmatically (highest precedence), used by CLI
// flags such as "-p Name=Value" (spec.md §6's "property" action).
func (c *Config) Set(key string, value interface{}) { c.v.Set(key, value) }

// AllKeys returns every known property key, defaulted or explicit --
// used by the "property" CLI action to print the full effective table.
func (c *Config) AllKeys() []string { return c.v.AllKeys() }

// substituteRE matches a "${Name}" token for PROP-style substitution.
var substituteRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute expands every "${Name}" token in s with that property's
// current string value, leaving unknown names as-is (original_source's
// PROP substitution tolerates undefined references rather than erroring).
func (c *Config) Substitute(s string) string {
	return substituteRE.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if !c.v.IsSet(name) {
			return tok
		}
		return c.v.GetString(name)
	})
}

// Unknown reports keys present in the loaded file/env that don't match
// any of the recognized property names in known; spec.md §7 classifies
// this as UnknownPropertyKind, a warning rather than a fatal error.
func (c *Config) Unknown(known map[string]struct{}) []string {
	var out []string
	for _, k := range c.v.AllKeys() {
		if _, ok := known[strings.ToLower(k)]; !ok {
			out = append(out, k)
		}
	}
	return out
}
