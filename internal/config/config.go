// Package config loads jakt-bindgen settings from a TOML file, the
// environment and command-line flags.
//
// Tables keyed by qualified C++ names (strings, frontend aliases, implied
// bases) are written as lists of "from=to" pairs, since viper folds map
// keys to lower case.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// FileName is the project configuration file searched for upward from the
// working directory.
const FileName = "jakt-bindgen.toml"

// Config is the complete run configuration.
type Config struct {
	Namespaces      []string `mapstructure:"namespaces"`
	BaseDirs        []string `mapstructure:"base_dirs"`
	OutputDir       string   `mapstructure:"output_dir"`
	IncludeDirs     []string `mapstructure:"include_dirs"`
	CompileCommands string   `mapstructure:"compile_commands"`
	Extension       string   `mapstructure:"extension"`
	DB              string   `mapstructure:"db"`

	Bases     BasesConfig     `mapstructure:"bases"`
	Returns   ReturnsConfig   `mapstructure:"returns"`
	Pointers  PointersConfig  `mapstructure:"pointers"`
	Receiver  ReceiverConfig  `mapstructure:"receiver"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Markers   MarkersConfig   `mapstructure:"markers"`
	Wrappers  WrappersConfig  `mapstructure:"wrappers"`
	// Strings pairs a qualified string class with its Jakt name, "AK::String=String".
	Strings  []string       `mapstructure:"strings"`
	Frontend FrontendConfig `mapstructure:"frontend"`
}

type BasesConfig struct {
	Policy string `mapstructure:"policy"` // strict | permissive
}

type ReturnsConfig struct {
	ReferencePolicy string `mapstructure:"reference_policy"` // skip | unprefixed
}

type PointersConfig struct {
	Policy string `mapstructure:"policy"` // uniform | const_aware
}

type ReceiverConfig struct {
	MarkMutable bool `mapstructure:"mark_mutable"`
}

type TemplatesConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// MarkersConfig names the marker base classes and the factory attribute.
type MarkersConfig struct {
	RefCountedBase    string   `mapstructure:"ref_counted_base"`
	LifecycleBase     string   `mapstructure:"lifecycle_base"`
	SuppressedImports []string `mapstructure:"suppressed_imports"`
	FactoryName       string   `mapstructure:"factory_name"`
}

// WrappersConfig holds the qualified names of the recognized templates.
type WrappersConfig struct {
	Fallible string `mapstructure:"fallible"`
	Owning   string `mapstructure:"owning"`
	Optional string `mapstructure:"optional"`
	Sequence string `mapstructure:"sequence"`
	Map      string `mapstructure:"map"`
	Weak     string `mapstructure:"weak"`
	Callable string `mapstructure:"callable"`
}

// FrontendConfig configures the C++ parser.
type FrontendConfig struct {
	Aliases         []string `mapstructure:"aliases"`
	ImpliedBases    []string `mapstructure:"implied_bases"`
	StripMacros     []string `mapstructure:"strip_macros"`
	MaxIncludeDepth int      `mapstructure:"max_include_depth"`
}

// Pairs parses "from=to" entries. Repeated keys keep the last value.
func Pairs(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		from, to, ok := strings.Cut(e, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, errors.Newf("malformed pair %q, want \"from=to\"", e)
		}
		out[from] = to
	}
	return out, nil
}

// MultiPairs parses "from=a,b" entries into lists.
func MultiPairs(entries []string) (map[string][]string, error) {
	flat, err := Pairs(entries)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(flat))
	for k, v := range flat {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out[k] = append(out[k], s)
			}
		}
	}
	return out, nil
}

func pairList(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Fingerprint hashes every setting that can change generated text. Two
// configurations with the same fingerprint produce the same output for the
// same sources. A compilation database contributes the include directories
// it resolves to, not its path.
func (c *Config) Fingerprint() string {
	shaped := *c
	shaped.DB = ""
	if dirs, err := c.includeDirs(); err == nil {
		shaped.IncludeDirs, shaped.CompileCommands = dirs, ""
	}
	data, _ := json.Marshal(shaped)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
