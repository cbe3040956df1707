package config

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Validate checks policy names, required keys and the pair lists.
func (c *Config) Validate() error {
	if len(c.Namespaces) == 0 {
		return errors.WithHint(errors.New("namespaces cannot be empty"),
			"set namespaces in "+FileName+" or pass --namespace")
	}
	switch c.Bases.Policy {
	case "strict", "permissive":
	default:
		return errors.Newf("bases.policy must be strict or permissive, got %q", c.Bases.Policy)
	}
	switch c.Returns.ReferencePolicy {
	case "skip", "unprefixed":
	default:
		return errors.Newf("returns.reference_policy must be skip or unprefixed, got %q", c.Returns.ReferencePolicy)
	}
	switch c.Pointers.Policy {
	case "uniform", "const_aware":
	default:
		return errors.Newf("pointers.policy must be uniform or const_aware, got %q", c.Pointers.Policy)
	}
	if c.Templates.MaxDepth <= 0 {
		return errors.Newf("templates.max_depth must be > 0, got %d", c.Templates.MaxDepth)
	}
	if c.Frontend.MaxIncludeDepth < 0 {
		return errors.Newf("frontend.max_include_depth must be >= 0, got %d", c.Frontend.MaxIncludeDepth)
	}
	if !strings.HasPrefix(c.Extension, ".") {
		return errors.Newf("extension must start with a dot, got %q", c.Extension)
	}
	if _, err := Pairs(c.Strings); err != nil {
		return errors.Wrap(err, "strings")
	}
	if _, err := Pairs(c.Frontend.Aliases); err != nil {
		return errors.Wrap(err, "frontend.aliases")
	}
	if _, err := MultiPairs(c.Frontend.ImpliedBases); err != nil {
		return errors.Wrap(err, "frontend.implied_bases")
	}
	return nil
}
