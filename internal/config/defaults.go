package config

import (
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/jward/jakt-bindgen/internal/cxx"
	"github.com/jward/jakt-bindgen/internal/translate"
)

// SetDefaults seeds every configuration key.
func SetDefaults(v *viper.Viper) {
	tr := translate.DefaultOptions()

	v.SetDefault("namespaces", []string{})
	v.SetDefault("base_dirs", []string{})
	v.SetDefault("output_dir", ".")
	v.SetDefault("include_dirs", []string{})
	v.SetDefault("compile_commands", "")
	v.SetDefault("extension", ".jakt")
	v.SetDefault("db", "") // empty disables incremental mode

	v.SetDefault("bases.policy", "strict")
	v.SetDefault("returns.reference_policy", "skip")
	v.SetDefault("pointers.policy", "uniform")
	v.SetDefault("receiver.mark_mutable", false)
	v.SetDefault("templates.max_depth", 8)

	v.SetDefault("markers.ref_counted_base", "AK::RefCountedBase")
	v.SetDefault("markers.lifecycle_base", "Core::Object")
	v.SetDefault("markers.suppressed_imports", []string{"AK::RefCounted", "AK::Weakable"})
	v.SetDefault("markers.factory_name", "try_create")

	v.SetDefault("wrappers.fallible", tr.Wrappers.Fallible)
	v.SetDefault("wrappers.owning", tr.Wrappers.Owning)
	v.SetDefault("wrappers.optional", tr.Wrappers.Optional)
	v.SetDefault("wrappers.sequence", tr.Wrappers.Sequence)
	v.SetDefault("wrappers.map", tr.Wrappers.Map)
	v.SetDefault("wrappers.weak", tr.Wrappers.Weak)
	v.SetDefault("wrappers.callable", tr.Wrappers.Callable)

	v.SetDefault("strings", pairList(tr.Strings))

	v.SetDefault("frontend.aliases", pairList(cxx.DefaultAliases))
	implied := make([]string, 0, len(cxx.DefaultImpliedBases))
	for k, bases := range cxx.DefaultImpliedBases {
		implied = append(implied, k+"="+strings.Join(bases, ","))
	}
	sort.Strings(implied)
	v.SetDefault("frontend.implied_bases", implied)
	v.SetDefault("frontend.strip_macros", cxx.DefaultStripMacros)
	v.SetDefault("frontend.max_include_depth", 16)
}
