package config

import (
	"go.uber.org/zap"

	"github.com/jward/jakt-bindgen/internal/collect"
	"github.com/jward/jakt-bindgen/internal/cxx"
	"github.com/jward/jakt-bindgen/internal/emit"
	"github.com/jward/jakt-bindgen/internal/translate"
)

// TranslateOptions returns the type translator settings.
func (c *Config) TranslateOptions() (translate.Options, error) {
	strs, err := Pairs(c.Strings)
	if err != nil {
		return translate.Options{}, err
	}
	opts := translate.Options{
		Wrappers: translate.Wrappers{
			Fallible: c.Wrappers.Fallible,
			Owning:   c.Wrappers.Owning,
			Optional: c.Wrappers.Optional,
			Sequence: c.Wrappers.Sequence,
			Map:      c.Wrappers.Map,
			Weak:     c.Wrappers.Weak,
			Callable: c.Wrappers.Callable,
		},
		Strings: strs,
	}
	if c.Pointers.Policy == "const_aware" {
		opts.Pointers = translate.PointersConstAware
	}
	return opts, nil
}

// CollectOptions returns the declaration index settings. isWrapper is
// normally the translator's IsWrapper.
func (c *Config) CollectOptions(isWrapper func(string) bool) collect.Options {
	opts := collect.Options{
		Namespaces:       c.Namespaces,
		Suppressed:       c.Markers.SuppressedImports,
		IsWrapper:        isWrapper,
		MaxTemplateDepth: c.Templates.MaxDepth,
	}
	if c.Bases.Policy == "permissive" {
		opts.Bases = collect.BasesPermissive
	}
	return opts
}

// EmitOptions returns the emitter settings.
func (c *Config) EmitOptions() emit.Options {
	opts := emit.Options{
		RefCountedBase:  c.Markers.RefCountedBase,
		LifecycleBase:   c.Markers.LifecycleBase,
		Suppressed:      c.Markers.SuppressedImports,
		FactoryName:     c.Markers.FactoryName,
		MutableReceiver: c.Receiver.MarkMutable,
	}
	if c.Returns.ReferencePolicy == "unprefixed" {
		opts.References = emit.ReferencesUnprefixed
	}
	return opts
}

// includeDirs returns the configured include directories followed by those
// of the compilation database.
func (c *Config) includeDirs() ([]string, error) {
	dirs := append([]string{}, c.IncludeDirs...)
	if c.CompileCommands == "" {
		return dirs, nil
	}
	cmds, err := cxx.LoadCompileCommands(c.CompileCommands)
	if err != nil {
		return nil, err
	}
	extra, err := cxx.IncludeDirs(cmds)
	if err != nil {
		return nil, err
	}
	return append(dirs, extra...), nil
}

// FrontendOptions returns the C++ parser settings. Include directories from
// the compilation database follow the configured ones.
func (c *Config) FrontendOptions(log *zap.SugaredLogger) (cxx.Options, error) {
	aliases, err := Pairs(c.Frontend.Aliases)
	if err != nil {
		return cxx.Options{}, err
	}
	implied, err := MultiPairs(c.Frontend.ImpliedBases)
	if err != nil {
		return cxx.Options{}, err
	}
	dirs, err := c.includeDirs()
	if err != nil {
		return cxx.Options{}, err
	}
	strip := c.Frontend.StripMacros
	if strip == nil {
		strip = []string{}
	}
	return cxx.Options{
		IncludeDirs:     dirs,
		MaxIncludeDepth: c.Frontend.MaxIncludeDepth,
		Aliases:         aliases,
		ImpliedBases:    implied,
		StripMacros:     strip,
		Logger:          log,
	}, nil
}
