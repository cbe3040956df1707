package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	bindgen "github.com/jward/jakt-bindgen"
	"github.com/jward/jakt-bindgen/internal/config"
	"github.com/jward/jakt-bindgen/internal/diag"
	"github.com/jward/jakt-bindgen/internal/logging"
	"github.com/jward/jakt-bindgen/internal/watch"
)

type generateFlags struct {
	config           string
	namespaces       []string
	baseDirs         []string
	outputDir        string
	includeDirs      []string
	compileCommands  string
	permissive       bool
	referenceReturns bool
	pointerPolicy    string
	db               string
	verbose          bool
	logJSON          bool
	watch            bool
}

func (c *cli) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Write Jakt bindings for headers and the headers they depend on",
		Long: "Parses each header, collects the classes and enums declared in the target namespaces, " +
			"and writes one .jakt file per header. Headers declaring types the bindings mention are generated too.",
		Args: cobra.MinimumNArgs(1),
		RunE: c.runGenerate,
	}
	f := cmd.Flags()
	f.StringVar(&c.gen.config, "config", "", "configuration file (default: "+config.FileName+" searched upward)")
	f.StringSliceVarP(&c.gen.namespaces, "namespace", "n", nil, "target namespace (repeatable)")
	f.StringSliceVarP(&c.gen.baseDirs, "base-dir", "b", nil, "directory extern import paths are relative to (repeatable)")
	f.StringVarP(&c.gen.outputDir, "output-dir", "o", "", "directory for generated files")
	f.StringSliceVarP(&c.gen.includeDirs, "include-dir", "I", nil, "include search directory (repeatable)")
	f.StringVarP(&c.gen.compileCommands, "compile-commands", "p", "", "compile_commands.json or the directory holding it")
	f.BoolVar(&c.gen.permissive, "permissive", false, "skip unsupported bases with a warning instead of failing")
	f.BoolVar(&c.gen.referenceReturns, "reference-returns", false, "emit methods returning references with the referenced type")
	f.StringVar(&c.gen.pointerPolicy, "pointer-policy", "", "pointer translation: uniform|const_aware")
	f.StringVar(&c.gen.db, "db", "", "manifest database enabling incremental runs")
	f.BoolVarP(&c.gen.verbose, "verbose", "v", false, "log debug diagnostics")
	f.BoolVar(&c.gen.logJSON, "log-json", false, "log JSON lines even on a terminal")
	f.BoolVarP(&c.gen.watch, "watch", "w", false, "regenerate whenever a processed header changes")
	return cmd
}

// flagKeys maps generate flags onto configuration keys.
var flagKeys = map[string]string{
	"namespace":        "namespaces",
	"base-dir":         "base_dirs",
	"output-dir":       "output_dir",
	"include-dir":      "include_dirs",
	"compile-commands": "compile_commands",
	"pointer-policy":   "pointers.policy",
	"db":               "db",
}

// loadConfig layers the changed flags over the file and environment.
func (c *cli) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v, err := config.NewViper(c.gen.config, "")
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}
	if c.gen.permissive {
		v.Set("bases.policy", "permissive")
	}
	if c.gen.referenceReturns {
		v.Set("returns.reference_policy", "unprefixed")
	}
	return config.Load(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "bind --%s", name)
		}
	}
	return nil
}

func (c *cli) runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig(cmd.Flags())
	if err != nil {
		return withHint(err)
	}

	log := logging.New(logging.Options{JSON: c.gen.logJSON, Verbose: c.gen.verbose, Writer: c.stderr})
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	status, files, err := generateOnce(ctx, cfg, log, args)
	c.status = status
	if err != nil {
		log.Errorw("generation aborted", "error", err, "hints", errors.GetAllHints(err))
		c.errorHandled = true
		if !c.gen.watch || !diag.IsFatal(err) {
			return err
		}
	}
	if !c.gen.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.watchLoop(ctx, cfg, log, args, files)
}

// generateOnce runs a fresh Engine over inputs and returns its status and the
// files it visited.
func generateOnce(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, inputs []string) (int, []string, error) {
	engine, err := bindgen.New(cfg, bindgen.WithLogger(log))
	if err != nil {
		return 1, nil, err
	}
	defer engine.Close()
	status, err := engine.Run(ctx, inputs)
	return status, engine.Files(), err
}

// watchLoop regenerates on every change to a visited file until ctx is done.
// The watched set follows the files visited by the latest run.
func (c *cli) watchLoop(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, inputs, files []string) error {
	w, err := watch.New(log, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Set(files); err != nil {
		return err
	}
	log.Infow("watching for changes", "files", len(files))

	err = w.Run(ctx, func(changed []string) {
		log.Infow("regenerating", "changed", changed)
		status, visited, err := generateOnce(ctx, cfg, log, inputs)
		c.status = status
		if err != nil {
			log.Errorw("generation aborted", "error", err, "hints", errors.GetAllHints(err))
		}
		if len(visited) == 0 {
			return
		}
		if err := w.Set(visited); err != nil {
			log.Warnw("cannot update watched files", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
