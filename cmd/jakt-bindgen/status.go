package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/jakt-bindgen/internal/store"
)

// statusEntry is one manifest row as printed by status.
type statusEntry struct {
	Path         string    `json:"path" yaml:"path"`
	Output       string    `json:"output" yaml:"output"`
	Hash         string    `json:"hash" yaml:"hash"`
	GeneratedAt  time.Time `json:"generated_at" yaml:"generated_at"`
	Dependencies []string  `json:"dependencies" yaml:"dependencies"`
	// Dependents are the entries that scheduled this one.
	Dependents []string `json:"dependents" yaml:"dependents"`
}

func (c *cli) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the files recorded in a manifest database",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(c.format)
		},
		RunE: c.runStatus,
	}
	cmd.Flags().StringVar(&c.db, "db", "", "manifest database path")
	cmd.Flags().StringVar(&c.format, "format", "text", "output format: text|json|yaml")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (c *cli) runStatus(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(c.db); err != nil {
		return errors.Wrapf(err, "manifest %s", c.db)
	}
	s, err := store.NewStore(c.db)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return err
	}

	files, err := s.Files()
	if err != nil {
		return err
	}
	entries := make([]statusEntry, 0, len(files))
	for _, f := range files {
		deps, err := s.Dependencies(f.ID)
		if err != nil {
			return err
		}
		users, err := s.Dependents(f.Path)
		if err != nil {
			return err
		}
		if deps == nil {
			deps = []string{}
		}
		if users == nil {
			users = []string{}
		}
		entries = append(entries, statusEntry{
			Path:         f.Path,
			Output:       f.Output,
			Hash:         f.Hash,
			GeneratedAt:  f.GeneratedAt,
			Dependencies: deps,
			Dependents:   users,
		})
	}

	switch c.format {
	case "json":
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(c.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}
	formatStatusText(c.stdout, entries)
	return nil
}

// formatStatusText formats manifest entries as aligned columns.
func formatStatusText(w io.Writer, entries []statusEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tOUTPUT\tGENERATED\tDEPENDENCIES\tDEPENDENTS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			e.Path, e.Output, e.GeneratedAt.Local().Format(time.DateTime), len(e.Dependencies), len(e.Dependents))
	}
	tw.Flush()
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return errors.Newf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
