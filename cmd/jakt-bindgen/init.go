package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/jakt-bindgen/internal/config"
)

func (c *cli) initCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a " + config.FileName + " holding the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultFile(path, force); err != nil {
				return withHint(err)
			}
			fmt.Fprintf(c.stdout, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", config.FileName, "file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
