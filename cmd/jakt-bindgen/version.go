package main

import (
	"fmt"

	"github.com/spf13/cobra"

	bindgen "github.com/jward/jakt-bindgen"
)

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the generator version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "jakt-bindgen %s\n", bindgen.Version)
		},
	}
}
