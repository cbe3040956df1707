package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli holds the flag values and streams of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	// status is the exit status reported by the generate command.
	status int
	// errorHandled is set by commands that already printed their error.
	errorHandled bool

	gen    generateFlags
	db     string
	format string
}

// run executes the command line and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !c.errorHandled {
			fmt.Fprintf(stderr, "Error: %s\n", err)
		}
		if c.status == 0 {
			return 1
		}
	}
	return c.status
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jakt-bindgen",
		Short:         "Generate Jakt extern bindings from C++ headers",
		Long:          "jakt-bindgen parses C++ headers written against AK and LibCore and writes Jakt `import extern` declarations for the classes of the target namespaces.",
		SilenceErrors: true,
		SilenceUsage:  true,
		// No Run: prints help by default.
	}
	root.AddCommand(c.generateCmd())
	root.AddCommand(c.initCmd())
	root.AddCommand(c.statusCmd())
	root.AddCommand(c.versionCmd())
	return root
}

// withHint folds the first hint of err into its message for printing.
func withHint(err error) error {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return errors.Newf("%v (hint: %s)", err, hints[0])
	}
	return err
}
