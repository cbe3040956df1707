package cxx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// CompileCommand is one entry of a compile_commands.json database.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Args returns the argument vector. Arguments win over Command when both
// are present.
func (c CompileCommand) Args() ([]string, error) {
	if len(c.Arguments) > 0 {
		return c.Arguments, nil
	}
	if c.Command == "" {
		return nil, nil
	}
	args, err := shellquote.Split(c.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "split command for %s", c.File)
	}
	return args, nil
}

// LoadCompileCommands reads a compilation database. path may name the JSON
// file or the directory holding compile_commands.json.
func LoadCompileCommands(path string) ([]CompileCommand, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat compilation database")
	}
	if fi.IsDir() {
		path = filepath.Join(path, "compile_commands.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read compilation database")
	}
	var cmds []CompileCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return cmds, nil
}

var includeFlags = []string{"-I", "-isystem", "-iquote"}

// IncludeDirs collects the include directories named by -I, -isystem and
// -iquote across cmds, in first-seen order. Relative directories are taken
// against the entry's working directory.
func IncludeDirs(cmds []CompileCommand) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(base, dir string) {
		if dir == "" {
			return
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, c := range cmds {
		args, err := c.Args()
		if err != nil {
			return nil, err
		}
		for i := 0; i < len(args); i++ {
			a := args[i]
			for _, flag := range includeFlags {
				if a == flag {
					if i+1 < len(args) {
						add(c.Directory, args[i+1])
						i++
					}
					break
				}
				if strings.HasPrefix(a, flag) {
					add(c.Directory, strings.TrimPrefix(a, flag))
					break
				}
			}
		}
	}
	return dirs, nil
}
