// Package imports tracks which source files have been scheduled for
// processing during a run.
//
// A Resolver owns the process-wide seen set and the worklist of files
// discovered while processing earlier ones. Every path passes through
// Canonicalize before it is compared, so two spellings of the same file
// are scheduled once.
package imports

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Canonicalize returns the absolute, symlink-free form of path. Paths that
// do not exist are returned absolute and cleaned.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "canonicalize %s", path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return filepath.Clean(abs), nil
		}
		return "", errors.Wrapf(err, "canonicalize %s", path)
	}
	return resolved, nil
}

// Resolver is the seen set plus the FIFO worklist. It is not safe for
// concurrent use; the driver processes files on one goroutine.
type Resolver struct {
	seen  map[string]struct{}
	queue []string
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{seen: make(map[string]struct{})}
}

// MarkSeen adds path to the seen set without scheduling it. It reports
// whether path was previously unseen. path must already be canonical.
func (r *Resolver) MarkSeen(path string) bool {
	if _, ok := r.seen[path]; ok {
		return false
	}
	r.seen[path] = struct{}{}
	return true
}

// Seen reports whether path has been seen.
func (r *Resolver) Seen(path string) bool {
	_, ok := r.seen[path]
	return ok
}

// Schedule canonicalizes path and, if it has not been seen, marks it seen
// and appends it to the worklist. It reports whether path was scheduled.
func (r *Resolver) Schedule(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	canon, err := Canonicalize(path)
	if err != nil {
		return false, err
	}
	if !r.MarkSeen(canon) {
		return false, nil
	}
	r.queue = append(r.queue, canon)
	return true, nil
}

// Drain removes and returns every pending path in scheduling order.
func (r *Resolver) Drain() []string {
	out := r.queue
	r.queue = nil
	return out
}

// Pending returns the number of scheduled but undrained paths.
func (r *Resolver) Pending() int { return len(r.queue) }
