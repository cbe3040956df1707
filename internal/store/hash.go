package store

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
)

// HashFiles computes a deterministic hash over the paths and contents of
// files. Order of the input does not matter.
func HashFiles(paths []string) (string, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		content, err := os.ReadFile(p)
		if err != nil {
			return "", errors.Wrapf(err, "hash %s", p)
		}
		fmt.Fprintf(h, "file:%s:%x\n", p, sha256.Sum256(content))
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
