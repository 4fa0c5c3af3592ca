package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrRootMissing is returned when the local source root does not exist;
// like a config error it is fatal before any dispatch happens.
var ErrRootMissing = errors.New("source directory does not exist")

// LocalFile is one file discovered under the source root. Immutable for the
// duration of a run.
type LocalFile struct {
	AbsPath string
	Key     string // prefix-qualified, POSIX-style remote key
	Size    int64
	ModTime time.Time
}

// Enumerate walks root with an explicit worklist (no recursion, deep trees
// are fine) and returns the files to consider, sorted by key for stable
// reporting. Exclude patterns are doublestar globs matched against the
// POSIX relative path.
func Enumerate(root, prefix string, excludes []string) ([]*LocalFile, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootMissing, root)
	}

	var files []*LocalFile
	worklist := []string{root}

	for len(worklist) > 0 {
		dir := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				worklist = append(worklist, path)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil, err
			}
			relKey := filepath.ToSlash(rel)

			if matchesAny(excludes, relKey) {
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				return nil, err
			}

			files = append(files, &LocalFile{
				AbsPath: path,
				Key:     prefix + relKey,
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func matchesAny(patterns []string, relKey string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relKey); err == nil && ok {
			return true
		}
	}
	return false
}
