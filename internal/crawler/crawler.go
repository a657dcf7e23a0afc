// Package crawler discovers mdml source files on disk. It is the pipeline's
// only filesystem-facing front-end: it turns a root directory plus glob
// patterns into a stable-ordered list of (file id, content) pairs, leaving
// the core stages free of I/O.
package crawler

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"mdml/internal/pipeline"
)

// DefaultPattern matches every mdml source under the root.
const DefaultPattern = "**/*.mdm"

// Crawler walks a directory tree collecting sources that match its patterns.
type Crawler struct {
	patterns []string
	ignored  []string
}

// New creates a crawler. With no patterns the default one applies.
func New(patterns ...string) *Crawler {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	return &Crawler{
		patterns: patterns,
		ignored:  []string{".git", "vendor", "node_modules", "testdata"},
	}
}

// Discover returns the matching sources under root, sorted lexicographically
// by path so repeated runs feed the resolver in the same order. File ids are
// slash-separated paths relative to root. Unreadable files are skipped
// rather than failing the whole walk.
func (c *Crawler) Discover(root string) ([]pipeline.Source, error) {
	var sources []pipeline.Source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !c.matches(rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		sources = append(sources, pipeline.Source{
			ID:      rel,
			Content: normalize(string(content)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

func (c *Crawler) matches(rel string) bool {
	for _, p := range c.patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
