// Package scanner walks a function-root directory tree and maps it to the
// hierarchical module namespace, running the text extractor on each source
// file it keeps.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/funcdeck-hq/funcdeck/internal/extract"
	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

const cacheSize = 1024

// Options control which directory entries the walk considers.
type Options struct {
	// SourceExtensions are the file extensions treated as source files,
	// including the dot.
	SourceExtensions []string
	// ExcludeDirs are directory names skipped entirely.
	ExcludeDirs []string
	// TestSuffixes are file-name suffixes that mark a file as a test.
	TestSuffixes []string
}

// DefaultOptions match the layout conventions of a backend-function
// project: generated output lives under _generated, tests next to source.
func DefaultOptions() Options {
	return Options{
		SourceExtensions: []string{".ts", ".js", ".tsx", ".jsx"},
		ExcludeDirs:      []string{"_generated", "node_modules", "tests", "__tests__"},
		TestSuffixes:     []string{".test.ts", ".test.js", ".spec.ts", ".spec.js"},
	}
}

type cacheEntry struct {
	modTime int64
	size    int64
	fns     []model.FunctionDescriptor
}

// Scanner performs walks. Extraction results are cached per file and
// revalidated by modification time and size, so rebuilds only re-extract
// files that actually changed.
type Scanner struct {
	opts  Options
	cache *lru.Cache[string, cacheEntry]
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Scanner{opts: opts, cache: cache}
}

// Walk traverses root and returns the module tree. It fails only when root
// itself is unreadable; per-entry errors are logged and the entry skipped.
func (s *Scanner) Walk(root string) ([]model.ModuleNode, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read function root %s: %w", root, err)
	}
	return s.walkEntries(root, "", entries), nil
}

// walkEntries maps one directory's entries to module nodes. parentPath is
// empty at the root.
func (s *Scanner) walkEntries(dir, parentPath string, entries []os.DirEntry) []model.ModuleNode {
	nodes := make([]model.ModuleNode, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if s.skip(entry) {
			continue
		}

		full := filepath.Join(dir, name)
		if entry.IsDir() {
			children, err := os.ReadDir(full)
			if err != nil {
				log.Warn().Err(err).Str("dir", full).Msg("skipping unreadable directory")
				continue
			}
			node := model.ModuleNode{
				Name:     name,
				Path:     childPath(parentPath, name),
				Children: s.walkEntries(full, childPath(parentPath, name), children),
			}
			if len(node.Children) > 0 {
				nodes = append(nodes, node)
			}
			continue
		}

		moduleName := strings.TrimSuffix(name, filepath.Ext(name))
		modulePath := childPath(parentPath, moduleName)
		fns, err := s.extractFile(full, modulePath)
		if err != nil {
			log.Warn().Err(err).Str("file", full).Msg("skipping unreadable file")
			continue
		}
		if len(fns) == 0 {
			continue
		}
		nodes = append(nodes, model.ModuleNode{
			Name:      moduleName,
			Path:      modulePath,
			Functions: fns,
			Children:  []model.ModuleNode{},
		})
	}

	return nodes
}

// skip applies the exclusion rules: hidden and underscore-prefixed
// entries, reserved directories, and test files.
func (s *Scanner) skip(entry os.DirEntry) bool {
	name := entry.Name()
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	if entry.IsDir() {
		for _, excluded := range s.opts.ExcludeDirs {
			if name == excluded {
				return true
			}
		}
		return false
	}

	for _, suffix := range s.opts.TestSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return !s.IsSourceFile(name)
}

// IsSourceFile reports whether name has a recognized source extension.
func (s *Scanner) IsSourceFile(name string) bool {
	ext := filepath.Ext(name)
	for _, known := range s.opts.SourceExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// IsExcludedDir reports whether a directory name is excluded from walks
// and from watch relevance.
func (s *Scanner) IsExcludedDir(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	for _, excluded := range s.opts.ExcludeDirs {
		if name == excluded {
			return true
		}
	}
	return false
}

// IsTestFile reports whether a file name matches a test suffix.
func (s *Scanner) IsTestFile(name string) bool {
	for _, suffix := range s.opts.TestSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// extractFile runs the extractor on one file, going through the cache when
// the file's modification time and size are unchanged.
func (s *Scanner) extractFile(path, modulePath string) ([]model.FunctionDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(path); ok {
		if cached.modTime == info.ModTime().UnixNano() && cached.size == info.Size() {
			return cached.fns, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fns := extract.Functions(string(data), modulePath)
	s.cache.Add(path, cacheEntry{
		modTime: info.ModTime().UnixNano(),
		size:    info.Size(),
		fns:     fns,
	})
	return fns, nil
}

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
