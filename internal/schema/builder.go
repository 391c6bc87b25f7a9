// Package schema assembles walker output and table definitions into
// immutable schema snapshots.
package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"

	"github.com/funcdeck-hq/funcdeck/internal/extract"
	"github.com/funcdeck-hq/funcdeck/internal/scanner"
	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// Builder produces snapshots from a function root. It is the only writer
// of snapshot contents; once Build returns, the snapshot is immutable.
type Builder struct {
	root       string
	schemaFile string
	scanner    *scanner.Scanner
}

// NewBuilder creates a Builder for the given function root. schemaFile is
// the table-definition file name relative to root.
func NewBuilder(root, schemaFile string, s *scanner.Scanner) *Builder {
	return &Builder{root: root, schemaFile: schemaFile, scanner: s}
}

// Root returns the function root directory being scanned.
func (b *Builder) Root() string {
	return b.root
}

// Build runs a full scan and returns a fresh snapshot. It fails only when
// the function root itself is unreadable; every per-file problem is logged
// and that unit contributes nothing.
func (b *Builder) Build(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	modules, err := b.scanner.Walk(b.root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan functions: %w", err)
	}

	snap := &model.Snapshot{
		Modules:     modules,
		Tables:      b.tables(),
		LastUpdated: time.Now().UTC(),
		CommitSHA:   headCommit(b.root),
	}

	log.Debug().
		Int("functions", snap.FunctionCount()).
		Int("tables", len(snap.Tables)).
		Dur("elapsed", time.Since(started)).
		Msg("schema snapshot built")

	return snap, nil
}

// tables extracts table definitions from the schema file. A missing or
// unreadable schema file means no tables, never an error.
func (b *Builder) tables() []model.TableDescriptor {
	path := filepath.Join(b.root, b.schemaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("failed to read schema file")
		}
		return []model.TableDescriptor{}
	}
	return extract.Tables(string(data))
}

// headCommit resolves the HEAD commit of the repository enclosing root.
// Projects outside a git repository get an empty stamp.
func headCommit(root string) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
