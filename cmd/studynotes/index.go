package main

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/studynotes/ai/core/retrieval"
)

const (
	indexBatchSize   = 16
	indexConcurrency = 4
)

// noteExtensions are the file types picked up by the index command.
var noteExtensions = map[string]bool{"md": true, "markdown": true, "txt": true}

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index the notes under a directory; each top-level folder is a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		docs, err := collectNotes(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.backend == nil {
			return errors.New("embedding service is not configured")
		}

		var indexed atomic.Int64
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(indexConcurrency)
		for start := 0; start < len(docs); start += indexBatchSize {
			batch := docs[start:min(start+indexBatchSize, len(docs))]
			g.Go(func() error {
				n, err := a.backend.Index(ctx, batch)
				indexed.Add(int64(n))
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Wrap(err, "failed to index notes")
		}

		total, err := a.backend.Count(ctx)
		if err != nil {
			return err
		}
		slog.Info("Indexed notes", "documents", len(docs), "chunks", indexed.Load(), "total_chunks", total)
		return nil
	},
}

// collectNotes walks root for note files, skipping hidden entries.
func collectNotes(root string) ([]retrieval.NoteDocument, error) {
	var docs []retrieval.NoteDocument
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !noteExtensions[retrieval.FileTypeOf(path)] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		notebook := filepath.Base(filepath.Clean(root))
		if head, rest, ok := strings.Cut(rel, "/"); ok {
			notebook, rel = head, rest
		}
		docs = append(docs, retrieval.NoteDocument{
			ID:       notebook + "/" + rel,
			Notebook: notebook,
			Path:     rel,
			Content:  string(content),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	return docs, nil
}
