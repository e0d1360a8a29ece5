package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/baldanca/metadata-export/exporter"
)

// DefaultIgnoreFile is read from the walk root when present.
const DefaultIgnoreFile = ".mmexportignore"

// File is one file found by Walk.
type File struct {
	// Path is the location on disk.
	Path string
	// Rel is slash-separated and starts with the base name of the walk
	// root ("Album/CD1/01.mp3").
	Rel string
}

// Name returns the base file name.
func (f File) Name() string { return path.Base(f.Rel) }

type WalkOptions struct {
	// IgnoreFile names a gitignore-style file inside the root. Empty
	// means DefaultIgnoreFile; a missing file ignores nothing.
	IgnoreFile string
	// Hidden includes dot files and dot directories.
	Hidden bool
	// Extensions, when set, keeps only files with one of these
	// extensions (".mp3"), compared case-insensitively.
	Extensions []string
	Logger     *slog.Logger
}

// Walk lists the files under root in lexical order. A root that is a
// file yields just that file. Unreadable entries are logged and skipped.
func Walk(root string, opts WalkOptions) ([]File, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "source")
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !keepExt(root, opts.Extensions) {
			return nil, nil
		}
		return []File{{Path: root, Rel: filepath.Base(root)}}, nil
	}

	ignoreName := opts.IgnoreFile
	if ignoreName == "" {
		ignoreName = DefaultIgnoreFile
	}
	var ignore gitignore.IgnoreMatcher
	ignorePath := filepath.Join(root, ignoreName)
	if _, err := os.Stat(ignorePath); err == nil {
		m, err := gitignore.NewGitIgnore(ignorePath, root)
		if err != nil {
			logger.Warn("ignore file unreadable", "path", ignorePath, "error", err)
		} else {
			ignore = m
		}
	}

	base := filepath.Base(filepath.Clean(root))
	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable entry", "path", p, "error", err)
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		isDir := d.IsDir()
		if !opts.Hidden && strings.HasPrefix(d.Name(), ".") {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.Match(p, isDir) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if isDir || !d.Type().IsRegular() || !keepExt(p, opts.Extensions) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		files = append(files, File{Path: p, Rel: base + "/" + filepath.ToSlash(rel)})
		return nil
	})
	return files, err
}

func keepExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(p)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Load probes files in order. Files that cannot be parsed are logged and
// left out; only a done ctx stops the run early.
func Load(ctx context.Context, files []File, logger *slog.Logger) ([]exporter.Source, error) {
	if logger == nil {
		logger = slog.Default().With("component", "source")
	}
	out := make([]exporter.Source, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		md, err := ProbeFile(f.Path)
		if err != nil {
			logger.Warn("failed to parse file", "path", f.Rel, "error", err)
			continue
		}
		out = append(out, exporter.Source{Name: f.Name(), Path: f.Rel, Metadata: md})
	}
	return out, nil
}
