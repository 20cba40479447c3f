package chapter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PublicPrefix is the URL path chapter PDFs are served under.
const PublicPrefix = "/data/chapters/"

// PDF is a chapter file available to the reader.
type PDF struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

// Library lists chapter PDFs in a directory.
type Library struct {
	dir string
}

// NewLibrary creates a Library over dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// ListPDFs returns the .pdf files in the library, sorted by name. A missing
// directory yields an empty list.
func (l *Library) ListPDFs() ([]PDF, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []PDF{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chapters directory: %w", err)
	}

	out := []PDF{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		pages, err := pageCount(filepath.Join(l.dir, name))
		if err != nil {
			slog.Warn("unreadable chapter pdf", "file", name, "error", err)
		}
		out = append(out, PDF{Name: name, Path: path.Join(PublicPrefix, name), Pages: pages})
	}
	slices.SortFunc(out, func(a, b PDF) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func pageCount(file string) (n int, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parse %s: %v", filepath.Base(file), r)
		}
	}()

	f, r, err := pdf.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}
