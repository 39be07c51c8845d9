// Package archive serves local comic archives (.cbz/.cbr/.cb7 and their
// plain .zip/.rar/.7z spellings) through the same page-catalog and
// image-bytes interfaces a remote server provides, so a session can read
// from disk and from a server interchangeably.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"knav/reader"
)

// entry is one image file inside an archive, with probed dimensions.
// Width and Height are zero when the header could not be decoded.
type entry struct {
	name   string
	width  int
	height int
}

// Book is an opened local archive. The entry list is fixed at Open time;
// after that all methods are safe for concurrent use.
type Book struct {
	path    string
	format  string
	entries []entry
	pages   []reader.Page
}

func isSupportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif":
		return true
	default:
		return false
	}
}

func archiveFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz":
		return "zip", nil
	case ".rar", ".cbr":
		return "rar", nil
	case ".7z", ".cb7":
		return "7z", nil
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Ext(path))
	}
}

// Open lists and sorts the image entries of the archive at path. Entries
// are ordered by the given sort method; page dimensions are probed from
// the image headers where the format allows it.
func Open(path string, sortMethod int) (*Book, error) {
	format, err := archiveFormat(path)
	if err != nil {
		return nil, err
	}

	var entries []entry
	switch format {
	case "zip":
		entries, err = listZip(path)
	case "rar":
		entries, err = listRar(path)
	case "7z":
		entries, err = list7z(path)
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	entries = GetSortStrategy(sortMethod).Sort(entries)

	pages := make([]reader.Page, len(entries))
	for i, e := range entries {
		pages[i] = reader.Page{
			Index:    i,
			Number:   i + 1,
			FileName: e.name,
			Width:    e.width,
			Height:   e.height,
		}
	}

	return &Book{path: path, format: format, entries: entries, pages: pages}, nil
}

// ID identifies this book to the reader core. It is the archive path.
func (b *Book) ID() string { return b.path }

// PageCount returns the number of image entries.
func (b *Book) PageCount() int { return len(b.entries) }

// LoadCatalog implements reader.CatalogSource. bookID is ignored; a Book
// serves exactly one archive.
func (b *Book) LoadCatalog(_ context.Context, _ string) ([]reader.Page, error) {
	if len(b.pages) == 0 {
		return nil, fmt.Errorf("%s contains no images: %w", b.path, reader.ErrCatalogUnavailable)
	}
	pages := make([]reader.Page, len(b.pages))
	copy(pages, b.pages)
	return pages, nil
}

// FetchImage implements reader.ImageSource, returning the raw bytes of
// one page's entry.
func (b *Book) FetchImage(_ context.Context, _ string, pageIndex int) ([]byte, error) {
	if pageIndex < 0 || pageIndex >= len(b.entries) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", pageIndex, len(b.entries))
	}
	name := b.entries[pageIndex].name

	switch b.format {
	case "zip":
		return readZipEntry(b.path, name)
	case "rar":
		return readRarEntry(b.path, name)
	case "7z":
		return read7zEntry(b.path, name)
	}
	return nil, fmt.Errorf("unsupported archive format: %s", b.format)
}

// probeDimensions decodes just the image header. Failure is tolerated;
// pages without dimensions fall back to ratio-based placeholders.
func probeDimensions(r io.Reader) (int, int) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func listZip(archivePath string) ([]entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isSupportedExt(f.Name) {
			continue
		}
		e := entry{name: f.Name}
		if rc, err := f.Open(); err == nil {
			e.width, e.height = probeDimensions(rc)
			rc.Close()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func listRar(archivePath string) ([]entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	// Rar archives only read sequentially, so dimensions are probed in
	// the same pass as the listing.
	var entries []entry
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.IsDir || !isSupportedExt(header.Name) {
			continue
		}
		e := entry{name: header.Name}
		e.width, e.height = probeDimensions(r)
		entries = append(entries, e)
	}
	return entries, nil
}

func list7z(archivePath string) ([]entry, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isSupportedExt(f.Name) {
			continue
		}
		e := entry{name: f.Name}
		if rc, err := f.Open(); err == nil {
			e.width, e.height = probeDimensions(rc)
			rc.Close()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readZipEntry(archivePath, entryPath string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryPath {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found in %s", entryPath, archivePath)
}

func readRarEntry(archivePath, entryPath string) ([]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Name == entryPath {
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("entry %s not found in %s", entryPath, archivePath)
}

func read7zEntry(archivePath, entryPath string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryPath {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found in %s", entryPath, archivePath)
}
