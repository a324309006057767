// Package zip writes hierarchical archives with reproducible bytes: entries
// keep their given order, folders are emitted before their first file and
// every header carries the same fixed timestamp.
package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Epoch is the modification time written on every entry.
var Epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file of an archive. Path uses forward slashes.
type Entry struct {
	Path string
	Data []byte
}

// Write streams entries into w as a zip archive.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	folders := map[string]bool{}
	files := map[string]bool{}

	for _, entry := range entries {
		name, err := cleanPath(entry.Path)
		if err != nil {
			return err
		}
		if files[name] {
			return fmt.Errorf("zip: duplicate entry %q", name)
		}
		files[name] = true

		for _, dir := range parents(name) {
			if folders[dir] {
				continue
			}
			folders[dir] = true
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: dir + "/", Method: zip.Store, Modified: Epoch}); err != nil {
				return fmt.Errorf("zip: create folder %q: %w", dir, err)
			}
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: Epoch})
		if err != nil {
			return fmt.Errorf("zip: create %q: %w", name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("zip: write %q: %w", name, err)
		}
	}
	return zw.Close()
}

// Archive returns the archive bytes for entries.
func Archive(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", errors.New("zip: empty entry path")
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("zip: invalid entry path %q", p)
	}
	return cleaned, nil
}

// parents lists the directories of name from the outermost inward.
func parents(name string) []string {
	var out []string
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		out = append([]string{dir}, out...)
	}
	return out
}
