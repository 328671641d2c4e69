// SPDX-License-Identifier: Apache-2.0

// Package documents serves reference text the fallback can ground
// generated content on. Documents are plain files in a single
// directory; "latest" means most recently modified.
package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adiadia/concierge/internal/domain"
)

var allowedExtensions = map[string]bool{".txt": true, ".md": true, ".markdown": true}

type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

// Document is one reference file with its content loaded.
type Document struct {
	Name    string
	Content string
}

// Fetch loads a document by name. The name is matched case-insensitively
// against file basenames, with or without extension. Path traversal in
// the name is rejected.
func (s *Store) Fetch(name string) (Document, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Document{}, fmt.Errorf("%w: %q", domain.ErrDocumentNotFound, name)
	}

	entries, err := s.list()
	if err != nil {
		return Document{}, err
	}

	want := strings.ToLower(name)
	for _, e := range entries {
		base := strings.ToLower(e.Name())
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if base == want || stem == want {
			return s.load(e.Name())
		}
	}
	return Document{}, fmt.Errorf("%w: %q", domain.ErrDocumentNotFound, name)
}

// Latest returns the most recently modified document in the directory.
func (s *Store) Latest() (Document, error) {
	entries, err := s.list()
	if err != nil {
		return Document{}, err
	}
	if len(entries) == 0 {
		return Document{}, fmt.Errorf("%w: directory %s is empty", domain.ErrDocumentNotFound, s.dir)
	}

	sort.Slice(entries, func(i, j int) bool {
		fi, _ := entries[i].Info()
		fj, _ := entries[j].Info()
		if fi == nil || fj == nil {
			return entries[i].Name() < entries[j].Name()
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return s.load(entries[0].Name())
}

// Names lists the available document names, alphabetically.
func (s *Store) Names() ([]string, error) {
	entries, err := s.list()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) list() ([]os.DirEntry, error) {
	all, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %s", domain.ErrDocumentNotFound, s.dir)
		}
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	var files []os.DirEntry
	for _, e := range all {
		if e.IsDir() || !allowedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

func (s *Store) load(name string) (Document, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Document{}, fmt.Errorf("read document %s: %w", name, err)
	}
	return Document{Name: name, Content: string(b)}, nil
}
