// Package filestore keeps the catalog and table snapshot files that floor
// terminals save and the seed command loads. Each save replaces the whole file.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
)

// Snapshot names.
const (
	Categories = "categories"
	Products   = "products"
	Tables     = "tables"
)

var (
	ErrUnknownSnapshot = errors.New("unknown snapshot name")
	ErrNotFound        = errors.New("snapshot not found")
)

type CategoryRecord struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

type ProductRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID *string         `json:"categoryId"`
	IsWeighted bool            `json:"isWeighted"`
	// Variants is optional; products without it have no variants.
	Variants []VariantRecord `json:"variants,omitempty"`
}

type VariantRecord struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type TableRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Store reads and writes <dir>/<name>.json.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) (string, error) {
	switch name {
	case Categories, Products, Tables:
		return filepath.Join(s.dir, name+".json"), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSnapshot, name)
}

// Replace writes v as the new content of the named snapshot. The file is
// written to a temporary name in the same directory and renamed over the old
// one, so readers see either the old or the new snapshot.
func (s *Store) Replace(name string, v any) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// Load decodes the named snapshot into v. A missing file returns ErrNotFound.
func (s *Store) Load(name string, v any) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
