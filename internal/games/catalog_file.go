package games

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

func LoadCatalogFile(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Catalog{}, fmt.Errorf("catalog path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	var catalog Catalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog file: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("validate catalog file: %w", err)
	}
	return catalog, nil
}

// WriteCatalogFile writes catalog through a temp file and rename.
func WriteCatalogFile(path string, catalog Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
