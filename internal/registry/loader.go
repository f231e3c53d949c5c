// Package registry discovers local GGUF model files for the local providers.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"answerd/internal/common/fsutil"
	"answerd/pkg/types"
)

var quantRe = regexp.MustCompile(`(?i)[-_.](i?q\d(?:_[a-z0-9]+)*|f16|f32|bf16)$`)

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename; Path is the absolute file path. Quant and family
// are parsed from the name when recognisable.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Name: name, Path: filepath.Join(abs, name)}
		m.Family, m.Quant = parseName(name)
		if info, err := e.Info(); err == nil {
			m.SizeMB = int(info.Size() / (1024 * 1024))
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// parseName splits "qwen2.5-7b-instruct-q4_k_m.gguf" into family "qwen2.5"
// and quant "Q4_K_M".
func parseName(name string) (family, quant string) {
	stem := name[:len(name)-len(filepath.Ext(name))]
	if loc := quantRe.FindStringSubmatchIndex(stem); loc != nil {
		quant = strings.ToUpper(stem[loc[2]:loc[3]])
		stem = stem[:loc[0]]
	}
	family = stem
	if i := strings.IndexAny(stem, "-_"); i > 0 {
		family = stem[:i]
	}
	return strings.ToLower(family), quant
}

// Resolve picks a model: the one whose ID (or ID without extension) equals id,
// or the first model when id is empty.
func Resolve(models []types.Model, id string) (types.Model, error) {
	if len(models) == 0 {
		return types.Model{}, fmt.Errorf("no models found")
	}
	if id == "" {
		return models[0], nil
	}
	for _, m := range models {
		if m.ID == id || strings.TrimSuffix(m.ID, filepath.Ext(m.ID)) == id {
			return m, nil
		}
	}
	return types.Model{}, fmt.Errorf("model %q not found", id)
}
