package jobtypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// DefaultPattern matches YAML and JSON definition files at any depth.
const DefaultPattern = "**/*.{yaml,yml,json}"

// LoadDir reads every definition file under dir matching pattern, in sorted
// path order. A file holds one definition or a list of them.
func LoadDir(dir, pattern string) ([]models.JobTypeDef, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid job type pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob job types in %s: %w", dir, err)
	}
	sort.Strings(matches)

	var defs []models.JobTypeDef
	for _, rel := range matches {
		fileDefs, err := LoadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

// LoadFile reads the definitions in one YAML or JSON file.
func LoadFile(path string) ([]models.JobTypeDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job types: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = world.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	defs, err := decodeDefs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func decodeDefs(data []byte) ([]models.JobTypeDef, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var defs []models.JobTypeDef
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("decode job types: %w", err)
		}
		return defs, nil
	}
	var def models.JobTypeDef
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return nil, fmt.Errorf("decode job type: %w", err)
	}
	return []models.JobTypeDef{def}, nil
}

// LoadDir loads definitions from dir and replaces the registry contents.
// It returns the number of definitions loaded.
func (r *Registry) LoadDir(dir, pattern string) (int, error) {
	defs, err := LoadDir(dir, pattern)
	if err != nil {
		return 0, err
	}
	if err := r.Replace(defs); err != nil {
		return 0, err
	}
	return len(defs), nil
}
