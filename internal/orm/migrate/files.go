package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// FileNames returns the up and down file names of a migration
func FileNames(m *Migration) (up, down string) {
	base := fmt.Sprintf("%d_%s", m.Version, m.Name)
	return base + upSuffix, base + downSuffix
}

// WriteFiles writes <version>_<name>.up.sql and .down.sql into dir and returns their paths
func WriteFiles(dir string, m *Migration) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	upName, downName := FileNames(m)
	paths := []string{filepath.Join(dir, upName), filepath.Join(dir, downName)}
	contents := []string{m.Up, m.Down}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("migration file %s already exists", path)
		}
	}
	for i, path := range paths {
		if err := os.WriteFile(path, []byte(contents[i]), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return paths, nil
}

// LoadDir reads the migrations in dir ordered by version. A missing directory holds no
// migrations. Every migration needs an up file; the down file is optional.
func LoadDir(dir string) ([]*Migration, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	hasUp := make(map[int64]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()

		var suffix string
		switch {
		case strings.HasSuffix(fileName, upSuffix):
			suffix = upSuffix
		case strings.HasSuffix(fileName, downSuffix):
			suffix = downSuffix
		default:
			continue
		}

		version, name, err := parseFileName(strings.TrimSuffix(fileName, suffix))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}

		data, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("version %d is used by %s and %s", version, m.Name, name)
		}

		if suffix == upSuffix {
			m.Up = string(data)
			m.Breaking = strings.Contains(m.Up, breakingMarker)
			m.DataLoss = strings.Contains(m.Up, dataLossMarker)
			hasUp[version] = true
		} else {
			m.Down = string(data)
		}
	}

	migrations := make([]*Migration, 0, len(byVersion))
	for version, m := range byVersion {
		if !hasUp[version] {
			return nil, fmt.Errorf("migration %d_%s has no up file", version, m.Name)
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseFileName(base string) (int64, string, error) {
	versionPart, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("expected <version>_<name>")
	}
	version, err := strconv.ParseInt(versionPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid version %q", versionPart)
	}
	return version, name, nil
}
