// Package config loads watch target declarations from YAML seed files.
// Seeds are synced into the database at startup; targets created through
// the API live only in the database.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crystalsense/crystal/app/database"
)

// Loader handles loading and validation of watch target seed files
type Loader struct {
	targetsDir string
}

// NewLoader creates a new seed file loader
func NewLoader(targetsDir string) *Loader {
	return &Loader{targetsDir: targetsDir}
}

// LoadAll loads all YAML seed files from the targets directory and returns
// the declared targets as unvalidated-by-the-database rows.
func (l *Loader) LoadAll() ([]database.WatchTarget, error) {
	var targets []database.WatchTarget

	// Check if targets directory exists
	if _, err := os.Stat(l.targetsDir); os.IsNotExist(err) {
		return targets, nil // Return empty slice if directory doesn't exist
	}

	files, err := filepath.Glob(filepath.Join(l.targetsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	// Also check for .yml extension
	ymlFiles, err := filepath.Glob(filepath.Join(l.targetsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		fileTargets, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		targets = append(targets, fileTargets...)
		slog.Info("Loaded target seed file", "file", file, "targets", len(fileTargets))
	}

	return targets, nil
}

func (l *Loader) loadFile(path string) ([]database.WatchTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file TargetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	targets := make([]database.WatchTarget, 0, len(file.Targets))
	for i, tc := range file.Targets {
		target := database.WatchTarget{
			Platform:    tc.Platform,
			TargetType:  tc.Type,
			ExternalID:  tc.ExternalID,
			Symbol:      tc.Symbol,
			Keyword:     tc.Keyword,
			DisplayName: tc.DisplayName,
			Enabled:     tc.Enabled == nil || *tc.Enabled,
		}
		if err := ValidateTarget(&target); err != nil {
			return nil, fmt.Errorf("target %d: %w", i+1, err)
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// ValidateTarget checks a watch target's shape: a known platform and type,
// and exactly the identity field matching the type populated. Shared with
// the API handlers so seeded and API-created targets obey the same rules.
func ValidateTarget(target *database.WatchTarget) error {
	validPlatform := false
	for _, p := range database.Platforms {
		if target.Platform == p {
			validPlatform = true
			break
		}
	}
	if !validPlatform {
		return fmt.Errorf("unknown platform %q", target.Platform)
	}

	switch target.TargetType {
	case database.TargetTypeAccount:
		if target.ExternalID == "" {
			return fmt.Errorf("account target requires external_id")
		}
		if target.Symbol != "" || target.Keyword != "" {
			return fmt.Errorf("account target must not set symbol or keyword")
		}
	case database.TargetTypeSymbol:
		if target.Symbol == "" {
			return fmt.Errorf("symbol target requires symbol")
		}
		if target.ExternalID != "" || target.Keyword != "" {
			return fmt.Errorf("symbol target must not set external_id or keyword")
		}
	case database.TargetTypeKeyword:
		if target.Keyword == "" {
			return fmt.Errorf("keyword target requires keyword")
		}
		if target.ExternalID != "" || target.Symbol != "" {
			return fmt.Errorf("keyword target must not set external_id or symbol")
		}
	default:
		return fmt.Errorf("unknown target type %q", target.TargetType)
	}

	if target.DisplayName == "" {
		switch target.TargetType {
		case database.TargetTypeAccount:
			target.DisplayName = target.ExternalID
		case database.TargetTypeSymbol:
			target.DisplayName = target.Symbol
		case database.TargetTypeKeyword:
			target.DisplayName = target.Keyword
		}
	}

	return nil
}
