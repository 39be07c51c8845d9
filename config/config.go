// Package config loads and saves the reader configuration from a JSON
// file in the user's home directory. Missing files yield defaults;
// malformed files and out-of-range values are repaired rather than fatal.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"knav/archive"
	"knav/reader"
)

const (
	defaultCacheSize    = 32
	maxCacheSize        = 256
	defaultPreloadCount = 3
	maxPreloadCount     = 16
	defaultPageWidth    = 1080
	minPageWidth        = 320
	defaultRatio        = 1.5
)

type Config struct {
	ServerURL        string  `json:"server_url"`
	APIKey           string  `json:"api_key"`
	Username         string  `json:"username"`
	Password         string  `json:"password"`
	ReadingDirection string  `json:"reading_direction"`
	DualPage         bool    `json:"dual_page"`
	NoCover          bool    `json:"no_cover"`
	Incognito        bool    `json:"incognito"`
	SortMethod       int     `json:"sort_method"`
	CacheSize        int     `json:"cache_size"`
	PreloadEnabled   bool    `json:"preload_enabled"`
	PreloadCount     int     `json:"preload_count"`
	PageWidth        int     `json:"page_width"`
	PlaceholderRatio float64 `json:"placeholder_ratio"`
}

// LoadResult contains the result of loading configuration
type LoadResult struct {
	Config   Config
	HasError bool
	Warnings []string
	Status   string // "OK", "Default", "Warning", "Error"
}

func getConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "knav.json"
	}
	return filepath.Join(homeDir, ".knav.json")
}

func defaults() Config {
	return Config{
		ReadingDirection: "ltr",
		DualPage:         false,
		NoCover:          false,
		SortMethod:       archive.SortNatural,
		CacheSize:        defaultCacheSize,
		PreloadEnabled:   true,
		PreloadCount:     defaultPreloadCount,
		PageWidth:        defaultPageWidth,
		PlaceholderRatio: defaultRatio,
	}
}

// Direction resolves the configured reading direction, falling back to
// left-to-right for unknown values.
func (c Config) Direction() reader.Direction {
	if d, ok := reader.ParseDirection(c.ReadingDirection); ok {
		return d
	}
	return reader.DirectionLTR
}

func Load() LoadResult {
	return LoadFromPath(getConfigPath())
}

func LoadFromPath(configPath string) LoadResult {
	config := defaults()

	result := LoadResult{
		Config:   config,
		HasError: false,
		Warnings: []string{},
		Status:   "OK",
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		// Config file not found is not an error - use defaults
		result.Status = "Default"
		return result
	}

	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("Warning: Invalid config file %s, using defaults: %v", configPath, err)
		result.HasError = true
		result.Status = "Error"
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
		return result
	}

	if _, ok := reader.ParseDirection(config.ReadingDirection); !ok {
		result.Status = "Warning"
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Unknown reading direction %q, using ltr", config.ReadingDirection))
		config.ReadingDirection = "ltr"
	}

	if config.SortMethod < archive.SortNatural || config.SortMethod > archive.SortEntryOrder {
		config.SortMethod = archive.SortNatural
	}

	if config.CacheSize < 1 {
		config.CacheSize = defaultCacheSize
	} else if config.CacheSize > maxCacheSize {
		config.CacheSize = maxCacheSize
	}

	if config.PreloadCount < 1 {
		config.PreloadCount = defaultPreloadCount
	} else if config.PreloadCount > maxPreloadCount {
		config.PreloadCount = maxPreloadCount
	}

	if config.PageWidth < minPageWidth {
		config.PageWidth = defaultPageWidth
	}

	if config.PlaceholderRatio <= 0 {
		config.PlaceholderRatio = defaultRatio
	}

	result.Config = config
	return result
}

func Save(config Config) {
	SaveToPath(config, getConfigPath())
}

func SaveToPath(config Config, configPath string) {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		log.Printf("Error: Failed to marshal config: %v", err)
		return
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		log.Printf("Error: Failed to save config to %s: %v", configPath, err)
	}
}
