// Package config loads the engine configuration: YAML file first, then
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
	"gopkg.in/yaml.v3"
)

const DefaultSAPSystem = "05 - Africa - Angola - FR3 - Unisup Ecc6 Production"

type Config struct {
	OutputDir string       `yaml:"output_dir"`
	SAP       SAPConfig    `yaml:"sap"`
	Ledger    LedgerConfig `yaml:"ledger"`
	Site      string       `yaml:"site"`

	Schema     inspection.Schema          `yaml:"schema"`
	Codes      inspection.Codes           `yaml:"codes"`
	Categories []string                   `yaml:"categories"`
	Sites      map[string]inspection.Site `yaml:"sites"`

	Storage StorageConfig `yaml:"storage"`
	Extract ExtractConfig `yaml:"extract"`
	Server  ServerConfig  `yaml:"server"`
}

type SAPConfig struct {
	System  string `yaml:"system"`
	Variant string `yaml:"variant"`
}

// LedgerConfig locates the data region of the ledger workbook.
type LedgerConfig struct {
	Sheet     string `yaml:"sheet"`
	HeaderRow int    `yaml:"header_row"`
}

// StorageConfig selects the run history backend. DatabaseURL wins over SQLitePath.
type StorageConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
}

type ExtractConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Schedule re-runs the pipeline on LedgerPath every interval. Zero disables it.
	Schedule   time.Duration `yaml:"schedule"`
	LedgerPath string        `yaml:"ledger_path"`
	FeedPath   string        `yaml:"feed_path"`
}

// Default returns the configuration of the reference deployment.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		OutputDir: filepath.Join(cwd, "output"),
		SAP: SAPConfig{
			System:  DefaultSAPSystem,
			Variant: "CLV-PG" + strconv.Itoa(time.Now().Year()),
		},
		Ledger:     LedgerConfig{Sheet: "Data Base", HeaderRow: 5},
		Schema:     inspection.DefaultSchema(),
		Codes:      inspection.DefaultCodes(),
		Categories: inspection.DefaultCategories(),
		Sites:      inspection.DefaultSites(),
		Storage:    StorageConfig{SQLitePath: "kpi.db"},
		Extract:    ExtractConfig{Timeout: 10 * time.Minute},
		Server:     ServerConfig{Addr: ":8080"},
	}
}

// Load reads path (optional; a missing file yields defaults) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("SAP_SYSTEM"); v != "" {
		c.SAP.System = v
	}
	if v := os.Getenv("SAP_VARIANT"); v != "" {
		c.SAP.Variant = v
	}
	if v := os.Getenv("KPI_DB_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("KPI_DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("KPI_EXTRACT_COMMAND"); v != "" {
		c.Extract.Command = v
	}
	if v := os.Getenv("KPI_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if c.Ledger.HeaderRow < 1 {
		return fmt.Errorf("ledger.header_row must be >= 1, got %d", c.Ledger.HeaderRow)
	}
	if c.Ledger.Sheet == "" {
		return fmt.Errorf("ledger.sheet must be set")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("categories must not be empty")
	}
	if len(c.Schema.OrderKey) == 0 {
		return fmt.Errorf("schema.order_key must list at least one alias")
	}
	if c.Site != "" {
		if _, ok := c.Sites[c.Site]; !ok {
			return fmt.Errorf("unknown site %q", c.Site)
		}
	}
	return nil
}

// LedgerRegion returns the ledger's data region.
func (c *Config) LedgerRegion() sheet.Region {
	return sheet.Region{Sheet: c.Ledger.Sheet, HeaderRow: c.Ledger.HeaderRow}
}

// MaxRows returns the row limit of a site, 0 for unknown or empty sites.
func (c *Config) MaxRows(site string) int {
	return c.Sites[site].MaxRows
}
