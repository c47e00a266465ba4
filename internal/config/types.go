// Package config loads pipeline configuration from warepipe.yaml,
// environment variables and CLI flags, in increasing precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the fully merged runtime configuration.
type Config struct {
	// TemplatesDir holds the .sql template files, one per output table.
	TemplatesDir string `koanf:"templates_dir"`

	// Warehouse coordinates.
	Project string `koanf:"project"`
	Dataset string `koanf:"dataset"`
	// Bucket receives extracts. Empty disables the extract and download
	// stages.
	Bucket string `koanf:"bucket"`
	// ObjectPrefix namespaces extract objects within the bucket.
	ObjectPrefix string `koanf:"object_prefix"`

	// DownloadDir receives downloaded extract files.
	DownloadDir string `koanf:"download_dir"`

	// Params are template parameter values by name.
	Params map[string]string `koanf:"params"`

	// HashLength is the artifact name digest length.
	HashLength int `koanf:"hash_length"`
	// ExpirationDays is the TTL applied to created tables.
	ExpirationDays int `koanf:"expiration_days"`
	// Concurrency bounds parallel execution of independent templates.
	Concurrency int `koanf:"concurrency"`

	Verbose bool `koanf:"verbose"`
}

// Expiration returns the table TTL as a duration.
func (c *Config) Expiration() time.Duration {
	return time.Duration(c.ExpirationDays) * 24 * time.Hour
}

// ValidateWarehouse checks the fields required to actually run jobs.
// Pure planning commands work without them.
func (c *Config) ValidateWarehouse() error {
	if c.Project == "" {
		return fmt.Errorf("project is required (set it in %s, %sPROJECT or --project)", FileName, EnvPrefix)
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required (set it in %s, %sDATASET or --dataset)", FileName, EnvPrefix)
	}
	return nil
}
