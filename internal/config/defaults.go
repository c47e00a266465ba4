package config

// FileName is the primary config file name; FileNameAlt is accepted too.
const (
	FileName    = "warepipe.yaml"
	FileNameAlt = "warepipe.yml"
)

// EnvPrefix prefixes environment variable overrides, e.g. WAREPIPE_DATASET.
const EnvPrefix = "WAREPIPE_"

// Default configuration values.
const (
	DefaultTemplatesDir   = "templates"
	DefaultObjectPrefix   = "_warepipe"
	DefaultDownloadDir    = "."
	DefaultHashLength     = 6
	DefaultExpirationDays = 14
	DefaultConcurrency    = 1
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"templates_dir":   DefaultTemplatesDir,
		"object_prefix":   DefaultObjectPrefix,
		"download_dir":    DefaultDownloadDir,
		"hash_length":     DefaultHashLength,
		"expiration_days": DefaultExpirationDays,
		"concurrency":     DefaultConcurrency,
		"verbose":         false,
	}
}
