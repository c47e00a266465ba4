package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the tree findConfigFile looks.
const maxUpwardSearchLevels = 10

// Load merges configuration from defaults, the config file, WAREPIPE_*
// environment variables and explicitly set flags, in that order of
// precedence (flags win). cfgFile may be empty, in which case warepipe.yaml
// is searched upward from the working directory; a missing config file is
// not an error.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	if cfgFile != "" && path == "" {
		return nil, fmt.Errorf("config file %q not found", cfgFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// WAREPIPE_DOWNLOAD_DIR -> download_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// --param is repeatable key=value, merged separately below.
			if f.Name == "param" || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if flags != nil {
		if err := mergeParamFlags(&cfg, flags); err != nil {
			return nil, err
		}
	}

	// Paths from the config file are relative to its directory.
	if path != "" {
		base := filepath.Dir(path)
		cfg.TemplatesDir = resolveRelativeTo(cfg.TemplatesDir, base)
		cfg.DownloadDir = resolveRelativeTo(cfg.DownloadDir, base)
	}

	return &cfg, nil
}

// mergeParamFlags overlays repeatable --param key=value flags on top of the
// params map from the config file.
func mergeParamFlags(cfg *Config, flags *pflag.FlagSet) error {
	if !flags.Changed("param") {
		return nil
	}
	pairs, err := flags.GetStringArray("param")
	if err != nil {
		return nil // command has no --param flag
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string, len(pairs))
	}
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		cfg.Params[key] = val
	}
	return nil
}

// findConfigFile picks the config file: the explicit path if given,
// otherwise warepipe.yaml or warepipe.yml searched upward from the working
// directory. Returns "" when nothing is found.
func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{FileName, FileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func resolveRelativeTo(path, base string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
