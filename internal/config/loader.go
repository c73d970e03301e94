package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "declsql.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "declsql.yml"

// envPrefix maps DECLSQL_SERVER__ADDR onto server.addr and so on; a
// double underscore separates nesting levels so keys like log_level
// stay intact.
const envPrefix = "DECLSQL_"

// Load reads configuration from an explicit path, applies DECLSQL_*
// environment overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"log-level": "log_level",
	"parallel":  "parallel",
	"target":    "target.type",
	"database":  "target.database",
	"schema":    "target.schema",
}

// LoadWithFlags is Load plus command-line overrides. Only flags the user
// actually set are applied, and only those flagKeys knows about.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, known := flagKeys[f.Name]
			if !known || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("flag overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromDir looks for declsql.yaml or declsql.yml in dir and loads it.
// A missing file falls through to environment overrides and defaults,
// which still must validate.
func LoadFromDir(dir string) (*Config, error) {
	return Load(FindConfigFile(dir))
}

// FindConfigFile returns the path of the config file in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the first directory carrying a
// config file. Returns "" when none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if FindConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
