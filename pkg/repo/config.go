package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/klauspost/compress/zlib"
	"github.com/odvcencio/gitodb/pkg/object"
)

const configFileName = "config.toml"

// Config stores repository-local settings read from .git/config.toml.
type Config struct {
	User UserConfig `toml:"user"`
	Core CoreConfig `toml:"core"`
}

// UserConfig is the default identity used for commits.
type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// CoreConfig tunes the object store and snapshot builder.
type CoreConfig struct {
	Compression int      `toml:"compression"`
	HeaderCache int      `toml:"header_cache"`
	Ignore      []string `toml:"ignore"`
}

// DefaultConfig returns the settings used when config.toml is absent or
// leaves a key unset.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			Compression: zlib.DefaultCompression,
			HeaderCache: object.DefaultHeaderCacheSize,
			Ignore:      []string{"target/"},
		},
	}
}

// ReadConfig reads gitDir/config.toml over the defaults. A missing file
// yields the defaults. Unknown keys are rejected.
func ReadConfig(gitDir string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(filepath.Join(gitDir, configFileName), cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("read config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Core.Compression < zlib.HuffmanOnly || c.Core.Compression > zlib.BestCompression {
		return fmt.Errorf("core.compression %d out of range [%d, %d]",
			c.Core.Compression, zlib.HuffmanOnly, zlib.BestCompression)
	}
	return nil
}

// WriteConfig atomically writes gitDir/config.toml.
func WriteConfig(gitDir string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tmp, err := os.CreateTemp(gitDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(gitDir, configFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
