package server

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
)

const (
	// DefaultWebAddress is the default URL of the web server
	DefaultWebAddress = "localhost:8000"

	// DefaultCacheMB is the size of the rendered image cache if not configured.
	DefaultCacheMB = 256
)

// Config is the parsed TOML configuration of a server.
type Config struct {
	Server   webConfig
	Render   renderConfig
	Cache    cacheConfig
	Store    storeConfig
	Settings settingsConfig
	Logging  dvid.LogConfig

	location string
}

type webConfig struct {
	HTTPAddress    string   `toml:"httpAddress"`
	Note           string   `toml:"note"`
	AllowedOrigins []string `toml:"allowedOrigins"`
}

type renderConfig struct {
	MaxWorkers    int    `toml:"maxWorkers"`
	DefaultFormat string `toml:"defaultFormat"`
	JPEGQuality   int    `toml:"jpegQuality"`
}

type cacheConfig struct {
	MB            int `toml:"mb"`
	ExpireSeconds int `toml:"expireSeconds"`
}

type storeConfig struct {
	Path        string `toml:"path"`
	Compression string `toml:"compression"`
}

type settingsConfig struct {
	Dir string `toml:"dir"`
}

// DefaultConfig returns the configuration used for any setting not given in a TOML file.
func DefaultConfig() *Config {
	return &Config{
		Server: webConfig{HTTPAddress: DefaultWebAddress},
		Render: renderConfig{DefaultFormat: "png", JPEGQuality: render.DefaultJPEGQuality},
		Cache:  cacheConfig{MB: DefaultCacheMB},
		Store:  storeConfig{Compression: "snappy"},
	}
}

// LoadConfig loads server configuration from a TOML file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.check(); err != nil {
		return nil, fmt.Errorf("bad TOML config %s: %v", filename, err)
	}
	dvid.Infof("Loaded configuration from %s\n", filename)
	return c, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [store].path
	if c.Store.Path != "" {
		c.Store.Path, err = dvid.ConvertToAbsolute(c.Store.Path, configDir)
		if err != nil {
			return fmt.Errorf("error converting store path to absolute path")
		}
	}

	// [settings].dir
	if c.Settings.Dir != "" {
		c.Settings.Dir, err = dvid.ConvertToAbsolute(c.Settings.Dir, configDir)
		if err != nil {
			return fmt.Errorf("error converting settings dir to absolute path")
		}
	}

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = dvid.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}
	return nil
}

func (c *Config) check() error {
	if c.Render.MaxWorkers < 0 {
		return fmt.Errorf("render.maxWorkers must be non-negative, got %d", c.Render.MaxWorkers)
	}
	if c.Cache.MB < 0 {
		return fmt.Errorf("cache.mb must be non-negative, got %d", c.Cache.MB)
	}
	if c.Cache.ExpireSeconds < 0 {
		return fmt.Errorf("cache.expireSeconds must be non-negative, got %d", c.Cache.ExpireSeconds)
	}
	if _, err := c.Format(); err != nil {
		return err
	}
	if _, err := dvid.ParseCompression(c.Store.Compression); err != nil {
		return err
	}
	return nil
}

// Location returns the path of the TOML file the configuration was loaded from.
func (c *Config) Location() string {
	return c.location
}

// Format returns the image format used when a render request gives none.
func (c *Config) Format() (render.Format, error) {
	f, err := render.ParseFormat(c.Render.DefaultFormat)
	if err != nil {
		return f, err
	}
	if f.Name == "jpg" && c.Render.JPEGQuality != 0 {
		if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
			return f, fmt.Errorf("render.jpegQuality must be in [1,100], got %d", c.Render.JPEGQuality)
		}
		f.Quality = c.Render.JPEGQuality
	}
	return f, nil
}

// CacheExpire returns the lifetime of cached images, zero meaning no expiration.
func (c *Config) CacheExpire() time.Duration {
	return time.Duration(c.Cache.ExpireSeconds) * time.Second
}

// Compression returns the compression for stored planes.
func (c *Config) Compression() dvid.Compression {
	compress, _ := dvid.ParseCompression(c.Store.Compression)
	return compress
}
