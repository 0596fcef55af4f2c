package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
[server]
httpAddress = "localhost:9000"
note = "lab scope"
allowedOrigins = ["http://viewer.example.org"]

[render]
maxWorkers = 4
defaultFormat = "jpg"
jpegQuality = 95

[cache]
mb = 64
expireSeconds = 600

[store]
path = "data/planes"
compression = "zstd"

[settings]
dir = "settings"

[logging]
logfile = "logs/planerender.log"
max_log_size = 100
max_log_age = 7
`

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filename, []byte(contents), 0644); err != nil {
		t.Fatalf("can't write config: %v\n", err)
	}
	return filename
}

func TestLoadConfig(t *testing.T) {
	filename := writeConfig(t, testConfig)
	dir := filepath.Dir(filename)
	c, err := LoadConfig(filename)
	if err != nil {
		t.Fatalf("can't load config: %v\n", err)
	}
	if c.Server.HTTPAddress != "localhost:9000" || c.Server.Note != "lab scope" {
		t.Errorf("bad server section: %+v\n", c.Server)
	}
	if c.Render.MaxWorkers != 4 {
		t.Errorf("expected 4 workers, got %d\n", c.Render.MaxWorkers)
	}
	f, err := c.Format()
	if err != nil || f.Name != "jpg" || f.Quality != 95 {
		t.Errorf("expected jpg:95 format, got %s (%v)\n", f, err)
	}
	if c.CacheExpire() != 10*time.Minute {
		t.Errorf("bad cache expiration %s\n", c.CacheExpire())
	}
	if c.Compression().String() != "zstd" {
		t.Errorf("expected zstd compression, got %s\n", c.Compression())
	}
	if c.Store.Path != filepath.Join(dir, "data/planes") {
		t.Errorf("store path not made absolute: %s\n", c.Store.Path)
	}
	if c.Settings.Dir != filepath.Join(dir, "settings") {
		t.Errorf("settings dir not made absolute: %s\n", c.Settings.Dir)
	}
	if c.Logging.Logfile != filepath.Join(dir, "logs/planerender.log") || c.Logging.MaxSize != 100 {
		t.Errorf("bad logging section: %+v\n", c.Logging)
	}
	if c.Location() != filename {
		t.Errorf("bad config location %q\n", c.Location())
	}
}

func TestConfigDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "[server]\nnote = \"minimal\"\n"))
	if err != nil {
		t.Fatalf("can't load config: %v\n", err)
	}
	if c.Server.HTTPAddress != DefaultWebAddress || c.Cache.MB != DefaultCacheMB {
		t.Errorf("defaults not applied: %+v\n", c)
	}
	if f, _ := c.Format(); f.Name != "png" {
		t.Errorf("expected png default format, got %s\n", f)
	}
}

func TestBadConfig(t *testing.T) {
	bad := []string{
		"[render]\nmaxWorkers = -1\n",
		"[render]\ndefaultFormat = \"gif\"\n",
		"[render]\ndefaultFormat = \"jpg\"\njpegQuality = 101\n",
		"[cache]\nmb = -5\n",
		"[store]\ncompression = \"lz4\"\n",
		"[server\n",
	}
	for _, contents := range bad {
		if _, err := LoadConfig(writeConfig(t, contents)); err == nil {
			t.Errorf("expected error loading config %q\n", contents)
		}
	}
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("expected error for missing config filename\n")
	}
}
