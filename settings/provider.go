package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
)

// ErrNoSettings is returned when a dataset has no settings file.
var ErrNoSettings = errors.New("no settings file")

var extensions = []string{".json", ".yaml", ".yml"}

type loaded struct {
	path     string
	modTime  time.Time
	settings *Settings
}

// Provider serves the settings files in a directory.  A file is parsed on first use
// and reparsed when its modification time changes.
type Provider struct {
	dir string

	mu    sync.Mutex
	cache map[string]loaded
}

// NewProvider returns a provider for the settings files in dir.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir, cache: make(map[string]loaded)}
}

// Dir returns the settings directory.
func (p *Provider) Dir() string {
	return p.dir
}

// find returns the settings file of a dataset.
func (p *Provider) find(dataset string) (string, os.FileInfo, error) {
	if dataset == "" || strings.ContainsAny(dataset, `/\`) || strings.HasPrefix(dataset, ".") {
		return "", nil, dvid.NewConfigError("bad dataset name %q", dataset)
	}
	for _, ext := range extensions {
		path := filepath.Join(p.dir, dataset+ext)
		fi, err := os.Stat(path)
		if err == nil {
			return path, fi, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("%w for dataset %q in %s", ErrNoSettings, dataset, p.dir)
}

// Settings returns the parsed settings of a dataset or an error wrapping ErrNoSettings.
func (p *Provider) Settings(dataset string) (*Settings, error) {
	if p.dir == "" {
		return nil, fmt.Errorf("%w for dataset %q: no settings directory", ErrNoSettings, dataset)
	}
	path, fi, err := p.find(dataset)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, found := p.cache[dataset]; found && l.path == path && l.modTime.Equal(fi.ModTime()) {
		return l.settings, nil
	}
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	p.cache[dataset] = loaded{path: path, modTime: fi.ModTime(), settings: s}
	dvid.Infof("Loaded %d channel settings for dataset %q from %s\n", len(s.Bindings), dataset, path)
	return s, nil
}

// Bindings returns a copy of the channel bindings of a dataset.
func (p *Provider) Bindings(dataset string) ([]render.ChannelBinding, error) {
	s, err := p.Settings(dataset)
	if err != nil {
		return nil, err
	}
	bindings := make([]render.ChannelBinding, len(s.Bindings))
	copy(bindings, s.Bindings)
	return bindings, nil
}

// Model returns the rendering model of a dataset.
func (p *Provider) Model(dataset string) (render.Model, error) {
	s, err := p.Settings(dataset)
	if err != nil {
		return render.ModelRGB, err
	}
	return s.Model, nil
}
