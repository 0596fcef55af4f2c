/*
	Package settings reads the per-dataset channel rendering settings.

	Settings live in a directory with one file per dataset named <dataset>.json,
	<dataset>.yaml, or <dataset>.yml.  Files are validated against an embedded JSON
	schema and converted into render.ChannelBindings.  An example:

		{
		  "model": "rgb",
		  "channels": [
		    {"channel": 0, "label": "DAPI", "pixelType": "uint16",
		     "window": {"min": 100, "max": 3000}, "color": "#0000FF"},
		    {"channel": 1, "label": "GFP", "pixelType": "uint16", "window": "auto",
		     "auto": {"low": 0.01, "high": 0.99}, "color": [0, 255, 0],
		     "codomain": [{"type": "gamma", "exponent": 2.2}]},
		    {"channel": 2, "pixelType": "uint16", "active": false, "lut": "fire.lut"}
		  ]
		}

	Relative LUT file names are resolved against the settings directory.
*/
package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
)

//go:embed schema.json
var schemaJSON string

// Schema returns the JSON schema that settings files must satisfy.
func Schema() string {
	return schemaJSON
}

var compiledSchema *jsonschema.Schema

func init() {
	compiledSchema = jsonschema.MustCompileString("schema.json", schemaJSON)
}

// Settings is the parsed rendering configuration of a dataset.
type Settings struct {
	Model    render.Model
	Bindings []render.ChannelBinding
}

type fileJSON struct {
	Model    string        `json:"model"`
	Channels []channelJSON `json:"channels"`
}

type channelJSON struct {
	Channel   int             `json:"channel"`
	Label     string          `json:"label"`
	Active    *bool           `json:"active"`
	PixelType dvid.DataType   `json:"pixelType"`
	Window    json.RawMessage `json:"window"`
	Auto      *struct {
		Low  float64 `json:"low"`
		High float64 `json:"high"`
	} `json:"auto"`
	Color    json.RawMessage `json:"color"`
	LUT      string          `json:"lut"`
	Codomain []codomainJSON  `json:"codomain"`
}

type codomainJSON struct {
	Type     string  `json:"type"`
	Exponent float64 `json:"exponent"`
	File     string  `json:"file"`
	Table    []int   `json:"table"`
}

// Parse reads settings in JSON or YAML ("json", "yaml", or "yml") format.  LUT files
// are resolved relative to dir.  Any problem is returned as a *dvid.ConfigError.
func Parse(data []byte, format, dir string) (*Settings, error) {
	switch strings.ToLower(format) {
	case "json":
	case "yaml", "yml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, dvid.NewConfigError("bad YAML settings: %v", err)
		}
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, dvid.NewConfigError("YAML settings can't be expressed as JSON: %v", err)
		}
	default:
		return nil, dvid.NewConfigError("unknown settings format %q", format)
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, dvid.NewConfigError("bad JSON settings: %v", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, dvid.NewConfigError("settings don't match schema: %v", err)
	}
	var f fileJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, dvid.NewConfigError("bad settings: %v", err)
	}

	model, err := render.ParseModel(f.Model)
	if err != nil {
		return nil, dvid.NewConfigError("%v", err)
	}
	s := &Settings{Model: model, Bindings: make([]render.ChannelBinding, len(f.Channels))}
	seen := make(map[int]bool, len(f.Channels))
	for i, c := range f.Channels {
		if seen[c.Channel] {
			return nil, dvid.NewConfigError("channel %d configured more than once", c.Channel)
		}
		seen[c.Channel] = true
		if s.Bindings[i], err = c.binding(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads a settings file, choosing the format from its extension.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	s, err := Parse(data, format, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (c channelJSON) binding(dir string) (render.ChannelBinding, error) {
	b := render.ChannelBinding{
		Channel:   c.Channel,
		Label:     c.Label,
		Active:    c.Active == nil || *c.Active,
		PixelType: c.PixelType,
		Color:     render.White,
	}
	if b.Label == "" {
		b.Label = fmt.Sprintf("channel %d", c.Channel)
	}

	// Window defaults to the full domain of the pixel type.
	b.Window = render.Window{Min: c.PixelType.Min(), Max: c.PixelType.Max()}
	if len(c.Window) != 0 {
		var auto string
		if err := json.Unmarshal(c.Window, &auto); err == nil {
			b.AutoWindow = true
		} else if err := json.Unmarshal(c.Window, &b.Window); err != nil {
			return b, dvid.NewConfigError("channel %d has bad window: %v", c.Channel, err)
		}
	}
	if c.Auto != nil {
		b.AutoWindow = true
		b.AutoLow, b.AutoHigh = c.Auto.Low, c.Auto.High
		if b.AutoHigh == 0 {
			b.AutoHigh = render.DefaultAutoHigh
		}
	}

	if len(c.Color) != 0 {
		var err error
		if b.Color, err = parseColor(c.Color); err != nil {
			return b, dvid.NewConfigError("channel %d: %v", c.Channel, err)
		}
	}
	if c.LUT != "" {
		lut, err := render.LoadColorLUT(resolve(dir, c.LUT))
		if err != nil {
			return b, asConfigError(err, "channel %d color LUT", c.Channel)
		}
		b.LUT = lut
	}

	if len(c.Codomain) != 0 {
		maps := make([]render.CodomainMap, len(c.Codomain))
		for i, cm := range c.Codomain {
			m, err := cm.codomainMap(dir)
			if err != nil {
				return b, asConfigError(err, "channel %d codomain map %d", c.Channel, i)
			}
			maps[i] = m
		}
		chain, err := render.NewChain(maps...)
		if err != nil {
			return b, err
		}
		b.Chain = chain
	}
	return b, b.Validate()
}

func (cm codomainJSON) codomainMap(dir string) (render.CodomainMap, error) {
	switch cm.Type {
	case "reverse":
		return render.ReverseIntensity{}, nil
	case "gamma":
		return render.NewGamma(cm.Exponent)
	case "lut":
		table := make([]uint8, len(cm.Table))
		for i, v := range cm.Table {
			table[i] = uint8(v)
		}
		if cm.File != "" {
			var err error
			if table, err = readIntensityTable(resolve(dir, cm.File)); err != nil {
				return nil, err
			}
		}
		return render.NewLUT(table)
	}
	return nil, dvid.NewConfigError("unknown codomain map type %q", cm.Type)
}

// readIntensityTable reads a 256-byte binary table or whitespace-separated values.
func readIntensityTable(path string) ([]uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 256 {
		return data, nil
	}
	var table []uint8
	for _, field := range strings.Fields(string(data)) {
		var v int
		if _, err := fmt.Sscanf(field, "%d", &v); err != nil || v < 0 || v > 255 {
			return nil, dvid.NewConfigError("bad intensity table value %q in %s", field, path)
		}
		table = append(table, uint8(v))
	}
	return table, nil
}

func parseColor(raw json.RawMessage) (render.RGB, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return render.ParseRGB(s)
	}
	var rgb []int
	if err := json.Unmarshal(raw, &rgb); err != nil || len(rgb) != 3 {
		return render.RGB{}, fmt.Errorf("color %s must be \"#RRGGBB\" or [r, g, b]", raw)
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return render.RGB{}, fmt.Errorf("color %s has component outside [0,255]", raw)
		}
	}
	return render.RGB{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2])}, nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// asConfigError keeps config errors as-is and turns others, e.g., missing files,
// into config errors with context.
func asConfigError(err error, format string, args ...interface{}) error {
	var ce *dvid.ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return dvid.NewConfigError("%s: %v", fmt.Sprintf(format, args...), err)
}

// Default returns bindings for a dataset without a settings file: every channel
// active over the full integer domain of its pixel type, or an automatic window for
// floating point data.  A single channel is gray; otherwise channels cycle through
// red, green, blue, and white.
func Default(dims dvid.Dims, dt dvid.DataType) []render.ChannelBinding {
	colors := []render.RGB{render.Red, render.Green, render.Blue, render.White}
	bindings := make([]render.ChannelBinding, dims.C)
	for c := range bindings {
		b := render.ChannelBinding{
			Channel:   c,
			Label:     fmt.Sprintf("channel %d", c),
			Active:    true,
			PixelType: dt,
			Color:     colors[c%len(colors)],
		}
		if dims.C == 1 {
			b.Color = render.White
		}
		if dt.IsFloat() {
			b.AutoWindow = true
		} else {
			b.Window = render.Window{Min: dt.Min(), Max: dt.Max()}
		}
		bindings[c] = b
	}
	return bindings
}
