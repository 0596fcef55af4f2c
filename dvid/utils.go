package dvid

import (
	"fmt"
	"path/filepath"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// ConvertToAbsolute returns an absolute path for p, treating relative paths as
// relative to dir.
func ConvertToAbsolute(p, dir string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	abs, err := filepath.Abs(filepath.Join(dir, p))
	if err != nil {
		return "", fmt.Errorf("can't make %q absolute relative to %q: %v", p, dir, err)
	}
	return abs, nil
}
