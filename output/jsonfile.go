package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"orderscout/harvest"
)

// JSONFile writes the orders to a file, replacing what was there.
type JSONFile struct {
	Path string
}

// Emit encodes the orders and replaces the file at Path, creating its
// directory when needed. A leading ~ is expanded.
func (f JSONFile) Emit(ctx context.Context, orders []harvest.Order) error {
	path, err := homedir.Expand(f.Path)
	if err != nil {
		return fmt.Errorf("expanding output path: %w", err)
	}
	data, err := Marshal(orders)
	if err != nil {
		return fmt.Errorf("encoding orders: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	// Write next to the target, then rename over it.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
