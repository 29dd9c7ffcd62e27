// Package static embeds static files into the binary and copies them to the
// filesystem
package static

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/ayoisaiah/respawn/internal/osutil"
)

const (
	filesDir = "files"
	iconFile = "icon.png"
)

//go:embed files/*
var embeddedFiles embed.FS

// Install copies the embedded files into <data dir>/<appDir>/static. Files
// that already exist are left alone so users can replace them.
func Install(appDir string) error {
	return fs.WalkDir(
		embeddedFiles,
		filesDir,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(filesDir, filepath.FromSlash(p))
			if err != nil {
				return err
			}

			destPath, err := xdg.DataFile(filepath.Join(appDir, "static", rel))
			if err != nil {
				return err
			}

			if _, err := os.Stat(destPath); !errors.Is(err, os.ErrNotExist) {
				return err
			}

			b, err := embeddedFiles.ReadFile(p)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(destPath), osutil.DirPermission); err != nil {
				return err
			}

			return os.WriteFile(destPath, b, osutil.FilePermission)
		},
	)
}

// IconPath returns the installed notification icon, or an empty string if it
// cannot be found.
func IconPath(appDir string) string {
	p, err := xdg.SearchDataFile(filepath.Join(appDir, "static", iconFile))
	if err != nil {
		return ""
	}

	return p
}

// Icon returns the embedded notification icon.
func Icon() ([]byte, error) {
	return embeddedFiles.ReadFile(path.Join(filesDir, iconFile))
}
