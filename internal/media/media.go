// Package media serves sticker assets from the local assets directory.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FSProvider implements bot.MediaProvider over a directory of webp assets.
type FSProvider struct {
	log       *slog.Logger
	assetsDir string
}

// NewFSProvider creates a provider reading stickers from assetsDir.
func NewFSProvider(assetsDir string, log *slog.Logger) *FSProvider {
	return &FSProvider{
		log:       log.With("component", "media"),
		assetsDir: assetsDir,
	}
}

// Sticker returns the named asset ("desonline" loads desonline.webp). Names
// are restricted to simple identifiers so a caller can never traverse out of
// the assets directory.
func (p *FSProvider) Sticker(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "/\\.") {
		return nil, fmt.Errorf("invalid sticker name %q", name)
	}

	path := filepath.Join(p.assetsDir, name+".webp")
	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("Sticker asset not found", "name", name, "path", path)
		return nil, fmt.Errorf("failed to read sticker %s: %w", name, err)
	}
	return data, nil
}

// CanConvertPDF reports whether PDF conversion is available. Rendering
// arbitrary documents needs an external converter this deployment does not
// ship, so the answer is always no for now.
func (p *FSProvider) CanConvertPDF() bool {
	return false
}
