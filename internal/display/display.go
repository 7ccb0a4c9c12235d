// Package display presents a composed map image to the user.
package display

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
)

// DefaultMaxEdge is the longest window edge before the image is scaled down.
const DefaultMaxEdge = 1280

// Display shows an image. Show blocks until the user is done with it or
// ctx is cancelled.
type Display interface {
	Show(ctx context.Context, img image.Image, title string) error
}

// Func adapts a function to Display.
type Func func(ctx context.Context, img image.Image, title string) error

func (f Func) Show(ctx context.Context, img image.Image, title string) error {
	return f(ctx, img, title)
}

// File writes the image as PNG instead of opening a window.
type File struct {
	Path   string
	Logger *slog.Logger
}

// Show writes img to f.Path and returns.
func (f *File) Show(ctx context.Context, img image.Image, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := gg.SavePNG(f.Path, img); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}

	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("wrote image", "path", f.Path, "title", title)
	return nil
}

// FitSize scales w x h down to fit within maxEdge on its longest side,
// keeping the aspect ratio. Sizes that already fit are returned unchanged.
func FitSize(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}
