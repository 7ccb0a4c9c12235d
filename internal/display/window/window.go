// Package window shows an image in a desktop window.
package window

import (
	"context"
	"fmt"
	"image"

	"github.com/carlaviz/startpositions/internal/display"
	"github.com/hajimehoshi/ebiten/v2"
)

// Window opens a resizable window and blocks until it is closed, Escape is
// pressed or the context is cancelled.
type Window struct {
	MaxEdge int
}

// New returns a window capped at display.DefaultMaxEdge.
func New() *Window {
	return &Window{MaxEdge: display.DefaultMaxEdge}
}

// Show runs the window on the calling goroutine.
func (w *Window) Show(ctx context.Context, img image.Image, title string) error {
	b := img.Bounds()
	ww, wh := display.FitSize(b.Dx(), b.Dy(), w.MaxEdge)

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(ww, wh)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(newViewer(ctx, img)); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return ctx.Err()
}

type viewer struct {
	ctx    context.Context
	src    image.Image
	img    *ebiten.Image
	width  int
	height int
}

func newViewer(ctx context.Context, img image.Image) *viewer {
	b := img.Bounds()
	return &viewer{ctx: ctx, src: img, width: b.Dx(), height: b.Dy()}
}

func (v *viewer) Update() error {
	if v.ctx.Err() != nil || ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

func (v *viewer) Draw(screen *ebiten.Image) {
	// the GPU image can only be created once the loop is running
	if v.img == nil {
		v.img = ebiten.NewImageFromImage(v.src)
	}
	screen.DrawImage(v.img, nil)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.width, v.height
}
