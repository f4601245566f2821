package ui

import (
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/loganfrederick/gbcore/internal/emu"
	"github.com/loganfrederick/gbcore/internal/joypad"
)

// App is an ebiten.Game that drives a Machine one frame per Update (four
// while Tab is held) and blits its RGBA framebuffer to the window.
type App struct {
	cfg    Config
	m      *emu.Machine
	tex    *ebiten.Image
	paused bool
	fast   bool
}

// NewApp creates an App for m using cfg (Scale/Title defaulted if unset).
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	return &App{
		cfg: cfg,
		m:   m,
		tex: ebiten.NewImage(160, 144),
	}
}

// Run opens the window and blocks until it's closed.
func (a *App) Run() error {
	ebiten.SetWindowSize(160*a.cfg.Scale, 144*a.cfg.Scale)
	ebiten.SetWindowTitle(a.cfg.Title)
	slog.Info("starting window", "title", a.cfg.Title, "scale", a.cfg.Scale, "rom", a.m.ROMPath())
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
		slog.Debug("pause toggled", "paused", a.paused)
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	a.m.SetButtons(readButtons())

	if !a.paused {
		steps := 1
		if a.fast {
			steps = 4
		}
		for i := 0; i < steps; i++ {
			a.m.StepFrame()
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	a.tex.WritePixels(a.m.Framebuffer())
	op := &ebiten.DrawImageOptions{}
	scale := float64(a.cfg.Scale)
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(a.tex, op)
	if a.paused {
		ebitenutil.DebugPrint(screen, "paused")
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160 * a.cfg.Scale, 144 * a.cfg.Scale
}

// readButtons polls the keyboard for the standard DMG layout: arrow
// keys for the D-pad, Z/X for B/A, and Enter/Backspace for Start/Select.
func readButtons() joypad.Buttons {
	return joypad.Buttons{
		Up:     ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		Left:   ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		Right:  ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		A:      ebiten.IsKeyPressed(ebiten.KeyX),
		B:      ebiten.IsKeyPressed(ebiten.KeyZ),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyBackspace),
	}
}
