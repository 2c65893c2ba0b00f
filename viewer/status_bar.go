package viewer

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/session"
)

// statusRows is the height of the header above the canvas
const statusRows = 6

var (
	styleTitle    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleValue    = tcell.StyleDefault.Foreground(tcell.ColorLightCyan)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorLightGreen)
	styleError    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(198, 40, 40)).Background(tcell.NewRGBColor(255, 235, 238))
	styleTelem    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleKey      = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleDisabled = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
)

func (a *App) drawStatus(v session.View) {
	for y := 0; y < statusRows && y < a.height; y++ {
		a.clearRow(y)
	}

	title := "Motion & Gyro Particles"
	if a.opts.Source != "" {
		title += "  [" + a.opts.Source + "]"
	}
	a.drawText(0, 0, title+"  "+stateLabel(v), styleTitle)
	a.drawText(0, 1, formatAcceleration(v), styleValue)
	a.drawText(0, 2, formatRotation(v), styleValue)

	msgStyle := styleStatus
	if v.IsError {
		msgStyle = styleError
	}
	a.drawText(0, 3, v.Message, msgStyle)
	a.drawText(0, 4, a.reg.Summary(), styleTelem)
	a.drawKeys(0, 5, v)
}

func stateLabel(v session.View) string {
	if v.Requesting {
		return "(" + sensor.StateRequestingPermission.String() + ")"
	}
	return "(" + v.State.String() + ")"
}

// formatAcceleration shows zeros until the first motion reading arrives
func formatAcceleration(v session.View) string {
	m := v.Motion
	if !v.HasMotion {
		m = sensor.AccelerationReading{}
	}
	return fmt.Sprintf("Acceleration  X: %7.2f  Y: %7.2f  Z: %7.2f m/s²", m.X, m.Y, m.Z)
}

func formatRotation(v session.View) string {
	o := v.Orientation
	if !v.HasOrient {
		o = sensor.OrientationReading{}
	}
	return fmt.Sprintf("Rotation      α: %6.1f°  β: %6.1f°  γ: %6.1f°", o.Alpha, o.Beta, o.Gamma)
}

// drawKeys greys out whichever of start and stop is unavailable
func (a *App) drawKeys(x, y int, v session.View) {
	canStart := !v.Requesting && v.State != sensor.StateStreaming
	canStop := v.State == sensor.StateStreaming

	keys := []struct {
		label   string
		enabled bool
	}{
		{"[s] start", canStart},
		{"[x] stop", canStop},
		{"[m] mute", a.sound.Enabled()},
		{"[q] quit", true},
	}
	for _, k := range keys {
		style := styleKey
		if !k.enabled {
			style = styleDisabled
		}
		x = a.drawText(x, y, k.label, style) + 2
	}
}

// drawText writes s at (x, y) clipped to the screen width and returns the next column
func (a *App) drawText(x, y int, s string, style tcell.Style) int {
	for _, r := range s {
		if x >= a.width {
			break
		}
		a.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}

func (a *App) clearRow(y int) {
	for x := 0; x < a.width; x++ {
		a.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
	}
}
