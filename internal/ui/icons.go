package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

// Icon dimensions for system tray.
const iconSize = 22

var (
	colorIdle      = color.RGBA{128, 128, 128, 255}
	colorBusy      = color.RGBA{255, 140, 0, 255}
	colorConnected = color.RGBA{76, 175, 80, 255}
	colorError     = color.RGBA{211, 47, 47, 255}
)

// Pre-generated PNG icons, one per state group.
var (
	iconDisconnectedPNG = generateShieldIcon(colorIdle)
	iconBusyPNG         = generateShieldIcon(colorBusy)
	iconConnectedPNG    = generateShieldIcon(colorConnected)
	iconErrorPNG        = generateShieldIcon(colorError)
)

// iconFor returns the tray icon for a phase.
func iconFor(phase vpn.Phase) []byte {
	switch phase {
	case vpn.PhaseConnected:
		return iconConnectedPNG
	case vpn.PhaseConnecting, vpn.PhaseDisconnecting:
		return iconBusyPNG
	case vpn.PhaseError:
		return iconErrorPNG
	}
	return iconDisconnectedPNG
}

// generateShieldIcon draws a shield in c with a light tunnel arch cut into it.
func generateShieldIcon(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))

	const (
		left   = 3
		right  = 18
		top    = 2
		bottom = 20
		// Rows below taper toward the tip.
		taperFrom = 12
	)
	mid := (left + right) / 2

	for y := top; y <= bottom; y++ {
		inset := 0
		if y > taperFrom {
			inset = (y - taperFrom) * (mid - left) / (bottom - taperFrom)
		}
		for x := left + inset; x <= right-inset; x++ {
			img.Set(x, y, c)
		}
	}

	// Tunnel arch: a half-disc over a rectangle.
	arch := color.RGBA{250, 250, 250, 255}
	const archTop, archBottom, archHalf = 7, 14, 3
	for y := archTop; y <= archBottom; y++ {
		for x := mid - archHalf; x <= mid+archHalf; x++ {
			dx, dy := x-mid, y-(archTop+archHalf)
			if y >= archTop+archHalf || dx*dx+dy*dy <= archHalf*archHalf {
				img.Set(x, y, arch)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
