package hue

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

// hueScale converts degrees to the bridge's 0-65535 hue range.
const hueScale = 182.04

const (
	maxHue   = 65535
	maxSat   = 255
	maxBri   = 255
	byteSpan = 255.0
)

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// HSB is a color in the bridge's native ranges.
type HSB struct {
	Hue int `json:"hue"`
	Sat int `json:"sat"`
	Bri int `json:"bri"`
}

// HexToHSB converts "#rrggbb", "#rgb" or the same without '#' to bridge
// hue/saturation/brightness.
func HexToHSB(s string) (HSB, error) {
	hex := normalizeHex(s)
	if !hexColorPattern.MatchString(hex) {
		return HSB{}, fmt.Errorf("%w: %w: %q", port.ErrInvalidValue, ErrInvalidColor, s)
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return HSB{}, fmt.Errorf("%w: %w: %v", port.ErrInvalidValue, ErrInvalidColor, err)
	}

	h, sat, v := c.Hsv()
	return HSB{
		Hue: clamp(int(math.Round(h*hueScale)), 0, maxHue),
		Sat: clamp(int(math.Round(sat*byteSpan)), 0, maxSat),
		Bri: clamp(int(math.Round(v*byteSpan)), 0, maxBri),
	}, nil
}

// Hex converts c back to "#rrggbb".
func (c HSB) Hex() string {
	return colorful.Hsv(
		float64(c.Hue)/hueScale,
		float64(c.Sat)/byteSpan,
		float64(c.Bri)/byteSpan,
	).Clamped().Hex()
}

func normalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return strings.ToLower(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
