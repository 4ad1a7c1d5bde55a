// Package projection converts between geographic coordinates and screen
// pixels for a Web-Mercator map viewport.
package projection

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// MaxMercatorLatitude is the northern edge of the Web-Mercator world square.
	MaxMercatorLatitude = 85.05112877980659
	// MinMercatorLatitude is the southern edge of the Web-Mercator world square.
	MinMercatorLatitude = -MaxMercatorLatitude

	// TileSize is the pixel size of one tile at integer zoom levels.
	TileSize = 512

	// mercatorPole matches the constant orb/project uses for the inverse projection.
	mercatorPole = 20037508.34
)

// ValidLatitude reports whether lat lies inside the Web-Mercator range.
func ValidLatitude(lat float64) bool {
	return lat >= MinMercatorLatitude && lat <= MaxMercatorLatitude
}

// ScreenPoint is a position in screen pixels, origin top-left, y down.
type ScreenPoint struct {
	X float64 `json:"x" doc:"Horizontal pixel offset from the left edge"`
	Y float64 `json:"y" doc:"Vertical pixel offset from the top edge"`
}

// Add returns p shifted by (dx, dy).
func (p ScreenPoint) Add(dx, dy float64) ScreenPoint {
	return ScreenPoint{X: p.X + dx, Y: p.Y + dy}
}

func (p ScreenPoint) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// Viewport is the camera of a map view: what geographic point is centred,
// at which zoom, on a screen of which size.
type Viewport struct {
	Center orb.Point `json:"center" doc:"Camera centre as [lng, lat]"`
	Zoom   float64   `json:"zoom" doc:"Zoom level"`
	Width  float64   `json:"width" doc:"Screen width in pixels"`
	Height float64   `json:"height" doc:"Screen height in pixels"`
}

// NewViewport creates a viewport centred on center.
func NewViewport(center orb.Point, zoom, width, height float64) *Viewport {
	return &Viewport{Center: center, Zoom: zoom, Width: width, Height: height}
}

// worldSize is the width of the whole world in pixels at the current zoom.
func (v *Viewport) worldSize() float64 {
	return TileSize * math.Pow(2, v.Zoom)
}

// toWorld projects a geographic point to absolute world pixels.
func (v *Viewport) toWorld(p orb.Point) (float64, float64) {
	m := project.WGS84.ToMercator(p)
	size := v.worldSize()
	x := (m[0] + mercatorPole) / (2 * mercatorPole) * size
	y := (mercatorPole - m[1]) / (2 * mercatorPole) * size
	return x, y
}

// fromWorld is the inverse of toWorld. Points outside the world square map
// to latitudes beyond the Mercator range.
func (v *Viewport) fromWorld(x, y float64) orb.Point {
	size := v.worldSize()
	m := orb.Point{
		x/size*2*mercatorPole - mercatorPole,
		mercatorPole - y/size*2*mercatorPole,
	}
	return project.Mercator.ToWGS84(m)
}

// ToScreenLocation converts a geographic point to screen pixels.
func (v *Viewport) ToScreenLocation(p orb.Point) ScreenPoint {
	cx, cy := v.toWorld(v.Center)
	x, y := v.toWorld(p)
	return ScreenPoint{
		X: x - cx + v.Width/2,
		Y: y - cy + v.Height/2,
	}
}

// FromScreenLocation converts screen pixels to a geographic point.
func (v *Viewport) FromScreenLocation(s ScreenPoint) orb.Point {
	cx, cy := v.toWorld(v.Center)
	return v.fromWorld(s.X-v.Width/2+cx, s.Y-v.Height/2+cy)
}

// Pan moves the camera so that content shifts by (dx, dy) pixels on screen.
func (v *Viewport) Pan(dx, dy float64) {
	v.Center = v.FromScreenLocation(ScreenPoint{X: v.Width/2 - dx, Y: v.Height/2 - dy})
	if v.Center[1] > MaxMercatorLatitude {
		v.Center[1] = MaxMercatorLatitude
	}
	if v.Center[1] < MinMercatorLatitude {
		v.Center[1] = MinMercatorLatitude
	}
}

// Contains reports whether s lies on screen.
func (v *Viewport) Contains(s ScreenPoint) bool {
	return s.X >= 0 && s.Y >= 0 && s.X <= v.Width && s.Y <= v.Height
}
