// Package geom holds the sizes, points and rectangles shared by the input
// pipeline, and the pure coordinate mapping between window space, the video
// surface and the controlled device's frame.
package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a width/height pair in pixels.
type Size struct {
	W, H int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

// Empty reports whether the size has no area.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Transposed returns the size with width and height swapped.
func (s Size) Transposed() Size { return Size{W: s.H, H: s.W} }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// ParseSize parses "WxH" (also accepts "W*H" and "W,H").
func ParseSize(v string) (Size, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return Size{}, nil
	}
	sep := strings.IndexAny(v, "x*,")
	if sep <= 0 || sep == len(v)-1 {
		return Size{}, fmt.Errorf("invalid size %q: expected WxH", v)
	}
	w, err := strconv.Atoi(strings.TrimSpace(v[:sep]))
	if err != nil {
		return Size{}, fmt.Errorf("invalid width in %q: %w", v, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(v[sep+1:]))
	if err != nil {
		return Size{}, fmt.Errorf("invalid height in %q: %w", v, err)
	}
	if w < 0 || h < 0 {
		return Size{}, fmt.Errorf("invalid size %q: negative dimension", v)
	}
	return Size{W: w, H: h}, nil
}

// PointF is a floating point position or delta.
type PointF struct {
	X, Y float64
}

// Add returns p+q.
func (p PointF) Add(q PointF) PointF { return PointF{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p PointF) Sub(q PointF) PointF { return PointF{X: p.X - q.X, Y: p.Y - q.Y} }

// IsZero reports whether both components are exactly zero.
func (p PointF) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Rect is an integer rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H int
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// Contains reports whether p lies inside r. The right and bottom edges are
// exclusive.
func (r Rect) Contains(p PointF) bool {
	return p.X >= float64(r.X) && p.X < float64(r.X+r.W) &&
		p.Y >= float64(r.Y) && p.Y < float64(r.Y+r.H)
}

// Center returns the centre of r.
func (r Rect) Center() PointF {
	return PointF{X: float64(r.X) + float64(r.W)/2, Y: float64(r.Y) + float64(r.H)/2}
}

// Clamp moves p to the nearest point inside r (edges inclusive).
func (r Rect) Clamp(p PointF) PointF {
	return PointF{
		X: clamp(p.X, float64(r.X), float64(r.X+r.W)),
		Y: clamp(p.Y, float64(r.Y), float64(r.Y+r.H)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
