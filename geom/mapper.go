package geom

import "math"

// MapToScreenFrame is the logical frame size reported while map-to-screen is
// active. The remote side rescales forwarded positions from this range.
var MapToScreenFrame = Size{W: 65535, H: 65535}

// EventFrameSize returns the frame size that accompanies every forwarded
// input event.
func EventFrameSize(mapToScreen bool, streamFrame Size) Size {
	if mapToScreen {
		return MapToScreenFrame
	}
	return streamFrame
}

// EventShowSize returns the on-screen rendering size of the video surface,
// falling back to the window size while the surface has no area yet.
func EventShowSize(surface, window Size) Size {
	if !surface.Empty() {
		return surface
	}
	return window
}

// ToDeviceSpace maps a window-local point into the video surface's local
// space given the surface geometry inside the window.
func ToDeviceSpace(windowPoint PointF, surface Rect) PointF {
	return PointF{X: windowPoint.X - float64(surface.X), Y: windowPoint.Y - float64(surface.Y)}
}

// Letterbox computes the viewport in which a frame is rendered inside a view
// while keeping its aspect ratio. Square frames fit a centred square of the
// lesser view dimension; otherwise the frame fits by height or by width and
// the remainder is split evenly on both sides.
func Letterbox(view, frame Size) Rect {
	full := Rect{W: max(1, view.W), H: max(1, view.H)}
	if view.Empty() || frame.Empty() {
		return full
	}

	if frame.W == frame.H {
		side := max(1, min(view.W, view.H))
		return Rect{X: (view.W - side) / 2, Y: (view.H - side) / 2, W: side, H: side}
	}

	frameAspect := float64(frame.W) / float64(frame.H)
	viewAspect := float64(view.W) / float64(view.H)
	if viewAspect > frameAspect {
		w := max(1, int(math.Round(float64(view.H)*frameAspect)))
		return Rect{X: (view.W - w) / 2, Y: 0, W: w, H: view.H}
	}
	h := max(1, int(math.Round(float64(view.W)/frameAspect)))
	return Rect{X: 0, Y: (view.H - h) / 2, W: view.W, H: h}
}

// ClampToViewport clamps a surface-local point into the letterbox viewport
// of frame inside a surface of the given size.
func ClampToViewport(p PointF, surface, frame Size) PointF {
	return Letterbox(surface, frame).Clamp(p)
}
