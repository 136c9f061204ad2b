// Package orientation tracks the rotation of the controlled device's
// display by polling it and keeps the mirrored frame size in step.
package orientation

import (
	"regexp"
	"strconv"
)

var (
	surfaceOrientationRe = regexp.MustCompile(`(?i)SurfaceOrientation\s*:\s*([0-3])`)
	orientationRe        = regexp.MustCompile(`(?i)orientation\s*[=:]\s*([0-3])`)
)

// ParseOrientation extracts a rotation in [0,3] from dumpsys output. The
// labelled SurfaceOrientation field wins over a generic orientation=N form.
func ParseOrientation(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{surfaceOrientationRe, orientationRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err == nil && v >= 0 && v <= 3 {
			return v, true
		}
	}
	return 0, false
}
