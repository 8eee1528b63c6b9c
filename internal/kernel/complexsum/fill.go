package complexsum

import (
	"fmt"
	"strings"
)

// Fill selects how Setup initialises the columns.
type Fill int

const (
	// FillUniform stores C = 2*1024/N in every real and imaginary element, so
	// the sum is exactly (2048, 2048) for any N.
	FillUniform Fill = iota
	// FillRamp stores the arithmetic sequence C(k) = 2*1024/N + k*(2*1024/N)
	// in both columns. Its exact sum is 1024*(N+1).
	FillRamp
)

func (f Fill) String() string {
	switch f {
	case FillUniform:
		return "uniform"
	case FillRamp:
		return "ramp"
	default:
		return fmt.Sprintf("Fill(%d)", int(f))
	}
}

// ParseFill parses "uniform" or "ramp".
func ParseFill(s string) (Fill, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform", "":
		return FillUniform, nil
	case "ramp":
		return FillRamp, nil
	default:
		return FillUniform, fmt.Errorf("unknown fill profile %q", s)
	}
}

// step is the fill constant 2*1024/N.
func step(n int) float64 {
	return 2.0 * 1024.0 / float64(n)
}

// fillRange writes elements [lo, hi) of an n-element problem into re and im,
// which hold exactly that window.
func fillRange(f Fill, n, lo int, re, im []float64) {
	c := step(n)
	im = im[:len(re)]
	switch f {
	case FillRamp:
		for i := range re {
			v := c + float64(lo+i)*c
			re[i] = v
			im[i] = v
		}
	default:
		for i := range re {
			re[i] = c
			im[i] = c
		}
	}
}
