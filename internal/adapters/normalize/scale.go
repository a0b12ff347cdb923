package normalize

import (
	"strconv"
	"strings"
)

// scale100 multiplies v by 100 by shifting the decimal point of its shortest
// string form, avoiding the representation error of v*100.
func scale100(v float64) float64 {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	for len(frac) < 2 {
		frac += "0"
	}
	shifted := intPart + frac[:2]
	if rest := frac[2:]; rest != "" {
		shifted += "." + rest
	}
	if neg {
		shifted = "-" + shifted
	}
	out, err := strconv.ParseFloat(shifted, 64)
	if err != nil {
		return v * 100
	}
	return out
}
