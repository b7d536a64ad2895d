package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var firstNumber = regexp.MustCompile(`\d+`)

// NormalizePeriodLabel turns a raw period header into a display token.
// Calendar years (1900..2999, integers or integral floats such as "2025.0")
// are kept; other text containing a number n becomes "Ynn"; text without a
// number becomes the 1-based position as "Ynn".
func NormalizePeriodLabel(raw string, position int) string {
	s := strings.TrimSpace(raw)
	if s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			if y := int(f); y >= 1900 && y <= 2999 {
				return strconv.Itoa(y)
			}
		}
		if m := firstNumber.FindString(s); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return ordinal(n)
			}
		}
	}
	return ordinal(position + 1)
}

func ordinal(n int) string {
	return fmt.Sprintf("Y%02d", n)
}
