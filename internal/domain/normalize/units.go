package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	kmPerMile  = 1.60934
	kmPerMeter = 0.001

	// maxDurationSeconds is the longest duration a time.Duration can hold.
	maxDurationSeconds = int64(math.MaxInt64 / time.Second)
)

// unitFactors converts a distance unit to kilometres. The empty unit is km.
var unitFactors = map[string]float64{
	"":           1,
	"km":         1,
	"kms":        1,
	"kilometer":  1,
	"kilometers": 1,
	"kilometre":  1,
	"kilometres": 1,
	"m":          kmPerMeter,
	"meter":      kmPerMeter,
	"meters":     kmPerMeter,
	"metre":      kmPerMeter,
	"metres":     kmPerMeter,
	"mi":         kmPerMile,
	"mile":       kmPerMile,
	"miles":      kmPerMile,
}

// toKm converts value+unit to kilometres. A unit glued to the number
// ("5mi") is accepted. ok is false for unknown units and for values that
// are not finite and positive.
func toKm(value, unit string) (float64, bool) {
	value = strings.TrimSpace(value)
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		value, unit = splitUnit(value)
	}

	factor, known := unitFactors[unit]
	if !known {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	km := v * factor
	if math.IsInf(km, 0) || km <= 0 {
		return 0, false
	}
	return km, true
}

// splitUnit separates a trailing alphabetic unit from a number.
func splitUnit(s string) (string, string) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		i--
	}
	// "NaN" and "Inf" are all letters; leave them for ParseFloat to reject
	if i == 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.ToLower(s[i:])
}

// parseDuration accepts HH:MM:SS, MM:SS or integer seconds. Values beyond
// maxDurationSeconds are rejected.
func parseDuration(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	parts := strings.Split(s, ":")
	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		nums[i] = n
	}

	var secs int64
	switch len(nums) {
	case 1:
		secs = nums[0]
	case 2:
		if nums[1] >= 60 || nums[0] > (maxDurationSeconds-59)/60 {
			return 0, false
		}
		secs = nums[0]*60 + nums[1]
	case 3:
		if nums[1] >= 60 || nums[2] >= 60 || nums[0] > (maxDurationSeconds-3599)/3600 {
			return 0, false
		}
		secs = nums[0]*3600 + nums[1]*60 + nums[2]
	default:
		return 0, false
	}
	if secs > maxDurationSeconds {
		return 0, false
	}
	return secs, true
}

// parseCount reads a non-negative integer, tolerating thousands separators
// and a trailing ".0".
func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}
