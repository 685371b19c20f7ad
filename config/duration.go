// config/duration.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDurationFlexible accepts strings like "90s"/"2m", numeric seconds, or time.Duration.
// Zero is accepted only when allowZero is set; negatives never are.
// Returns def on empty/unknown types; returns def + error on invalid input.
func parseDurationFlexible(raw any, def time.Duration, allowZero bool) (time.Duration, error) {
	var d time.Duration

	switch t := raw.(type) {
	case time.Duration:
		d = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if pd, err := time.ParseDuration(s); err == nil {
			d = pd
		} else if n, err := strconv.ParseFloat(s, 64); err == nil {
			// plain seconds, e.g. "120" or "1.5"
			d = time.Duration(n * float64(time.Second))
		} else {
			return def, fmt.Errorf("cannot parse %q as a duration", s)
		}
	case int:
		d = time.Duration(t) * time.Second
	case int32:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	default:
		// nil, bool, etc. – use default, no error
		return def, nil
	}

	if d < 0 || (d == 0 && !allowZero) {
		if allowZero {
			return def, fmt.Errorf("must be >= 0 (got %v)", d)
		}
		return def, fmt.Errorf("must be > 0 (got %v)", d)
	}
	return d, nil
}
