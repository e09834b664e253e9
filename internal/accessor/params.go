package accessor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
)

// Params are the string parameters of one accessor instance.
type Params map[string]string

// Require returns the trimmed value of key or a configuration error when it
// is missing or blank.
func (p Params) Require(key string) (string, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return "", fmt.Errorf("%w: parameter %q is required", fault.ErrConfiguration, key)
	}
	return v, nil
}

// String returns the trimmed value of key, or def when absent.
func (p Params) String(key, def string) string {
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return def
}

// Millis reads key as a positive number of milliseconds.
func (p Params) Millis(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(p[key])
	if raw == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("%w: parameter %q must be a positive number of milliseconds, got %q", fault.ErrConfiguration, key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// List splits a comma separated value, dropping blanks.
func (p Params) List(key string) []string {
	var out []string
	for _, part := range strings.Split(p[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
