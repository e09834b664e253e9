package instance

import (
	"fmt"
	"maps"
	"regexp"
	"time"
)

// Source records where an instance was first defined.
type Source string

// Sources.
const (
	SourceConfig Source = "config"
	SourceAPI    Source = "api"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Record is one persisted accessor instance.
type Record struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Name      string            `json:"name,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Enabled   bool              `json:"enabled"`
	Source    Source            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Validate checks the fields the store relies on.
func (r *Record) Validate() error {
	if !idPattern.MatchString(r.ID) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalid, r.ID, idPattern)
	}
	if r.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalid)
	}
	switch r.Source {
	case SourceConfig, SourceAPI:
	case "":
		r.Source = SourceAPI
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, r.Source)
	}
	return nil
}

// Clone returns a copy that shares no maps with r.
func (r *Record) Clone() *Record {
	c := *r
	c.Params = maps.Clone(r.Params)
	return &c
}
