package catalog

import (
	"errors"
	"fmt"
)

// ErrLoad is matched by every *LoadError.
var ErrLoad = errors.New("catalog load failed")

// LoadError describes why a catalog could not be loaded. Index is -1 when
// the failure is not tied to a single record.
type LoadError struct {
	Path   string
	Index  int
	URL    string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "catalog"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(": record %d", e.Index)
		if e.URL != "" {
			msg += fmt.Sprintf(" (%s)", e.URL)
		}
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLoad) hold for any *LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }
