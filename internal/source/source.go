// Package source holds one adapter per upstream feed. Each adapter fetches
// through the bounded fetch client and normalizes the raw payload into
// canonical records. Parsing is total over malformed input: structural
// mismatches surface as *ParseError, never as a panic, and markup is always
// decoded by field-name lookup with a hard row cap.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/misua/quake-monitor-web/internal/domain"
)

// Adapter is the capability every upstream source implements: a suggested
// polling interval plus one bounded fetch-and-parse operation.
type Adapter interface {
	Name() string
	Kind() domain.Kind
	Interval() time.Duration
	Fetch(ctx context.Context) ([]domain.Record, error)
}

// ErrEmptyResult signals that the source responded but yielded zero valid
// records. The scheduler treats it as a soft outcome ("no current alerts" is
// a legitimate state for advisory feeds), keeping the last known value while
// refreshing the fetch timestamp.
var ErrEmptyResult = errors.New("source returned no records")

// ParseError reports a structural mismatch in an otherwise fetched payload.
// The scheduler treats it like a fetch failure: the cache keeps its last
// known good value.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err originated as an adapter parse failure.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// validRecords drops records that fail schema validation rather than letting
// a partially populated record escape the adapter boundary.
func validRecords(records []domain.Record) []domain.Record {
	out := records[:0]
	for _, r := range records {
		if r.Validate() == nil {
			out = append(out, r)
		}
	}
	return out
}
