package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error types reported by the geometry core. They are attached with
// errors.WithType and can be tested with errors.IsType.
const (
	ErrTypeMalformedRing    = "malformed_ring"
	ErrTypeGeometryMismatch = "geometry_mismatch"
	ErrTypeInvalidTolerance = "invalid_tolerance"
	ErrTypeInvalidCellSize  = "invalid_cell_size"
)

// RecordError reports why a single record could not be processed.
type RecordError struct {
	Index  int
	Record *Record
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// BatchError groups the record errors of a stage. The stage output is still
// valid for every record not listed.
type BatchError struct {
	Stage  string
	Errors []RecordError
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %d record(s) failed: %s", e.Stage, len(e.Errors), strings.Join(msgs, "; "))
}

// AsBatchError returns the batch error wrapped by err, if any.
func AsBatchError(err error) (*BatchError, bool) {
	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		return batchErr, true
	}
	return nil, false
}
