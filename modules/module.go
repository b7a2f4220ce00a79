package modules

import (
	"context"

	"github.com/granulemap/granulemap/models"
)

// Module is the interface that describes a processing stage of the footprint
// pipeline.
type Module interface {
	// Returns the module name.
	Name() string

	// Processes a batch of records and returns the records handed to the next
	// module.
	//
	// Returning a *models.BatchError indicates that the listed records could
	// not be processed; the returned records are still valid and the caller
	// decides whether to continue.
	//
	// Any other returned error aborts the run.
	Process(context.Context, []*models.Record) ([]*models.Record, error)
}
