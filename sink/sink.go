package sink

import (
	"context"
)

// Sink stores an encoded dataset under a key.
type Sink interface {
	Name() string
	Write(ctx context.Context, key string, data []byte) error
}

const (
	ErrTypeWriteFailed   = "sink_write_failed"
	ErrTypePublishFailed = "publish_failed"
	ErrTypeEncodeFailed  = "encode_failed"
)

// GeoJSONContentType is the media type of the encoded datasets.
const GeoJSONContentType = "application/geo+json"
