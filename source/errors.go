package source

const (
	ErrTypeSourceUnavailable = "source_unavailable"
	ErrTypeInvalidFeature    = "invalid_feature"
	ErrTypeInvalidQuery      = "invalid_query"
)
