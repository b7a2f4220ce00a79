package featureflag

type Flag string

const (
	FlagDisableAntimeridianSplit Flag = "DISABLE_ANTIMERIDIAN_SPLIT"
	FlagDisableMerge             Flag = "DISABLE_MERGE"
	FlagDisableParallelSplit     Flag = "DISABLE_PARALLEL_SPLIT"
	FlagDisableResponseCache     Flag = "DISABLE_RESPONSE_CACHE"
)
