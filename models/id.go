package models

import "sync"

// FeatureIDGenerator hands out sequential feature ids for exported records.
type FeatureIDGenerator struct {
	mutex     sync.Mutex
	currentID uint64
}

// New returns the next id. Ids start at 1.
func (g *FeatureIDGenerator) New() uint64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID++
	return g.currentID
}
