package scene

import (
	"sync"

	"github.com/ravik-dev/kinetiq/internal/mirror"
)

// spatialIndex is the scene-query structure. It is never buffered: it
// always reflects the latest value, live or buffered, immediately.
type spatialIndex struct {
	mu      sync.RWMutex
	centers map[mirror.ObjectID]Vec3
	radii   map[mirror.ObjectID]float64
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		centers: make(map[mirror.ObjectID]Vec3),
		radii:   make(map[mirror.ObjectID]float64),
	}
}

func (x *spatialIndex) update(id mirror.ObjectID, center Vec3, radius float64) {
	x.mu.Lock()
	x.centers[id] = center
	x.radii[id] = radius
	x.mu.Unlock()
}

func (x *spatialIndex) remove(id mirror.ObjectID) {
	x.mu.Lock()
	delete(x.centers, id)
	delete(x.radii, id)
	x.mu.Unlock()
}

// overlap returns the ids of every indexed sphere intersecting the query
// sphere.
func (x *spatialIndex) overlap(center Vec3, radius float64) []mirror.ObjectID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []mirror.ObjectID
	for id, c := range x.centers {
		if c.Sub(center).Norm() <= radius+x.radii[id] {
			out = append(out, id)
		}
	}
	return out
}
