package cloth

import (
	"sync/atomic"

	"github.com/gekko3d/cloth/pbd/controller"
)

// ClothSnapshotContainer hands the latest settled snapshot to readers on
// other goroutines.
type ClothSnapshotContainer struct {
	latest atomic.Pointer[controller.Snapshot]
}

func (c *ClothSnapshotContainer) Update(s *controller.Snapshot) {
	c.latest.Store(s)
}

func (c *ClothSnapshotContainer) Get() *controller.Snapshot {
	return c.latest.Load()
}
