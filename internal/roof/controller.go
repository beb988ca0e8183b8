package roof

import (
	"context"

	"laserctl/internal/models"
	"laserctl/internal/safety"
)

// Controller pairs the door API with the limit-sensor cache. Commands go to
// the door; state only ever comes back through the cache, which the limit
// poller alone writes. The door's command echo is not trusted as state: the
// roof has not moved yet when the echo arrives.
type Controller struct {
	door  *DoorClient
	cache *safety.RoofCache
}

func NewController(door *DoorClient, cache *safety.RoofCache) *Controller {
	return &Controller{door: door, cache: cache}
}

// OpenRoof requests the roof to open.
func (c *Controller) OpenRoof(ctx context.Context) error {
	return c.door.Open(ctx).Err
}

// CloseRoof requests the roof to close.
func (c *Controller) CloseRoof(ctx context.Context) error {
	return c.door.Close(ctx).Err
}

// RoofState reads the cached limit-sensor state.
func (c *Controller) RoofState() models.RoofState {
	return c.cache.Read()
}
