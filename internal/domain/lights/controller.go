// Package lights mirrors the artwork's average color onto Home
// Assistant light entities.
package lights

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ServiceCaller invokes a Home Assistant service.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// Brightness percentage bounds: never fully dark, never above full.
const (
	minBrightnessPct = 10
	maxBrightnessPct = 100
)

// Controller drives a set of light entities. Every entity is handled
// independently; one failing light never blocks the others.
type Controller struct {
	caller   ServiceCaller
	entities []string
}

// NewController creates a controller for the given entity IDs.
func NewController(caller ServiceCaller, entities []string) *Controller {
	var valid []string
	for _, e := range entities {
		if e != "" {
			valid = append(valid, e)
		}
	}
	return &Controller{caller: caller, entities: valid}
}

// Configured reports whether any light is managed.
func (c *Controller) Configured() bool {
	return len(c.entities) > 0
}

// On lights every entity with the artwork color. Brightness is the
// 0-255 image brightness, converted to a clamped percentage.
func (c *Controller) On(ctx context.Context, rgb [3]uint8, brightness int) error {
	pct := BrightnessPct(brightness)

	var errs []error
	for _, entity := range c.entities {
		data := map[string]any{
			"entity_id":      entity,
			"rgb_color":      []int{int(rgb[0]), int(rgb[1]), int(rgb[2])},
			"brightness_pct": pct,
		}
		if err := c.caller.CallService(ctx, "light", "turn_on", data); err != nil {
			log.Warn().Err(err).Str("entity", entity).Msg("Light turn_on failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Off turns every entity off.
func (c *Controller) Off(ctx context.Context) error {
	var errs []error
	for _, entity := range c.entities {
		data := map[string]any{"entity_id": entity}
		if err := c.caller.CallService(ctx, "light", "turn_off", data); err != nil {
			log.Warn().Err(err).Str("entity", entity).Msg("Light turn_off failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BrightnessPct converts a 0-255 image brightness to the 10-100
// percentage range lights accept.
func BrightnessPct(brightness int) int {
	pct := brightness * 100 / 255
	if pct < minBrightnessPct {
		return minBrightnessPct
	}
	if pct > maxBrightnessPct {
		return maxBrightnessPct
	}
	return pct
}
