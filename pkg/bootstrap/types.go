// Package bootstrap loads the seed file that pre-provisions charge points and
// id tags before stations connect.
package bootstrap

import (
	"time"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
)

// SeedChargePoint pre-registers a station identity. Vendor and model are
// overwritten by the station's own BootNotification.
type SeedChargePoint struct {
	ID          string `toml:"id"`
	Vendor      string `toml:"vendor"`
	Model       string `toml:"model"`
	Description string `toml:"description"`
}

// SeedIDTag is an entry in the central authorization list.
type SeedIDTag struct {
	IDTag       string     `toml:"id_tag"`
	Status      string     `toml:"status"`
	ParentIDTag string     `toml:"parent_id_tag"`
	Expiry      *time.Time `toml:"expiry"`
}

// AuthorizationStatus returns the tag status, Accepted when unset.
func (t SeedIDTag) AuthorizationStatus() catalog.AuthorizationStatus {
	if t.Status == "" {
		return catalog.AuthorizationStatusAccepted
	}
	return catalog.AuthorizationStatus(t.Status)
}

// SeedConfig is the root of a seed file.
type SeedConfig struct {
	Name         string            `toml:"name"`
	Description  string            `toml:"description"`
	ChargePoints []SeedChargePoint `toml:"charge_points"`
	IDTags       []SeedIDTag       `toml:"id_tags"`
}

// Empty reports whether the config seeds nothing.
func (c *SeedConfig) Empty() bool {
	return c == nil || (len(c.ChargePoints) == 0 && len(c.IDTags) == 0)
}

// ChargePoint returns the seeded charge point with the given id.
func (c *SeedConfig) ChargePoint(id string) (SeedChargePoint, bool) {
	for _, cp := range c.ChargePoints {
		if cp.ID == id {
			return cp, true
		}
	}
	return SeedChargePoint{}, false
}

// IDTag returns the seeded tag with the given value.
func (c *SeedConfig) IDTag(tag string) (SeedIDTag, bool) {
	for _, t := range c.IDTags {
		if t.IDTag == tag {
			return t, true
		}
	}
	return SeedIDTag{}, false
}
