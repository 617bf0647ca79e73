package events

import (
	"fmt"
	"regexp"

	shared "github.com/getsupporthub/search-provisioner/pkg/interfaces"
	"github.com/google/uuid"
)

// slug rules follow DNS labels: lowercase alphanumerics and hyphens, no
// leading or trailing hyphen, 3..64 chars total.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// TenantSearchProvisionRequested is the queue payload asking for a search
// collection to be created for one tenant.
type TenantSearchProvisionRequested struct {
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
	Timestamp  string `json:"timestamp"`
}

var _ shared.Event = TenantSearchProvisionRequested{}

func (e TenantSearchProvisionRequested) GetType() string {
	return "TenantSearchProvisionRequested"
}

// Validate rejects structurally malformed payloads. A validation error is
// permanent: redelivery can't repair a bad payload, so callers discard the
// event instead of retrying it.
func (e TenantSearchProvisionRequested) Validate() error {
	if _, err := uuid.Parse(e.TenantID); err != nil {
		return fmt.Errorf("invalid tenant_id %q: %v", e.TenantID, err)
	}
	if !slugPattern.MatchString(e.TenantSlug) {
		return fmt.Errorf("invalid tenant_slug %q", e.TenantSlug)
	}
	if e.Timestamp == "" {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}
