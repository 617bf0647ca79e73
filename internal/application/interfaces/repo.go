package interfaces

import (
	"context"

	"github.com/getsupporthub/search-provisioner/internal/application/dto"
	"github.com/getsupporthub/search-provisioner/internal/application/events"
	"github.com/getsupporthub/search-provisioner/internal/infra/db"
	"github.com/google/uuid"
)

// TenantStore reads and transitions the tenant record owned by the
// onboarding system. Only the search index fields are ever written here.
type TenantStore interface {
	// GetTenantByID returns nil without error when the tenant does not exist.
	GetTenantByID(ctx context.Context, id uuid.UUID) (*db.Tenant, error)
	// CommitSearchReady transactionally stores the collection ARN and flips
	// the status to ready. Zero affected rows surfaces errs.CommitNotFoundError.
	CommitSearchReady(ctx context.Context, id uuid.UUID, collectionARN string) (*db.Tenant, error)
	// MarkSearchFailed is best-effort diagnostic housekeeping, its own
	// failures are logged and swallowed.
	MarkSearchFailed(ctx context.Context, id uuid.UUID, reason string)
}

// CollectionProvisioner creates the tenant's search collection and blocks
// until the provider reports a terminal status.
type CollectionProvisioner interface {
	Provision(ctx context.Context, tenantID, tenantSlug string) (*dto.ProvisionedCollection, error)
}

// ProvisionHandler is what the queue consumer dispatches each event to.
type ProvisionHandler interface {
	Handle(ctx context.Context, event events.TenantSearchProvisionRequested) error
}
