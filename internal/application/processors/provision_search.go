package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsupporthub/search-provisioner/internal/application/consts"
	"github.com/getsupporthub/search-provisioner/internal/application/errs"
	"github.com/getsupporthub/search-provisioner/internal/application/events"
	"github.com/getsupporthub/search-provisioner/internal/application/interfaces"
	"github.com/getsupporthub/search-provisioner/internal/infra/db"
	"github.com/google/uuid"
)

// ProvisionTenantSearch drives one provisioning event end to end: eligibility
// check, collection creation, ready-commit. Returning nil tells the consumer
// the event may be deleted, returning an error leaves it for redelivery.
type ProvisionTenantSearch struct {
	store       interfaces.TenantStore
	provisioner interfaces.CollectionProvisioner
}

var _ interfaces.ProvisionHandler = (*ProvisionTenantSearch)(nil)

func NewProvisionTenantSearch(store interfaces.TenantStore, provisioner interfaces.CollectionProvisioner) *ProvisionTenantSearch {
	return &ProvisionTenantSearch{
		store:       store,
		provisioner: provisioner,
	}
}

func (p *ProvisionTenantSearch) Handle(ctx context.Context, event events.TenantSearchProvisionRequested) error {
	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		return fmt.Errorf("unparseable tenant id %v, %v", event.TenantID, err)
	}

	tenant, err := p.store.GetTenantByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("err validating tenant %v, %v", event.TenantID, err)
	}
	if err := eligible(tenant); err != nil {
		var skip errs.IneligibleError
		if errors.As(err, &skip) {
			// Expected under at-least-once delivery, a redelivered event for
			// an already provisioned tenant lands here.
			slog.Info("skipping provisioning", "tenant", event.TenantID, "slug", event.TenantSlug, "reason", skip.Reason)
			return nil
		}
		return err
	}

	collection, err := p.provisioner.Provision(ctx, event.TenantID, event.TenantSlug)
	if err != nil {
		p.markFailed(ctx, tenantID, event.TenantSlug, err)
		return fmt.Errorf("err provisioning collection for tenant %v (%v), %w", event.TenantID, event.TenantSlug, err)
	}

	if _, err = p.store.CommitSearchReady(ctx, tenantID, collection.ARN); err != nil {
		p.markFailed(ctx, tenantID, event.TenantSlug, err)
		return fmt.Errorf("err committing ready state for tenant %v, %w", event.TenantID, err)
	}

	slog.Info("provisioned search collection", "tenant", event.TenantID, "slug", event.TenantSlug,
		"collection", collection.Name, "arn", collection.ARN, "endpoint", collection.Endpoint)
	return nil
}

// eligible decides whether the event should proceed. Any IneligibleError
// here is the idempotency guarantee: the event is dropped as handled instead
// of creating a duplicate collection.
func eligible(tenant *db.Tenant) error {
	switch {
	case tenant == nil:
		return errs.IneligibleError{Reason: "tenant not found"}
	case tenant.Status != consts.TenantStatusActive:
		return errs.IneligibleError{Reason: fmt.Sprintf("tenant status is %v", tenant.Status)}
	case tenant.SearchIndexARN != nil && *tenant.SearchIndexARN != "":
		return errs.IneligibleError{Reason: "collection already assigned"}
	case tenant.SearchIndexStatus == consts.SearchIndexReady:
		return errs.IneligibleError{Reason: "search index already ready"}
	}
	return nil
}

// markFailed records the failure on the tenant row. Errors inside are
// diagnostic only and never replace the provisioning error being returned to
// the consumer.
func (p *ProvisionTenantSearch) markFailed(ctx context.Context, tenantID uuid.UUID, slug string, cause error) {
	slog.Error("provisioning failed", "tenant", tenantID, "slug", slug, "err", cause)
	p.store.MarkSearchFailed(ctx, tenantID, cause.Error())
}
