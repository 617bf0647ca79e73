package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsupporthub/search-provisioner/internal/application/consts"
	"github.com/getsupporthub/search-provisioner/internal/application/errs"
	"github.com/getsupporthub/search-provisioner/internal/application/interfaces"
	"github.com/getsupporthub/search-provisioner/internal/infra/db"
	dbs "github.com/getsupporthub/search-provisioner/pkg/db"
	shared "github.com/getsupporthub/search-provisioner/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantStore struct {
	uowFactory *dbs.UOWFactory
}

var _ interfaces.TenantStore = (*TenantStore)(nil)

func NewTenantStore(uowFactory *dbs.UOWFactory) *TenantStore {
	return &TenantStore{uowFactory: uowFactory}
}

func (s *TenantStore) GetTenantByID(ctx context.Context, id uuid.UUID) (*db.Tenant, error) {
	var tenant db.Tenant
	query := "SELECT id, slug, status, search_index_arn, search_index_status, updated_at FROM platform.tenants WHERE id = $1"
	err := s.uowFactory.Pool.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Slug, &tenant.Status,
		&tenant.SearchIndexARN, &tenant.SearchIndexStatus, &tenant.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("err fetching tenant %v, %v", id, err)
	}

	return &tenant, nil
}

func (s *TenantStore) CommitSearchReady(ctx context.Context, id uuid.UUID, collectionARN string) (*db.Tenant, error) {
	var uow shared.UoW = s.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `UPDATE platform.tenants SET search_index_arn = $1, search_index_status = $2, updated_at = $3 WHERE id = $4`,
		collectionARN, consts.SearchIndexReady, time.Now(), id)
	if err != nil {
		errRollback := uow.Rollback()
		return nil, errors.Join(fmt.Errorf("err committing ready state, %v", err), errRollback)
	}
	if tag.RowsAffected() == 0 {
		_ = uow.Rollback()
		return nil, errs.CommitNotFoundError{TenantID: id.String()}
	}

	var tenant db.Tenant
	query := "SELECT id, slug, status, search_index_arn, search_index_status, updated_at FROM platform.tenants WHERE id = $1"
	err = tx.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Slug, &tenant.Status,
		&tenant.SearchIndexARN, &tenant.SearchIndexStatus, &tenant.UpdatedAt)
	if err != nil {
		errRollback := uow.Rollback()
		return nil, errors.Join(fmt.Errorf("err reading committed tenant, %v", err), errRollback)
	}

	if err = uow.Commit(); err != nil {
		return nil, err
	}

	return &tenant, nil
}

// MarkSearchFailed flips the tenant to failed so operators can spot stuck
// provisioning. Errors here are diagnostic only: they are logged, never
// propagated, and must not mask the provisioning error that led here. A
// tenant already marked ready is left untouched.
func (s *TenantStore) MarkSearchFailed(ctx context.Context, id uuid.UUID, reason string) {
	tag, err := s.uowFactory.Pool.Exec(ctx,
		`UPDATE platform.tenants SET search_index_status = $1, updated_at = $2 WHERE id = $3 AND search_index_status <> $4`,
		consts.SearchIndexFailed, time.Now(), id, consts.SearchIndexReady)
	if err != nil {
		slog.Error("err marking tenant search as failed", "tenant", id, "reason", reason, "err", err)
		return
	}
	if tag.RowsAffected() == 0 {
		slog.Warn("no tenant row updated when marking failed", "tenant", id, "reason", reason)
		return
	}
	slog.Info("marked tenant search as failed", "tenant", id, "reason", reason)
}
