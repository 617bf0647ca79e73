package db

import (
	"time"

	"github.com/getsupporthub/search-provisioner/internal/application/consts"
	"github.com/google/uuid"
)

type Tenant struct {
	ID                uuid.UUID                `db:"id"`
	Slug              string                   `db:"slug"`
	Status            consts.TenantStatus      `db:"status"`
	SearchIndexARN    *string                  `db:"search_index_arn"`
	SearchIndexStatus consts.SearchIndexStatus `db:"search_index_status"`
	UpdatedAt         time.Time                `db:"updated_at"`
}
