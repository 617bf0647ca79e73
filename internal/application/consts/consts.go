package consts

type TenantStatus string

const TenantStatusActive TenantStatus = "active"
const TenantStatusSuspended TenantStatus = "suspended"
const TenantStatusDeleted TenantStatus = "deleted"

type SearchIndexStatus string

const (
	SearchIndexUninitialized SearchIndexStatus = "uninitialized"
	SearchIndexReady         SearchIndexStatus = "ready"
	SearchIndexFailed        SearchIndexStatus = "failed"
)

type CollectionStatus string

const (
	CollectionCreating CollectionStatus = "CREATING"
	CollectionActive   CollectionStatus = "ACTIVE"
	CollectionFailed   CollectionStatus = "FAILED"
)
