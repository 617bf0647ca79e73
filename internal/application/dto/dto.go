package dto

import "github.com/getsupporthub/search-provisioner/internal/application/consts"

// ProvisionedCollection describes the collection as reported by the provider
// once it reached a terminal status.
type ProvisionedCollection struct {
	Name     string
	ARN      string
	Endpoint string
	Status   consts.CollectionStatus
}
