package config

import (
	"strconv"
	"time"

	"github.com/getsupporthub/search-provisioner/pkg/env"
)

type ProvisionConfig struct {
	CollectionPrefix      string
	CollectionDescription string
	// AccessPrincipalARN is the platform role granted index/document CRUD on
	// every provisioned collection.
	AccessPrincipalARN string
	PollInterval       time.Duration
	PollMaxAttempts    int
}

func NewProvisionConfig() *ProvisionConfig {
	interval, err := strconv.Atoi(env.GetEnv("SEARCH_POLL_INTERVAL_SECONDS", "30"))
	if err != nil {
		interval = 30
	}
	attempts, err := strconv.Atoi(env.GetEnv("SEARCH_POLL_MAX_ATTEMPTS", "60"))
	if err != nil {
		attempts = 60
	}
	return &ProvisionConfig{
		CollectionPrefix:      env.GetEnv("SEARCH_COLLECTION_PREFIX", "tenant-"),
		CollectionDescription: env.GetEnv("SEARCH_COLLECTION_DESCRIPTION", "Per-tenant search collection"),
		AccessPrincipalARN:    env.GetEnv("SEARCH_ACCESS_PRINCIPAL_ARN", ""),
		PollInterval:          time.Duration(interval) * time.Second,
		PollMaxAttempts:       attempts,
	}
}
