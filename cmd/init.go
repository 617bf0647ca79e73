package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/getsupporthub/search-provisioner/internal/application/processors"
	"github.com/getsupporthub/search-provisioner/internal/infra/config"
	"github.com/getsupporthub/search-provisioner/internal/infra/db/repo"
	"github.com/getsupporthub/search-provisioner/internal/infra/search"
	"github.com/getsupporthub/search-provisioner/internal/presentation/queue"
	dbs "github.com/getsupporthub/search-provisioner/pkg/db"
	"github.com/getsupporthub/search-provisioner/pkg/env"
)

func Init() {
	// DB
	dbConfig := dbs.NewConfig()
	creds := dbs.StaticCredentials{User: dbConfig.User, Password: dbConfig.Password}
	pool, err := dbs.NewPool(context.Background(), dbConfig, creds)
	if err != nil {
		log.Panicf("failed to create pool: %v", err)
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Panicf("failed to connect to db: %v", err)
	}
	uowFactory := dbs.NewUoWFactory(pool)

	// Configs
	provisionConfig := config.NewProvisionConfig()
	queueConfig := queue.NewProvisionEventsConfig()

	// AWS
	cfg, err := awsConfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Panic("can't load aws config", err)
	}

	store := repo.NewTenantStore(uowFactory)
	provisioner := search.NewCollectionProvisioner(cfg, provisionConfig)
	processor := processors.NewProvisionTenantSearch(store, provisioner)

	poller := queue.NewProvisionEventsPoller(sqs.NewFromConfig(cfg), queueConfig, processor)
	go poller.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	fmt.Println("Gracefully shutting down...")
	poller.Stop()

	grace, err := strconv.Atoi(env.GetEnv("SHUTDOWN_GRACE_SECONDS", "30"))
	if err != nil {
		grace = 30
	}
	select {
	case <-poller.Done():
	case <-time.After(time.Duration(grace) * time.Second):
		slog.Warn("grace period elapsed with event still in flight, it will be redelivered")
	}

	fmt.Println("Running cleanup tasks...")
	pool.Close()
	fmt.Println("Worker was successfully shutdown.")
}
