package queue_test

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/getsupporthub/search-provisioner/internal/application/events"
	"github.com/getsupporthub/search-provisioner/internal/presentation/queue"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

type chanHandler struct {
	mu      sync.Mutex
	handled []events.TenantSearchProvisionRequested
	got     chan struct{}
}

func (h *chanHandler) Handle(ctx context.Context, event events.TenantSearchProvisionRequested) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	h.got <- struct{}{}
	return nil
}

func TestPollerConsumesFromLocalstackQueue(t *testing.T) {
	ctx := context.Background()

	ls, err := localstack.Run(ctx,
		"localstack/localstack:1.4.0",
		testcontainers.WithEnv(map[string]string{"SERVICES": "sqs"}),
	)
	require.NoError(t, err, "failed to start localstack")
	defer func() {
		if err := ls.Terminate(ctx); err != nil {
			log.Printf("failed to terminate localstack: %s", err)
		}
	}()

	mappedPort, err := ls.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)
	provider, err := testcontainers.NewDockerProvider()
	require.NoError(t, err)
	defer provider.Close()
	host, err := provider.DaemonHost(ctx)
	require.NoError(t, err)

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ENDPOINT_URL", "http://"+host+":"+mappedPort.Port())

	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	require.NoError(t, err)
	client := sqs.NewFromConfig(cfg)

	created, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String("tenant-provision-events")})
	require.NoError(t, err)
	queueURL := aws.ToString(created.QueueUrl)

	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(`{"tenant_id":"11111111-1111-1111-1111-111111111111","tenant_slug":"acme-corp","timestamp":"2025-01-01T00:00:00Z"}`),
	})
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(`{"tenant_id":"garbage"}`),
	})
	require.NoError(t, err)

	handler := &chanHandler{got: make(chan struct{}, 2)}
	poller := queue.NewProvisionEventsPoller(client, queue.ProvisionEventsConfig{
		SqsURL:            queueURL,
		WaitSeconds:       1,
		VisibilitySeconds: 30,
		ReceiveBackoff:    time.Second,
	}, handler)
	go poller.Start()

	select {
	case <-handler.got:
	case <-time.After(30 * time.Second):
		t.Fatal("valid event was not handled in time")
	}

	// both messages must leave the queue: the valid one acknowledged after
	// handling, the malformed one discarded without ever reaching the handler
	require.Eventually(t, func() bool {
		attrs, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl: aws.String(queueURL),
			AttributeNames: []sqstypes.QueueAttributeName{
				sqstypes.QueueAttributeNameApproximateNumberOfMessages,
				sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			},
		})
		if err != nil {
			return false
		}
		return attrs.Attributes["ApproximateNumberOfMessages"] == "0" &&
			attrs.Attributes["ApproximateNumberOfMessagesNotVisible"] == "0"
	}, 30*time.Second, time.Second)

	poller.Stop()
	select {
	case <-poller.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("poller did not stop in time")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.handled, 1)
	require.Equal(t, "acme-corp", handler.handled[0].TenantSlug)
}
