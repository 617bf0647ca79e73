package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/getsupporthub/search-provisioner/internal/application/events"
	"github.com/getsupporthub/search-provisioner/internal/application/interfaces"
	"github.com/getsupporthub/search-provisioner/pkg/env"
)

// SQSAPI is the slice of the SQS client the poller uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type ProvisionEventsPoller struct {
	client  SQSAPI
	cfg     ProvisionEventsConfig
	handler interfaces.ProvisionHandler
	stop    chan struct{}
	done    chan struct{}
}

type ProvisionEventsConfig struct {
	SqsURL string
	// WaitSeconds is the long-poll window, VisibilitySeconds must exceed a
	// full provisioning run including status polling.
	WaitSeconds       int32
	VisibilitySeconds int32
	ReceiveBackoff    time.Duration
}

func NewProvisionEventsConfig() ProvisionEventsConfig {
	wait, err := strconv.Atoi(env.GetEnv("PROVISION_SQS_WAIT_SECONDS", "20"))
	if err != nil {
		wait = 20
	}
	visibility, err := strconv.Atoi(env.GetEnv("PROVISION_SQS_VISIBILITY_SECONDS", "2100"))
	if err != nil {
		visibility = 2100
	}
	backoff, err := strconv.Atoi(env.GetEnv("PROVISION_SQS_RECEIVE_BACKOFF_SECONDS", "5"))
	if err != nil {
		backoff = 5
	}
	return ProvisionEventsConfig{
		SqsURL:            env.GetEnv("PROVISION_SQS_URL", ""),
		WaitSeconds:       int32(wait),
		VisibilitySeconds: int32(visibility),
		ReceiveBackoff:    time.Duration(backoff) * time.Second,
	}
}

func NewProvisionEventsPoller(client SQSAPI, cfg ProvisionEventsConfig, handler interfaces.ProvisionHandler) *ProvisionEventsPoller {
	return &ProvisionEventsPoller{
		client:  client,
		cfg:     cfg,
		handler: handler,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start consumes one message at a time until Stop is called. Batch size is
// pinned to 1 so a slow provisioning run never blocks acknowledgment of
// unrelated tenants.
func (p *ProvisionEventsPoller) Start() {
	slog.Info("Starting poll of ProvisionEventsPoller...")
	ctx := context.Background()
	defer close(p.done)

	for {
		select {
		case <-p.stop:
			slog.Info("Stopping ProvisionEventsPoller loop")
			return
		default:
			out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(p.cfg.SqsURL),
				MaxNumberOfMessages: 1,
				WaitTimeSeconds:     p.cfg.WaitSeconds,
				VisibilityTimeout:   p.cfg.VisibilitySeconds,
			})
			if err != nil {
				slog.Error("err receiving from queue", "err", err)
				time.Sleep(p.cfg.ReceiveBackoff)
				continue
			}
			if len(out.Messages) == 0 {
				continue
			}

			msg := out.Messages[0]
			p.processMessage(ctx, aws.ToString(msg.Body), msg.ReceiptHandle, aws.ToString(msg.MessageId))
		}
	}
}

func (p *ProvisionEventsPoller) processMessage(ctx context.Context, body string, receiptHandle *string, messageID string) {
	var event events.TenantSearchProvisionRequested
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		// malformed payloads can't be repaired by redelivery, drop them
		slog.Warn("discarding unparseable event", "id", messageID, "err", err)
		p.deleteMessage(ctx, receiptHandle, messageID)
		return
	}
	if err := event.Validate(); err != nil {
		slog.Warn("discarding malformed event", "id", messageID, "err", err)
		p.deleteMessage(ctx, receiptHandle, messageID)
		return
	}

	if issued, err := time.Parse(time.RFC3339, event.Timestamp); err == nil {
		slog.Debug("event received", "type", event.GetType(), "id", messageID, "tenant", event.TenantID, "age", time.Since(issued))
	}

	if err := p.handler.Handle(ctx, event); err != nil {
		// no delete: the event becomes visible again after the visibility
		// window and the idempotent handler retries from scratch
		slog.Error("err handling event, leaving for redelivery", "id", messageID, "tenant", event.TenantID, "err", err)
		return
	}

	p.deleteMessage(ctx, receiptHandle, messageID)
}

func (p *ProvisionEventsPoller) deleteMessage(ctx context.Context, receiptHandle *string, messageID string) {
	_, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.cfg.SqsURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		slog.Error("err deleting message", "id", messageID, "err", err)
	}
}

// Stop requests shutdown, the loop exits after the in-flight message
// finishes. Done reports when that happened.
func (p *ProvisionEventsPoller) Stop() {
	slog.Info("Stopping poller")
	close(p.stop)
}

func (p *ProvisionEventsPoller) Done() <-chan struct{} {
	return p.done
}
