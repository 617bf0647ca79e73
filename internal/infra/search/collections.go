package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"
	"github.com/getsupporthub/search-provisioner/internal/application/consts"
	"github.com/getsupporthub/search-provisioner/internal/application/dto"
	"github.com/getsupporthub/search-provisioner/internal/application/errs"
	appinterfaces "github.com/getsupporthub/search-provisioner/internal/application/interfaces"
	"github.com/getsupporthub/search-provisioner/internal/infra/config"
)

// CollectionsAPI is the slice of the OpenSearch Serverless client the
// provisioner uses, kept as an interface so tests can stub the provider.
type CollectionsAPI interface {
	CreateSecurityPolicy(ctx context.Context, params *opensearchserverless.CreateSecurityPolicyInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateSecurityPolicyOutput, error)
	CreateCollection(ctx context.Context, params *opensearchserverless.CreateCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateCollectionOutput, error)
	CreateAccessPolicy(ctx context.Context, params *opensearchserverless.CreateAccessPolicyInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateAccessPolicyOutput, error)
	BatchGetCollection(ctx context.Context, params *opensearchserverless.BatchGetCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.BatchGetCollectionOutput, error)
}

type CollectionProvisioner struct {
	api CollectionsAPI
	cfg *config.ProvisionConfig
}

var _ appinterfaces.CollectionProvisioner = (*CollectionProvisioner)(nil)

func NewCollectionProvisioner(awsConfig aws.Config, cfg *config.ProvisionConfig) *CollectionProvisioner {
	return &CollectionProvisioner{
		api: opensearchserverless.NewFromConfig(awsConfig),
		cfg: cfg,
	}
}

// NewCollectionProvisionerWithAPI is used by tests to inject a stub provider.
func NewCollectionProvisionerWithAPI(api CollectionsAPI, cfg *config.ProvisionConfig) *CollectionProvisioner {
	return &CollectionProvisioner{api: api, cfg: cfg}
}

// CollectionName derives the deterministic collection name for a slug.
// Determinism is what makes every creation call below idempotent: a replayed
// event always targets the same provider-side resources.
func (c *CollectionProvisioner) CollectionName(tenantSlug string) string {
	return c.cfg.CollectionPrefix + tenantSlug
}

// Provision runs the full creation sequence for one tenant and blocks until
// the collection reports a terminal status. Order matters: the collection
// can't be created before its encryption policy exists, and the data access
// policy is pointless without the collection.
func (c *CollectionProvisioner) Provision(ctx context.Context, tenantID, tenantSlug string) (*dto.ProvisionedCollection, error) {
	name := c.CollectionName(tenantSlug)

	if err := c.createEncryptionPolicy(ctx, name); err != nil {
		return nil, fmt.Errorf("err creating encryption policy for %v, %w", name, err)
	}
	if err := c.createNetworkPolicy(ctx, name); err != nil {
		return nil, fmt.Errorf("err creating network policy for %v, %w", name, err)
	}
	if err := c.createCollection(ctx, name, tenantID, tenantSlug); err != nil {
		return nil, fmt.Errorf("err creating collection %v, %w", name, err)
	}
	if err := c.createDataAccessPolicy(ctx, name); err != nil {
		return nil, fmt.Errorf("err creating data access policy for %v, %w", name, err)
	}

	return c.waitForActive(ctx, name)
}

func (c *CollectionProvisioner) createEncryptionPolicy(ctx context.Context, name string) error {
	policy := fmt.Sprintf(`{"Rules":[{"ResourceType":"collection","Resource":["collection/%s"]}],"AWSOwnedKey":true}`, name)
	_, err := c.api.CreateSecurityPolicy(ctx, &opensearchserverless.CreateSecurityPolicyInput{
		Name:        aws.String(name),
		Type:        ostypes.SecurityPolicyTypeEncryption,
		Policy:      aws.String(policy),
		Description: aws.String("Encryption at rest for " + name),
	})
	return ignoreAlreadyExists(err, "encryption policy", name)
}

func (c *CollectionProvisioner) createNetworkPolicy(ctx context.Context, name string) error {
	policy := fmt.Sprintf(`[{"Rules":[{"ResourceType":"collection","Resource":["collection/%s"]}],"AllowFromPublic":true}]`, name)
	_, err := c.api.CreateSecurityPolicy(ctx, &opensearchserverless.CreateSecurityPolicyInput{
		Name:        aws.String(name),
		Type:        ostypes.SecurityPolicyTypeNetwork,
		Policy:      aws.String(policy),
		Description: aws.String("Network access for " + name),
	})
	return ignoreAlreadyExists(err, "network policy", name)
}

func (c *CollectionProvisioner) createCollection(ctx context.Context, name, tenantID, tenantSlug string) error {
	_, err := c.api.CreateCollection(ctx, &opensearchserverless.CreateCollectionInput{
		Name:        aws.String(name),
		Type:        ostypes.CollectionTypeSearch,
		Description: aws.String(c.cfg.CollectionDescription),
		Tags: []ostypes.Tag{
			{Key: aws.String("tenant-id"), Value: aws.String(tenantID)},
			{Key: aws.String("tenant-slug"), Value: aws.String(tenantSlug)},
		},
	})
	return ignoreAlreadyExists(err, "collection", name)
}

func (c *CollectionProvisioner) createDataAccessPolicy(ctx context.Context, name string) error {
	policy := fmt.Sprintf(`[{"Rules":[{"ResourceType":"index","Resource":["index/%s/*"],"Permission":["aoss:CreateIndex","aoss:DeleteIndex","aoss:UpdateIndex","aoss:DescribeIndex","aoss:ReadDocument","aoss:WriteDocument"]}],"Principal":["%s"]}]`,
		name, c.cfg.AccessPrincipalARN)
	_, err := c.api.CreateAccessPolicy(ctx, &opensearchserverless.CreateAccessPolicyInput{
		Name:        aws.String(name),
		Type:        ostypes.AccessPolicyTypeData,
		Policy:      aws.String(policy),
		Description: aws.String("Index and document CRUD for " + name),
	})
	return ignoreAlreadyExists(err, "data access policy", name)
}

// waitForActive polls collection status until it turns ACTIVE, turns FAILED,
// or the attempt budget runs out. Transient provider errors consume an
// attempt instead of aborting, redelivery would retry the whole sequence
// anyway and the sequence is idempotent.
func (c *CollectionProvisioner) waitForActive(ctx context.Context, name string) (*dto.ProvisionedCollection, error) {
	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		out, err := c.api.BatchGetCollection(ctx, &opensearchserverless.BatchGetCollectionInput{
			Names: []string{name},
		})
		if err != nil {
			slog.Warn("transient err polling collection status", "collection", name, "attempt", attempt, "err", err)
		} else if len(out.CollectionDetails) > 0 {
			detail := out.CollectionDetails[0]
			switch detail.Status {
			case ostypes.CollectionStatusActive:
				return &dto.ProvisionedCollection{
					Name:     name,
					ARN:      aws.ToString(detail.Arn),
					Endpoint: aws.ToString(detail.CollectionEndpoint),
					Status:   consts.CollectionActive,
				}, nil
			case ostypes.CollectionStatusFailed:
				return nil, errs.TerminalError{Err: fmt.Errorf("collection %v reported failed status", name)}
			default:
				slog.Debug("collection not active yet", "collection", name, "status", detail.Status, "attempt", attempt)
			}
		}

		if attempt == c.cfg.PollMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}

	return nil, errs.TerminalError{Err: fmt.Errorf("collection %v did not become active within %d attempts", name, c.cfg.PollMaxAttempts)}
}

// ignoreAlreadyExists treats a conflict as success: resource names are
// deterministic, so a pre-existing policy or collection is the leftover of an
// earlier attempt at the same work. The existing document is not compared
// against the current template, the warning below is the audit trail for
// that.
func ignoreAlreadyExists(err error, kind, name string) error {
	if err == nil {
		return nil
	}
	var conflict *ostypes.ConflictException
	if errors.As(err, &conflict) {
		slog.Warn("resource already exists, continuing", "kind", kind, "name", name)
		return nil
	}
	return err
}
