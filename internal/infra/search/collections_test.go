package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"
	"github.com/getsupporthub/search-provisioner/internal/application/errs"
	"github.com/getsupporthub/search-provisioner/internal/infra/config"
	"github.com/getsupporthub/search-provisioner/internal/infra/search"
	"github.com/stretchr/testify/require"
)

type pollResult struct {
	status ostypes.CollectionStatus
	err    error
}

type stubCollectionsAPI struct {
	securityPolicies []*opensearchserverless.CreateSecurityPolicyInput
	collections      []*opensearchserverless.CreateCollectionInput
	accessPolicies   []*opensearchserverless.CreateAccessPolicyInput

	securityErr   error
	collectionErr error
	accessErr     error

	polls     []pollResult
	pollCount int
	arn       string
	endpoint  string
}

func (s *stubCollectionsAPI) CreateSecurityPolicy(ctx context.Context, params *opensearchserverless.CreateSecurityPolicyInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateSecurityPolicyOutput, error) {
	s.securityPolicies = append(s.securityPolicies, params)
	if s.securityErr != nil {
		return nil, s.securityErr
	}
	return &opensearchserverless.CreateSecurityPolicyOutput{}, nil
}

func (s *stubCollectionsAPI) CreateCollection(ctx context.Context, params *opensearchserverless.CreateCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateCollectionOutput, error) {
	s.collections = append(s.collections, params)
	if s.collectionErr != nil {
		return nil, s.collectionErr
	}
	return &opensearchserverless.CreateCollectionOutput{}, nil
}

func (s *stubCollectionsAPI) CreateAccessPolicy(ctx context.Context, params *opensearchserverless.CreateAccessPolicyInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateAccessPolicyOutput, error) {
	s.accessPolicies = append(s.accessPolicies, params)
	if s.accessErr != nil {
		return nil, s.accessErr
	}
	return &opensearchserverless.CreateAccessPolicyOutput{}, nil
}

func (s *stubCollectionsAPI) BatchGetCollection(ctx context.Context, params *opensearchserverless.BatchGetCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.BatchGetCollectionOutput, error) {
	idx := s.pollCount
	if idx >= len(s.polls) {
		idx = len(s.polls) - 1
	}
	s.pollCount++
	result := s.polls[idx]
	if result.err != nil {
		return nil, result.err
	}
	return &opensearchserverless.BatchGetCollectionOutput{
		CollectionDetails: []ostypes.CollectionDetail{
			{
				Name:               aws.String(params.Names[0]),
				Arn:                aws.String(s.arn),
				CollectionEndpoint: aws.String(s.endpoint),
				Status:             result.status,
			},
		},
	}, nil
}

func testConfig() *config.ProvisionConfig {
	return &config.ProvisionConfig{
		CollectionPrefix:      "tenant-",
		CollectionDescription: "Per-tenant search collection",
		AccessPrincipalARN:    "arn:aws:iam::123456789012:role/supporthub-search",
		PollInterval:          time.Millisecond,
		PollMaxAttempts:       3,
	}
}

const testTenantID = "11111111-1111-1111-1111-111111111111"

func TestProvisionRunsFullSequenceInOrder(t *testing.T) {
	api := &stubCollectionsAPI{
		polls:    []pollResult{{status: ostypes.CollectionStatusCreating}, {status: ostypes.CollectionStatusActive}},
		arn:      "arn:aws:aoss:us-east-1:123456789012:collection/abc",
		endpoint: "https://abc.us-east-1.aoss.amazonaws.com",
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	collection, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.NoError(t, err)
	require.Equal(t, "tenant-acme-corp", collection.Name)
	require.Equal(t, api.arn, collection.ARN)
	require.Equal(t, api.endpoint, collection.Endpoint)

	require.Len(t, api.securityPolicies, 2)
	require.Equal(t, ostypes.SecurityPolicyTypeEncryption, api.securityPolicies[0].Type)
	require.Equal(t, ostypes.SecurityPolicyTypeNetwork, api.securityPolicies[1].Type)
	require.Contains(t, aws.ToString(api.securityPolicies[0].Policy), "collection/tenant-acme-corp")

	require.Len(t, api.collections, 1)
	require.Equal(t, "tenant-acme-corp", aws.ToString(api.collections[0].Name))
	require.Equal(t, ostypes.CollectionTypeSearch, api.collections[0].Type)
	require.Len(t, api.collections[0].Tags, 2)
	require.Equal(t, testTenantID, aws.ToString(api.collections[0].Tags[0].Value))

	require.Len(t, api.accessPolicies, 1)
	require.Contains(t, aws.ToString(api.accessPolicies[0].Policy), "index/tenant-acme-corp/*")
	require.Contains(t, aws.ToString(api.accessPolicies[0].Policy), "arn:aws:iam::123456789012:role/supporthub-search")

	require.Equal(t, 2, api.pollCount)
}

func TestProvisionTreatsConflictsAsSuccess(t *testing.T) {
	api := &stubCollectionsAPI{
		securityErr:   &ostypes.ConflictException{Message: aws.String("policy already exists")},
		collectionErr: &ostypes.ConflictException{Message: aws.String("collection already exists")},
		accessErr:     &ostypes.ConflictException{Message: aws.String("policy already exists")},
		polls:         []pollResult{{status: ostypes.CollectionStatusActive}},
		arn:           "arn:aws:aoss:us-east-1:123456789012:collection/abc",
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	collection, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.NoError(t, err, "pre-existing resources must not block a retry")
	require.Equal(t, api.arn, collection.ARN)
}

func TestProvisionAbortsOnNonConflictCreateError(t *testing.T) {
	api := &stubCollectionsAPI{
		securityErr: errors.New("access denied"),
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	_, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.Error(t, err)
	require.Empty(t, api.collections, "sequence must stop at the failing step")
	require.Zero(t, api.pollCount)
}

func TestProvisionFailsWhenProviderReportsFailed(t *testing.T) {
	api := &stubCollectionsAPI{
		polls: []pollResult{{status: ostypes.CollectionStatusCreating}, {status: ostypes.CollectionStatusFailed}},
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	_, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.Error(t, err)
	var terminal errs.TerminalError
	require.ErrorAs(t, err, &terminal)
}

func TestProvisionFailsWhenAttemptBudgetExhausted(t *testing.T) {
	api := &stubCollectionsAPI{
		polls: []pollResult{{status: ostypes.CollectionStatusCreating}},
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	_, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.Error(t, err)
	var terminal errs.TerminalError
	require.ErrorAs(t, err, &terminal)
	require.Equal(t, 3, api.pollCount, "poll budget must be respected")
}

func TestProvisionRetriesTransientPollErrors(t *testing.T) {
	api := &stubCollectionsAPI{
		polls: []pollResult{
			{err: errors.New("throttled")},
			{err: errors.New("connection reset")},
			{status: ostypes.CollectionStatusActive},
		},
		arn: "arn:aws:aoss:us-east-1:123456789012:collection/abc",
	}
	provisioner := search.NewCollectionProvisionerWithAPI(api, testConfig())

	collection, err := provisioner.Provision(context.Background(), testTenantID, "acme-corp")
	require.NoError(t, err, "transient poll errors consume attempts, they do not abort")
	require.Equal(t, api.arn, collection.ARN)
	require.Equal(t, 3, api.pollCount)
}
