// Package dynamostore is a DynamoDB document host. Batches stage their writes
// in a docstore.Overlay and commit them with one TransactWriteItems call whose
// condition checks cover every document the batch touched.
package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

const (
	// MaxTransactItems is the DynamoDB limit on items per TransactWriteItems call
	MaxTransactItems = 100

	// MaxItemBytes is the DynamoDB item size limit
	MaxItemBytes = 400 << 10

	// DefaultMaxDocumentBytes is the largest body that still fits in an
	// item next to its key and etag attributes. It is also the upper bound
	// New accepts.
	DefaultMaxDocumentBytes = MaxItemBytes - 4<<10
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Options configures NewDynamoStore
type Options struct {
	Table            string
	Region           string
	Endpoint         string // e.g. http://localhost:8000 for DynamoDB Local
	MaxDocumentBytes int
}

// DynamoStore keeps one document per item in a table keyed by "docid"
type DynamoStore struct {
	client           API
	table            string
	maxDocumentBytes int
}

// NewDynamoStore builds a client from the default AWS configuration chain.
// A non-empty Endpoint switches to static local credentials.
func NewDynamoStore(ctx context.Context, opts Options) (*DynamoStore, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return New(client, opts.Table, opts.MaxDocumentBytes), nil
}

// New wraps an existing client. maxDocumentBytes is clamped to
// DefaultMaxDocumentBytes.
func New(client API, table string, maxDocumentBytes int) *DynamoStore {
	if maxDocumentBytes <= 0 || maxDocumentBytes > DefaultMaxDocumentBytes {
		maxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &DynamoStore{client: client, table: table, maxDocumentBytes: maxDocumentBytes}
}

// Begin implements docstore.Store
func (s *DynamoStore) Begin(ctx context.Context) (docstore.Tx, error) {
	return docstore.NewOverlay(s, s.maxDocumentBytes), nil
}

// Close implements docstore.Store
func (s *DynamoStore) Close() error {
	return nil
}

var (
	_ docstore.Store = (*DynamoStore)(nil)
	_ docstore.Base  = (*DynamoStore)(nil)
)
