package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/docstore/docstoretest"
)

// fakeDynamo is a single-table DynamoDB double. It understands exactly the
// condition and filter expressions this package builds.
type fakeDynamo struct {
	mu           sync.Mutex
	items        map[string]map[string]types.AttributeValue
	transactions int
	failWith     error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyString(key map[string]types.AttributeValue) string {
	return key[attrID].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyString(in.Key)]}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var field string
	for _, name := range in.ExpressionAttributeNames {
		if name != attrBody {
			field = name
		}
	}
	var want any
	for _, v := range in.ExpressionAttributeValues {
		if err := attributevalue.Unmarshal(v, &want); err != nil {
			return nil, err
		}
	}

	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		body, ok := item[attrBody].(*types.AttributeValueMemberM)
		if !ok {
			continue
		}
		attr, ok := body.Value[field]
		if !ok {
			continue
		}
		var got any
		if err := attributevalue.Unmarshal(attr, &got); err != nil {
			return nil, err
		}
		if reflect.DeepEqual(got, want) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

// holds evaluates "attribute_not_exists(docid)" (no values) or "etag = :v"
func (f *fakeDynamo) holds(id string, values map[string]types.AttributeValue) bool {
	cur, exists := f.items[id]
	if len(values) == 0 {
		return !exists
	}
	if !exists {
		return false
	}
	for _, v := range values {
		return cur[attrETag].(*types.AttributeValueMemberS).Value == v.(*types.AttributeValueMemberS).Value
	}
	return false
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions++
	if f.failWith != nil {
		return nil, f.failWith
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		var ok bool
		switch {
		case ti.Put != nil:
			ok = f.holds(keyString(ti.Put.Item), ti.Put.ExpressionAttributeValues)
		case ti.Delete != nil:
			ok = f.holds(keyString(ti.Delete.Key), ti.Delete.ExpressionAttributeValues)
		case ti.ConditionCheck != nil:
			ok = f.holds(keyString(ti.ConditionCheck.Key), ti.ConditionCheck.ExpressionAttributeValues)
		}
		reasons[i].Code = aws.String("None")
		if !ok {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[keyString(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, keyString(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func TestDynamoStoreConformance(t *testing.T) {
	docstoretest.Conformance(t, func(t *testing.T, limit int) docstore.Store {
		return New(newFakeDynamo(), "docs", limit)
	})
}

func TestItemRoundTrip(t *testing.T) {
	doc := &docstore.Document{
		ID:           "d1",
		PartitionKey: "v1",
		ETag:         "e1",
		Body:         []byte(`{"_edge":[],"_isReverse":true,"_vertexId":"v1","n":2}`),
	}
	item, err := toItem(doc)
	if err != nil {
		t.Fatalf("toItem: %v", err)
	}
	if _, ok := item[attrBody].(*types.AttributeValueMemberM); !ok {
		t.Fatalf("body stored as %T, want a map", item[attrBody])
	}

	back, err := fromItem(item)
	if err != nil {
		t.Fatalf("fromItem: %v", err)
	}
	if !reflect.DeepEqual(back, doc) {
		t.Errorf("round trip = %+v (body %s)", back, back.Body)
	}

	if _, err := toItem(&docstore.Document{ID: "x", Body: []byte(`[1]`)}); err == nil {
		t.Error("expected an error for a non-object body")
	}
}

func TestTransactItemsCoverReadOnlyDocuments(t *testing.T) {
	s := New(newFakeDynamo(), "docs", 0)
	cs := &docstore.ChangeSet{
		Expect: map[string]string{"w": "e1", "gone": "e2", "read-b": "e3", "read-a": ""},
		Writes: []docstore.Write{
			{ID: "w", Doc: &docstore.Document{ID: "w", ETag: "e9", Body: []byte(`{}`)}},
			{ID: "gone"},
		},
	}

	items, err := s.transactItems(cs)
	if err != nil {
		t.Fatalf("transactItems: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}
	if items[0].Put == nil || items[1].Delete == nil {
		t.Fatalf("writes not first in order: %+v", items[:2])
	}
	for i, id := range []string{"read-a", "read-b"} {
		cc := items[2+i].ConditionCheck
		if cc == nil || keyString(cc.Key) != id {
			t.Errorf("item %d = %+v, want condition check on %s", 2+i, items[2+i], id)
		}
	}
	if len(items[2].ConditionCheck.ExpressionAttributeValues) != 0 {
		t.Error("absent document should be asserted with attribute_not_exists")
	}
	if aws.ToString(items[0].Put.TableName) != "docs" {
		t.Errorf("table = %s", aws.ToString(items[0].Put.TableName))
	}
}

func TestApplyRejectsOversizedTransactions(t *testing.T) {
	fake := newFakeDynamo()
	s := New(fake, "docs", 0)
	cs := &docstore.ChangeSet{Expect: map[string]string{}}
	for i := 0; i <= MaxTransactItems; i++ {
		id := fmt.Sprintf("d%03d", i)
		cs.Expect[id] = ""
		cs.Writes = append(cs.Writes, docstore.Write{ID: id, Doc: &docstore.Document{ID: id, Body: []byte(`{}`)}})
	}

	if err := s.Apply(context.Background(), cs); err == nil {
		t.Fatal("expected an error above the transaction item limit")
	}
	if fake.transactions != 0 {
		t.Error("oversized transaction was sent")
	}
}

func TestMapError(t *testing.T) {
	cancelled := func(codes ...string) error {
		reasons := make([]types.CancellationReason, len(codes))
		for i, c := range codes {
			reasons[i].Code = aws.String(c)
		}
		return &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	tests := []struct {
		name string
		err  error
		is   error
		code string
	}{
		{"condition", cancelled("None", "ConditionalCheckFailed"), docstore.ErrPreconditionFailed, "ConditionalCheckFailed"},
		{"conflict", cancelled("TransactionConflict"), docstore.ErrNotAccepted, "TransactionConflict"},
		{"throttled", cancelled("ThrottlingError"), docstore.ErrNotAccepted, "ThrottlingError"},
		{"collection size", cancelled("ItemCollectionSizeLimitExceeded"), docstore.ErrTooLarge, "ItemCollectionSizeLimitExceeded"},
		{"throughput", &types.ProvisionedThroughputExceededException{}, docstore.ErrNotAccepted, docstore.CodeNotAccepted},
		{"in progress", &types.TransactionInProgressException{}, docstore.ErrNotAccepted, docstore.CodeNotAccepted},
		{
			"item too large",
			&smithy.GenericAPIError{Code: "ValidationException", Message: "Item size has exceeded the maximum allowed size"},
			docstore.ErrTooLarge, "ValidationException",
		},
		{
			"transacted item too large",
			&types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: aws.String("ValidationError"), Message: aws.String("Item size to update has exceeded the maximum allowed size")},
			}},
			docstore.ErrTooLarge, "ValidationError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("commit", "", tt.err)
			if !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
			if got := docstore.CodeOf(err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}

	malformed := mapError("commit", "", &smithy.GenericAPIError{Code: "ValidationException", Message: "One or more parameter values were invalid"})
	if errors.Is(malformed, docstore.ErrTooLarge) {
		t.Errorf("a malformed request is not a size failure: %v", malformed)
	}

	other := mapError("retrieve", "d1", errors.New("network down"))
	if docstore.CodeOf(other) != "500" {
		t.Errorf("unknown error code = %s", docstore.CodeOf(other))
	}
}

func TestDocumentLimitFitsInAnItem(t *testing.T) {
	for _, requested := range []int{0, -1, 2 << 20, MaxItemBytes} {
		if got := New(newFakeDynamo(), "docs", requested).maxDocumentBytes; got != DefaultMaxDocumentBytes {
			t.Errorf("New(%d) limit = %d, want %d", requested, got, DefaultMaxDocumentBytes)
		}
	}
	if got := New(newFakeDynamo(), "docs", 1024).maxDocumentBytes; got != 1024 {
		t.Errorf("a smaller limit should be kept, got %d", got)
	}

	ctx := context.Background()
	s := New(newFakeDynamo(), "docs", 0)
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`"` + strings.Repeat("x", DefaultMaxDocumentBytes) + `"`)
	_, err = tx.Create(ctx, &docstore.Document{ID: "big", Body: body}, false)
	if !errors.Is(err, docstore.ErrTooLarge) {
		t.Fatalf("oversized body should be rejected while staging, got %v", err)
	}
	_ = tx.Rollback(ctx)
}

func TestCommitSurfacesThrottling(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.failWith = &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	s := New(fake, "docs", 0)

	tx, _ := s.Begin(ctx)
	if _, err := tx.Create(ctx, &docstore.Document{ID: "a", Body: []byte(`{}`)}, false); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, docstore.ErrNotAccepted) {
		t.Fatalf("Commit err = %v, want ErrNotAccepted", err)
	}
}

func TestNewDynamoStoreRequiresTable(t *testing.T) {
	if _, err := NewDynamoStore(context.Background(), Options{}); err == nil {
		t.Fatal("expected an error without a table name")
	}
}
