package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// Get implements docstore.Base
func (s *DynamoStore) Get(ctx context.Context, id string) (*docstore.Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyOf(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError("retrieve", id, err)
	}
	if out.Item == nil {
		return nil, docstore.NewHostError("retrieve", id, docstore.ErrNotFound)
	}
	return fromItem(out.Item)
}

// Find implements docstore.Base with a filtered, strongly consistent scan
func (s *DynamoStore) Find(ctx context.Context, field string, value any) ([]*docstore.Document, error) {
	filter := expression.Name(attrBody + "." + field).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var docs []*docstore.Document
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("query", "", err)
		}
		for _, item := range page.Items {
			doc, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Apply implements docstore.Base. Written documents carry their own
// condition; documents only read get a ConditionCheck.
func (s *DynamoStore) Apply(ctx context.Context, cs *docstore.ChangeSet) error {
	items, err := s.transactItems(cs)
	if err != nil {
		return err
	}
	if len(items) > MaxTransactItems {
		return docstore.NewHostError("commit", "", fmt.Errorf("batch touches %d documents, limit is %d", len(items), MaxTransactItems))
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return mapError("commit", "", err)
	}
	return nil
}

func (s *DynamoStore) transactItems(cs *docstore.ChangeSet) ([]types.TransactWriteItem, error) {
	items := make([]types.TransactWriteItem, 0, len(cs.Expect))
	written := make(map[string]bool, len(cs.Writes))

	for _, w := range cs.Writes {
		written[w.ID] = true
		expr, err := conditionFor(cs.Expect[w.ID])
		if err != nil {
			return nil, err
		}

		if w.Doc == nil {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName:                 aws.String(s.table),
					Key:                       keyOf(w.ID),
					ConditionExpression:       expr.Condition(),
					ExpressionAttributeNames:  expr.Names(),
					ExpressionAttributeValues: expr.Values(),
				},
			})
			continue
		}

		item, err := toItem(w.Doc)
		if err != nil {
			return nil, err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(s.table),
				Item:                      item,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	readOnly := make([]string, 0, len(cs.Expect))
	for id := range cs.Expect {
		if !written[id] {
			readOnly = append(readOnly, id)
		}
	}
	sort.Strings(readOnly)

	for _, id := range readOnly {
		expr, err := conditionFor(cs.Expect[id])
		if err != nil {
			return nil, err
		}
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:                 aws.String(s.table),
				Key:                       keyOf(id),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}
	return items, nil
}

// conditionFor asserts the committed etag; "" asserts absence.
func conditionFor(etag string) (expression.Expression, error) {
	var cond expression.ConditionBuilder
	if etag == "" {
		cond = expression.Name(attrID).AttributeNotExists()
	} else {
		cond = expression.Name(attrETag).Equal(expression.Value(etag))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build expression: %w", err)
	}
	return expr, nil
}

// mapError converts SDK errors into docstore.HostError
func mapError(op, docID string, err error) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			code := aws.ToString(reason.Code)
			switch code {
			case "ConditionalCheckFailed":
				return &docstore.HostError{Op: op, DocID: docID, Code: code, Cause: fmt.Errorf("%w: %v", docstore.ErrPreconditionFailed, err)}
			case "TransactionConflict", "ThrottlingError", "ProvisionedThroughputExceeded":
				return &docstore.HostError{Op: op, DocID: docID, Code: code, Cause: fmt.Errorf("%w: %v", docstore.ErrNotAccepted, err)}
			case "ItemCollectionSizeLimitExceeded":
				return &docstore.HostError{Op: op, DocID: docID, Code: code, Cause: fmt.Errorf("%w: %v", docstore.ErrTooLarge, err)}
			case "ValidationError":
				if itemTooLarge(aws.ToString(reason.Message)) {
					return &docstore.HostError{Op: op, DocID: docID, Code: code, Cause: fmt.Errorf("%w: %v", docstore.ErrTooLarge, err)}
				}
			}
		}
		return &docstore.HostError{Op: op, DocID: docID, Code: "TransactionCanceled", Cause: err}
	}

	var inProgress *types.TransactionInProgressException
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	if errors.As(err, &inProgress) || errors.As(err, &throughput) || errors.As(err, &limit) {
		return &docstore.HostError{Op: op, DocID: docID, Code: docstore.CodeNotAccepted, Cause: fmt.Errorf("%w: %v", docstore.ErrNotAccepted, err)}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" && itemTooLarge(apiErr.ErrorMessage()) {
		return &docstore.HostError{Op: op, DocID: docID, Code: apiErr.ErrorCode(), Cause: fmt.Errorf("%w: %v", docstore.ErrTooLarge, err)}
	}
	return docstore.NewHostError(op, docID, err)
}

// itemTooLarge recognises the item size variants of a validation failure
func itemTooLarge(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "item size") && strings.Contains(msg, "exceeded")
}
