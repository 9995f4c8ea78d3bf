package dynamostore

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// Item attribute names
const (
	attrID        = "docid"
	attrPartition = "partition"
	attrETag      = "etag"
	attrBody      = "body"
)

// documentItem is the stored layout. The body is kept as a native map so
// scans can filter on its fields.
type documentItem struct {
	ID        string         `dynamodbav:"docid"`
	Partition string         `dynamodbav:"partition"`
	ETag      string         `dynamodbav:"etag"`
	Body      map[string]any `dynamodbav:"body"`
}

func toItem(doc *docstore.Document) (map[string]types.AttributeValue, error) {
	var body map[string]any
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return nil, fmt.Errorf("document %s body is not a JSON object: %w", doc.ID, err)
	}
	item, err := attributevalue.MarshalMap(documentItem{
		ID:        doc.ID,
		Partition: doc.PartitionKey,
		ETag:      doc.ETag,
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (*docstore.Document, error) {
	var di documentItem
	if err := attributevalue.UnmarshalMap(item, &di); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	body, err := json.Marshal(di.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body of %s: %w", di.ID, err)
	}
	return &docstore.Document{
		ID:           di.ID,
		PartitionKey: di.Partition,
		ETag:         di.ETag,
		Body:         body,
	}, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}
