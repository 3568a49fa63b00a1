package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/storefront/internal/abandoned"
	"github.com/example/storefront/internal/cart"
)

// DynamoAbandonedCartStore implements abandoned.Store on DynamoDB, for
// deployments that keep the marketing side channel out of the relational
// database. Selected by ABANDONED_STORE=dynamo.
type DynamoAbandonedCartStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoAbandonedCartStore(client *dynamodb.Client, tableName string) *DynamoAbandonedCartStore {
	return &DynamoAbandonedCartStore{client: client, tableName: tableName}
}

type dynamoAbandonedCart struct {
	ID              string      `dynamodbav:"id"`
	SessionID       string      `dynamodbav:"session_id"`
	UserID          string      `dynamodbav:"user_id,omitempty"`
	Email           string      `dynamodbav:"email,omitempty"`
	Items           []cart.Item `dynamodbav:"items"`
	TotalValue      int         `dynamodbav:"total_value"`
	ItemCount       int         `dynamodbav:"item_count"`
	Converted       bool        `dynamodbav:"converted"`
	CheckoutStarted bool        `dynamodbav:"checkout_started"`
	UserAgent       string      `dynamodbav:"user_agent,omitempty"`
	Referrer        string      `dynamodbav:"referrer,omitempty"`
	UpdatedAt       string      `dynamodbav:"updated_at"`
}

func (s *DynamoAbandonedCartStore) Upsert(ctx context.Context, rec *abandoned.Record) error {
	item, err := attributevalue.MarshalMap(dynamoAbandonedCart{
		ID:              rec.ID,
		SessionID:       rec.SessionID,
		UserID:          rec.UserID,
		Email:           rec.Email,
		Items:           rec.Items,
		TotalValue:      rec.TotalValue,
		ItemCount:       rec.ItemCount,
		Converted:       rec.Converted,
		CheckoutStarted: rec.CheckoutStarted,
		UserAgent:       rec.UserAgent,
		Referrer:        rec.Referrer,
		UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal abandoned cart: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return classifyDynamoErr(err)
}

func (s *DynamoAbandonedCartStore) MarkConverted(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET converted = :c, updated_at = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberBOOL{Value: true},
			":u": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	return classifyDynamoErr(err)
}

func classifyDynamoErr(err error) error {
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", abandoned.ErrTableMissing, err)
	}
	return err
}
