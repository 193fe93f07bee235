package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	dynamosvc "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the ledger table. These match the deployed table
// schema and must not be renamed without a data migration.
const (
	attrRoleID = "RoleId"
	attrAction = "Action"
	attrTTL    = "TTL"
)

// DynamoAPIClient is the narrow DynamoDB interface used by DynamoStore.
type DynamoAPIClient interface {
	GetItem(ctx context.Context, params *dynamosvc.GetItemInput, optFns ...func(*dynamosvc.Options)) (*dynamosvc.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamosvc.PutItemInput, optFns ...func(*dynamosvc.Options)) (*dynamosvc.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamosvc.UpdateItemInput, optFns ...func(*dynamosvc.Options)) (*dynamosvc.UpdateItemOutput, error)
}

// DynamoStore is the production Store, backed by a DynamoDB table with
// partition key RoleId, sort key Action, and a numeric TTL attribute wired
// to the table's time-to-live setting.
type DynamoStore struct {
	client DynamoAPIClient
	table  string
}

// NewDynamoStore constructs a DynamoStore over the named table.
func NewDynamoStore(client DynamoAPIClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, roleID, actionKey string) (*Entry, error) {
	out, err := s.client.GetItem(ctx, &dynamosvc.GetItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(roleID, actionKey),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger get (%s, %s): %w", roleID, actionKey, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	entry := &Entry{RoleID: roleID, ActionKey: actionKey}
	if ttl, ok := out.Item[attrTTL].(*dynamotypes.AttributeValueMemberN); ok {
		parsed, err := strconv.ParseInt(ttl.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger entry (%s, %s) has malformed TTL %q: %w", roleID, actionKey, ttl.Value, err)
		}
		entry.ExpiresAt = parsed
	}
	return entry, nil
}

// Put implements Store.
func (s *DynamoStore) Put(ctx context.Context, entry Entry) error {
	_, err := s.client.PutItem(ctx, &dynamosvc.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]dynamotypes.AttributeValue{
			attrRoleID: &dynamotypes.AttributeValueMemberS{Value: entry.RoleID},
			attrAction: &dynamotypes.AttributeValueMemberS{Value: entry.ActionKey},
			attrTTL:    &dynamotypes.AttributeValueMemberN{Value: strconv.FormatInt(entry.ExpiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("ledger put (%s, %s): %w", entry.RoleID, entry.ActionKey, err)
	}
	return nil
}

// RefreshTTL implements Store. TTL is a reserved word in update
// expressions, so the attribute name goes through an expression alias.
func (s *DynamoStore) RefreshTTL(ctx context.Context, roleID, actionKey string, expiresAt int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamosvc.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              itemKey(roleID, actionKey),
		UpdateExpression: aws.String("SET #ttl = :ttl"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": attrTTL,
		},
		ExpressionAttributeValues: map[string]dynamotypes.AttributeValue{
			":ttl": &dynamotypes.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("ledger refresh (%s, %s): %w", roleID, actionKey, err)
	}
	return nil
}

func itemKey(roleID, actionKey string) map[string]dynamotypes.AttributeValue {
	return map[string]dynamotypes.AttributeValue{
		attrRoleID: &dynamotypes.AttributeValueMemberS{Value: roleID},
		attrAction: &dynamotypes.AttributeValueMemberS{Value: actionKey},
	}
}
