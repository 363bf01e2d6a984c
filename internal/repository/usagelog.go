package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"subtrack-assistant/internal/domain"
)

const (
	pkPrefixUsage = "USAGE#"
	skPrefixReq   = "REQ#"
	ttlDuration   = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// UsageWriter defines the audit operation consumed by the handler.
type UsageWriter interface {
	PutUsageRecord(ctx context.Context, rec domain.UsageRecord) error
}

// Client wraps a DynamoDB table for per-request usage audit records.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new audit-log Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// usagePK buckets records by UTC day so old partitions age out evenly.
func usagePK(at time.Time) string {
	return pkPrefixUsage + at.UTC().Format("2006-01-02")
}

func usageSK(at time.Time, requestID string) string {
	return skPrefixReq + at.UTC().Format(time.RFC3339Nano) + "#" + requestID
}

// ttlValue returns a Unix timestamp 30 days after the record timestamp.
func ttlValue(at time.Time) int64 {
	return at.Add(ttlDuration).Unix()
}

// PutUsageRecord writes one audit record. Callers treat failures as
// best-effort: a lost record never fails the mediated request.
func (c *Client) PutUsageRecord(ctx context.Context, rec domain.UsageRecord) error {
	if strings.TrimSpace(rec.RequestID) == "" {
		return errors.New("repository: PutUsageRecord: request id is required")
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":           &types.AttributeValueMemberS{Value: usagePK(at)},
			"SK":           &types.AttributeValueMemberS{Value: usageSK(at, rec.RequestID)},
			"requestId":    &types.AttributeValueMemberS{Value: rec.RequestID},
			"task":         &types.AttributeValueMemberS{Value: rec.Task},
			"outcome":      &types.AttributeValueMemberS{Value: rec.Outcome},
			"inputTokens":  &types.AttributeValueMemberN{Value: strconv.Itoa(rec.InputTokens)},
			"outputTokens": &types.AttributeValueMemberN{Value: strconv.Itoa(rec.OutputTokens)},
			"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(at), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutUsageRecord: %w", err)
	}
	return nil
}
