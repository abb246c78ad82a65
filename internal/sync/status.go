package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// claimTTL bounds how long a crashed run can block the next one.
const claimTTL = 15 * time.Minute

// StatusItem is the per-shop, per-type last-sync marker. LastSyncAt means
// "a best-effort sync completed then", not "everything succeeded".
type StatusItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LastSyncAt string `dynamodbav:"LastSyncAt"`
	Total      int    `dynamodbav:"Total"`
	Fetched    int    `dynamodbav:"Fetched"`
	Failed     int    `dynamodbav:"Failed"`
	APICalls   int    `dynamodbav:"APICalls"`
}

// StatusStore owns SyncStatus rows and the single-flight run claim.
type StatusStore struct {
	DDB   DynamoAPI
	Table string
}

func statusSK(syncType, userSub string) string {
	if strings.TrimSpace(userSub) == "" {
		return fmt.Sprintf("SYNC#%s", syncType)
	}
	return fmt.Sprintf("SYNC#%s#USER#%s", syncType, userSub)
}

// Claim takes the shop+type run claim with a conditional put, so two
// triggers racing from different replicas cannot both start. Returns
// ErrSyncInProgress when another live run holds it, and a release func
// that only deletes the claim this run created.
func (s *StatusStore) Claim(ctx context.Context, shopID int64, syncType string) (func(), error) {
	runID := uuid.NewString()
	now := time.Now().UTC()

	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CLAIM#%s", syncType)},
	}

	_, err := s.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item: map[string]types.AttributeValue{
			"PK":        key["PK"],
			"SK":        key["SK"],
			"RunID":     &types.AttributeValueMemberS{Value: runID},
			"StartedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(claimTTL).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("claim sync run: %w", err)
	}

	release := func() {
		_, err := s.DDB.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
			TableName:           aws.String(s.Table),
			Key:                 key,
			ConditionExpression: aws.String("RunID = :rid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid": &types.AttributeValueMemberS{Value: runID},
			},
		})
		if err != nil {
			fmt.Printf("sync: release claim shop=%d type=%s: %v\n", shopID, syncType, err)
		}
	}
	return release, nil
}

// LastSyncAt reads the last successful run time, zero time when the shop
// has never synced.
func (s *StatusStore) LastSyncAt(ctx context.Context, shopID int64, syncType, userSub string) (time.Time, error) {
	out, err := s.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
			"SK": &types.AttributeValueMemberS{Value: statusSK(syncType, userSub)},
		},
	})
	if err != nil {
		return time.Time{}, err
	}
	if out.Item == nil {
		return time.Time{}, nil
	}
	var item StatusItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return time.Time{}, err
	}
	if item.LastSyncAt == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, item.LastSyncAt)
}

// MarkSynced writes the status row for a completed run. Written even when
// individual records or batches failed; a run only skips this by aborting.
func (s *StatusStore) MarkSynced(ctx context.Context, shopID int64, syncType, userSub string, at time.Time, res Result) error {
	item, err := attributevalue.MarshalMap(StatusItem{
		PK:         fmt.Sprintf("SHOP#%d", shopID),
		SK:         statusSK(syncType, userSub),
		LastSyncAt: at.UTC().Format(time.RFC3339),
		Total:      res.Total,
		Fetched:    res.Fetched,
		Failed:     res.Failed,
		APICalls:   res.APICalls,
	})
	if err != nil {
		return err
	}
	_, err = s.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	})
	return err
}
