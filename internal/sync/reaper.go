package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Reaper removes rows a fresh exhaustive fetch no longer returned. Rows
// written by the current run carry a SyncedAt at or after the run start,
// so anything older was not touched and is stale. Callers must only
// invoke it after an exhaustive fetch; deleting on a partial fetch would
// drop rows the run simply never reached.
type Reaper struct {
	DDB   DynamoAPI
	Table string
}

// ReapStale deletes the shop's rows whose SyncedAt (epoch millis) is
// older than syncStartedAt. Returns the number of rows removed.
func (r *Reaper) ReapStale(ctx context.Context, shopID int64, syncStartedAt time.Time) (int, error) {
	startMillis := strconv.FormatInt(syncStartedAt.UnixMilli(), 10)

	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.Table),
		KeyConditionExpression: aws.String("PK = :pk"),
		FilterExpression:       aws.String("SyncedAt < :start"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
			":start": &types.AttributeValueMemberN{Value: startMillis},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	var stale []map[string]types.AttributeValue
	for {
		out, err := r.DDB.Query(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("query stale rows: %w", err)
		}
		stale = append(stale, out.Items...)
		if out.LastEvaluatedKey == nil || len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	removed := 0
	for start := 0; start < len(stale); start += maxBatchWriteItems {
		end := start + maxBatchWriteItems
		if end > len(stale) {
			end = len(stale)
		}
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, key := range stale[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}
		out, err := r.DDB.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.Table: reqs},
		})
		if err != nil {
			fmt.Printf("sync: reap batch [%d:%d] failed: %v\n", start, end, err)
			continue
		}
		removed += end - start
		if out != nil {
			removed -= len(out.UnprocessedItems[r.Table])
		}
	}
	return removed, nil
}
