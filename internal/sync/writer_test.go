package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(n int) []Record {
	recs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("R-%03d", i)
		recs = append(recs, Record{
			Key: key,
			Item: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: "SHOP#1"},
				"SK": &types.AttributeValueMemberS{Value: "ESCROW#" + key},
			},
		})
	}
	return recs
}

// TestUpsert_Chunking: 60 records fit in 3 BatchWriteItem calls.
func TestUpsert_Chunking(t *testing.T) {
	ddb := &fakeDynamo{}
	w := &Writer{DDB: ddb, Table: "escrow"}

	written, failed := w.Upsert(context.Background(), testRecords(60))
	assert.Len(t, written, 60)
	assert.Zero(t, failed)
	require.Len(t, ddb.batchWrites, 3)
	assert.Len(t, ddb.batchWrites[0].RequestItems["escrow"], 25)
	assert.Len(t, ddb.batchWrites[1].RequestItems["escrow"], 25)
	assert.Len(t, ddb.batchWrites[2].RequestItems["escrow"], 10)
}

// TestUpsert_ChunkFailureContinues: a failed chunk loses only its own
// records; later chunks still commit.
func TestUpsert_ChunkFailureContinues(t *testing.T) {
	call := 0
	ddb := &fakeDynamo{
		BatchWriteItemFn: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			call++
			if call == 2 {
				return nil, errors.New("provisioned throughput exceeded")
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	w := &Writer{DDB: ddb, Table: "escrow"}

	written, failed := w.Upsert(context.Background(), testRecords(60))
	assert.Len(t, written, 35)
	assert.Equal(t, 25, failed)
	assert.Equal(t, 3, call, "chunk failure must not abort the rest")
}

// TestUpsert_UnprocessedCountedFailed: unprocessed items are not retried
// inline, they just count against the run.
func TestUpsert_UnprocessedCountedFailed(t *testing.T) {
	ddb := &fakeDynamo{
		BatchWriteItemFn: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			reqs := in.RequestItems["escrow"]
			return &dynamodb.BatchWriteItemOutput{
				UnprocessedItems: map[string][]types.WriteRequest{
					"escrow": {reqs[0]},
				},
			}, nil
		},
	}
	w := &Writer{DDB: ddb, Table: "escrow"}

	written, failed := w.Upsert(context.Background(), testRecords(10))
	assert.Len(t, written, 9)
	assert.Equal(t, 1, failed)
}

func TestUpsert_Empty(t *testing.T) {
	ddb := &fakeDynamo{}
	w := &Writer{DDB: ddb, Table: "escrow"}

	written, failed := w.Upsert(context.Background(), nil)
	assert.Empty(t, written)
	assert.Zero(t, failed)
	assert.Empty(t, ddb.batchWrites)
}
