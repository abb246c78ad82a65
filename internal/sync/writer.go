package sync

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultBatchSize is how many records one flush covers. DynamoDB caps a
// single BatchWriteItem at 25 requests, so a flush issues ceil(n/25) calls.
const DefaultBatchSize = 50

const maxBatchWriteItems = 25

// Record is one syncable row ready to persist: the natural key (entity id
// within the shop) plus the marshalled item.
type Record struct {
	Key  string
	Item map[string]types.AttributeValue
}

// Writer persists fetched records by full-row replace on the natural key.
// It is the only component that writes syncable rows.
type Writer struct {
	DDB   DynamoAPI
	Table string
}

// Upsert writes records in chunks of 25. A chunk that fails is logged and
// skipped; later chunks still go through, so one bad chunk costs only its
// own records. Returns the keys actually written and the failed count.
// Unprocessed items are counted as failed, not retried inline: the next
// run picks them up again via the fetched flag.
func (w *Writer) Upsert(ctx context.Context, records []Record) (written []string, failed int) {
	for start := 0; start < len(records); start += maxBatchWriteItems {
		end := start + maxBatchWriteItems
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		reqs := make([]types.WriteRequest, 0, len(chunk))
		for _, r := range chunk {
			reqs = append(reqs, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: r.Item},
			})
		}

		out, err := w.DDB.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				w.Table: reqs,
			},
		})
		if err != nil {
			fmt.Printf("sync: batch write %s [%d:%d] failed: %v\n", w.Table, start, end, err)
			failed += len(chunk)
			continue
		}

		unprocessed := map[string]bool{}
		if out != nil {
			for _, wr := range out.UnprocessedItems[w.Table] {
				if wr.PutRequest == nil {
					continue
				}
				if sk, ok := wr.PutRequest.Item["SK"].(*types.AttributeValueMemberS); ok {
					unprocessed[sk.Value] = true
				}
			}
		}

		for _, r := range chunk {
			if sk, ok := r.Item["SK"].(*types.AttributeValueMemberS); ok && unprocessed[sk.Value] {
				failed++
				continue
			}
			written = append(written, r.Key)
		}
		if n := len(unprocessed); n > 0 {
			fmt.Printf("sync: batch write %s left %d unprocessed\n", w.Table, n)
		}
	}
	return written, failed
}
