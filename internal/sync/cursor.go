package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StatusIndexName is the orders-table GSI keyed by shop+status with a
// zero-padded create time sort key.
const StatusIndexName = "GSI_Status"

// DefaultCandidateCap bounds one run so full backlogs drain over several
// scheduled runs instead of one long one.
const DefaultCandidateCap = 500

// Cursor selects the pending work set from the orders table and owns the
// per-order fetched flag.
type Cursor struct {
	DDB   DynamoAPI
	Table string
}

func statusPK(shopID int64) string {
	return fmt.Sprintf("SHOP#%d#STATUS#COMPLETED", shopID)
}

// SelectPending returns up to limit COMPLETED orders for the shop, newest
// first. By default only orders whose EscrowFetched flag is absent or
// false are returned; force ignores the flag and reselects everything.
// Absent and false are equivalent: rows ingested before the flag existed
// must still be picked up.
func (c *Cursor) SelectPending(ctx context.Context, shopID int64, force bool, limit int) ([]OrderRef, error) {
	if limit <= 0 {
		limit = DefaultCandidateCap
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.Table),
		IndexName:              aws.String(StatusIndexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: statusPK(shopID)},
		},
		ScanIndexForward: aws.Bool(false), // newest created first
	}
	if !force {
		in.FilterExpression = aws.String("attribute_not_exists(EscrowFetched) OR EscrowFetched = :f")
		in.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	}

	var refs []OrderRef
	for {
		out, err := c.DDB.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query pending orders: %w", err)
		}
		for _, item := range out.Items {
			ref := OrderRef{ShopID: shopID}
			if v, ok := item["OrderSN"].(*types.AttributeValueMemberS); ok {
				ref.OrderSN = v.Value
			}
			if v, ok := item["CreateTime"].(*types.AttributeValueMemberN); ok {
				fmt.Sscanf(v.Value, "%d", &ref.CreateTime)
			}
			if ref.OrderSN == "" {
				continue
			}
			refs = append(refs, ref)
			if len(refs) >= limit {
				return refs, nil
			}
		}
		if out.LastEvaluatedKey == nil || len(out.LastEvaluatedKey) == 0 {
			return refs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// MarkFetched flips EscrowFetched to true for the given orders. The flip
// is one-way: nothing in the engine ever resets it to false. A failed flip
// is logged and left alone; the order is simply reselected next run.
func (c *Cursor) MarkFetched(ctx context.Context, shopID int64, orderSNs []string) int {
	now := time.Now().UTC().Format(time.RFC3339)
	flipped := 0
	for _, sn := range orderSNs {
		_, err := c.DDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(c.Table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
				"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", sn)},
			},
			UpdateExpression: aws.String("SET EscrowFetched = :t, UpdatedAt = :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t":   &types.AttributeValueMemberBOOL{Value: true},
				":now": &types.AttributeValueMemberS{Value: now},
			},
		})
		if err != nil {
			fmt.Printf("sync: mark fetched shop=%d order=%s failed: %v\n", shopID, sn, err)
			continue
		}
		flipped++
	}
	return flipped
}
