package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"backend/internal/db"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Consumes Shopee order push events (bridged onto SQS) and keeps the
// orders table current. This is the producer side of the escrow pipeline:
// it writes the order rows the sync cursor later selects from. It never
// touches EscrowFetched, so an order update cannot un-mark a synced order.

type PushEvent struct {
	ShopID int64          `json:"shop_id"`
	Code   int            `json:"code"`
	Data   map[string]any `json:"data"`
}

func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		// Fail whole batch (infra issue)
		return events.SQSEventResponse{}, err
	}
	table := db.OrdersTableName()
	if strings.TrimSpace(table) == "" {
		return events.SQSEventResponse{}, fmt.Errorf("ORDERS_TABLE not set")
	}

	failures := make([]events.SQSBatchItemFailure, 0)

	for _, rec := range sqsEvent.Records {
		if err := processOneEvent(ctx, ddb, table, rec.Body); err != nil {
			// Mark this message failed so it retries (or goes to DLQ)
			fmt.Printf("order-events-worker: msgId=%s failed: %v\n", rec.MessageId, err)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func processOneEvent(ctx context.Context, ddb *dynamodb.Client, table, body string) error {
	var e PushEvent
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return fmt.Errorf("unmarshal push event: %w", err)
	}
	if e.ShopID <= 0 {
		// Not ours; treat as success (should not happen due to filter)
		return nil
	}

	orderSN := pickString(e.Data, "ordersn", "order_sn")
	if orderSN == "" {
		return fmt.Errorf("missing ordersn")
	}
	status := strings.ToUpper(pickString(e.Data, "status", "order_status"))
	if status == "" {
		status = "UNKNOWN"
	}

	createTime := pickInt64(e.Data, "create_time", "update_time")
	if createTime == 0 {
		createTime = time.Now().UTC().Unix()
	}

	now := time.Now().UTC().Format(time.RFC3339)

	// Upsert order fields without touching EscrowFetched: a later status
	// push for an already-synced order must not reopen it.
	updateExpr := "SET OrderSN = :sn, ShopID = :shop, OrderStatus = :st, UpdatedAt = :now, CreateTime = if_not_exists(CreateTime, :ct)"
	exprVals := map[string]types.AttributeValue{
		":sn":   &types.AttributeValueMemberS{Value: orderSN},
		":shop": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", e.ShopID)},
		":st":   &types.AttributeValueMemberS{Value: status},
		":now":  &types.AttributeValueMemberS{Value: now},
		":ct":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", createTime)},
	}

	// Completed orders land on the status index the sync cursor reads.
	if status == "COMPLETED" {
		updateExpr += ", GSI1PK = :gpk, GSI1SK = :gsk"
		exprVals[":gpk"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d#STATUS#COMPLETED", e.ShopID)}
		exprVals[":gsk"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%020d", createTime)}
	}

	_, err := ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", e.ShopID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", orderSN)},
		},
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprVals,
	})
	if err != nil {
		return fmt.Errorf("ddb upsert order: %w", err)
	}
	return nil
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func pickInt64(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok && f > 0 {
				return int64(f)
			}
		}
	}
	return 0
}

func main() { lambda.Start(handler) }
