package tenancy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"backend/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DDBClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// UserOwnsShop reports whether the user has a mapping row for the shop
// (PK=SHOP#<id>, SK=USER#<sub>). Interactive triggers check this before
// starting a run.
func UserOwnsShop(ctx context.Context, ddb DDBClient, userSub string, shopID int64) (bool, error) {
	userSub = strings.TrimSpace(userSub)
	if userSub == "" {
		return false, fmt.Errorf("empty userSub")
	}
	table := strings.TrimSpace(db.ShopsTableName())
	if table == "" {
		return false, fmt.Errorf("missing SHOPS_TABLE")
	}

	out, err := ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk AND SK = :sk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
			":sk": &ddbtypes.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userSub)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb query shop mapping failed: %w", err)
	}
	return len(out.Items) > 0, nil
}

// AllConnectedShops lists every shop with a META row, for the scheduled
// sync path. The shops table stays small (one row per connected shop plus
// user mappings), so a filtered scan is fine here.
func AllConnectedShops(ctx context.Context, ddb DDBClient) ([]int64, error) {
	table := strings.TrimSpace(db.ShopsTableName())
	if table == "" {
		return nil, fmt.Errorf("missing SHOPS_TABLE")
	}

	in := &dynamodb.ScanInput{
		TableName:        aws.String(table),
		FilterExpression: aws.String("SK = :meta"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":meta": &ddbtypes.AttributeValueMemberS{Value: "META"},
		},
		ProjectionExpression: aws.String("ShopID"),
	}

	var shops []int64
	for {
		out, err := ddb.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan shops failed: %w", err)
		}
		for _, it := range out.Items {
			if v, ok := it["ShopID"].(*ddbtypes.AttributeValueMemberN); ok {
				id, err := strconv.ParseInt(v.Value, 10, 64)
				if err == nil && id > 0 {
					shops = append(shops, id)
				}
			}
		}
		if out.LastEvaluatedKey == nil || len(out.LastEvaluatedKey) == 0 {
			return shops, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
