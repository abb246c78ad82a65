package sync

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoAPI is the slice of the DynamoDB client the sync engine uses.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Sync types, used in status/claim keys and activity log rows.
const (
	TypeEscrow    = "escrow"
	TypeFlashSale = "flash_sale"
)

// ErrSyncInProgress means another run holds the claim for this shop+type.
var ErrSyncInProgress = errors.New("sync already in progress")

// OrderRef identifies one pending source order.
type OrderRef struct {
	ShopID     int64
	OrderSN    string
	CreateTime int64
}

// Result aggregates one run. Partial failures land in Failed; the run
// itself still counts as successful.
type Result struct {
	Total    int `json:"total"`
	Fetched  int `json:"fetched"`
	Failed   int `json:"failed"`
	APICalls int `json:"api_calls"`
	Reaped   int `json:"reaped,omitempty"`

	// Exhaustive is true when the run retrieved the entire remote set,
	// which is the precondition for stale-record deletion.
	Exhaustive bool `json:"exhaustive,omitempty"`
}
