package sync

import (
	"context"
	"time"

	"backend/internal/shopee"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeDynamo scripts the DynamoAPI surface per test. Unset functions mean
// the call is unexpected and returns an empty success.
type fakeDynamo struct {
	QueryFn          func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	GetItemFn        func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	PutItemFn        func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	UpdateItemFn     func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	DeleteItemFn     func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItemFn func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)

	queries     []*dynamodb.QueryInput
	puts        []*dynamodb.PutItemInput
	updates     []*dynamodb.UpdateItemInput
	deletes     []*dynamodb.DeleteItemInput
	batchWrites []*dynamodb.BatchWriteItemInput
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.QueryFn != nil {
		return f.QueryFn(in)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.GetItemFn != nil {
		return f.GetItemFn(in)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.PutItemFn != nil {
		return f.PutItemFn(in)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.UpdateItemFn != nil {
		return f.UpdateItemFn(in)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	if f.DeleteItemFn != nil {
		return f.DeleteItemFn(in)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchWrites = append(f.batchWrites, in)
	if f.BatchWriteItemFn != nil {
		return f.BatchWriteItemFn(in)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// fakeFetcher scripts the remote side of a run.
type fakeFetcher struct {
	EscrowFn func(orderSN string) (*shopee.EscrowDetail, error)
	PageFn   func(offset, limit int) (*shopee.FlashSalePage, error)

	escrowCalls []string
	pageCalls   []int
}

func (f *fakeFetcher) GetEscrowDetail(_ context.Context, orderSN string) (*shopee.EscrowDetail, error) {
	f.escrowCalls = append(f.escrowCalls, orderSN)
	if f.EscrowFn != nil {
		return f.EscrowFn(orderSN)
	}
	return &shopee.EscrowDetail{OrderSN: orderSN}, nil
}

func (f *fakeFetcher) GetFlashSalePage(_ context.Context, offset, limit int) (*shopee.FlashSalePage, error) {
	f.pageCalls = append(f.pageCalls, offset)
	if f.PageFn != nil {
		return f.PageFn(offset, limit)
	}
	return &shopee.FlashSalePage{}, nil
}

// newTestOrchestrator wires an orchestrator against the fakes with no
// inter-call delay.
func newTestOrchestrator(ddb *fakeDynamo, fetcher Fetcher) *Orchestrator {
	return &Orchestrator{
		Fetch: func(context.Context, int64) (Fetcher, error) {
			return fetcher, nil
		},
		Cursor: &Cursor{DDB: ddb, Table: "orders"},
		Escrow: &Writer{DDB: ddb, Table: "escrow"},
		Flash:  &Writer{DDB: ddb, Table: "flash_sales"},
		Reaper: &Reaper{DDB: ddb, Table: "flash_sales"},
		Status: &StatusStore{DDB: ddb, Table: "sync_status"},
		Notify: &Notifier{},

		CandidateCap: DefaultCandidateCap,
		BatchSize:    DefaultBatchSize,
		PageSize:     DefaultPageSize,
		Delay:        0,

		now: time.Now,
	}
}
