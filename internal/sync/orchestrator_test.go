package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"backend/internal/shopee"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrders(sns ...string) func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	return func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		if aws.ToString(in.TableName) != "orders" {
			return &dynamodb.QueryOutput{}, nil
		}
		items := make([]map[string]types.AttributeValue, 0, len(sns))
		for i, sn := range sns {
			items = append(items, orderItem(sn, int64(1000-i)))
		}
		return &dynamodb.QueryOutput{Items: items}, nil
	}
}

func statusWrites(ddb *fakeDynamo) []*dynamodb.PutItemInput {
	var out []*dynamodb.PutItemInput
	for _, p := range ddb.puts {
		if sk, ok := p.Item["SK"].(*types.AttributeValueMemberS); ok && strings.HasPrefix(sk.Value, "SYNC#") {
			out = append(out, p)
		}
	}
	return out
}

// TestSyncEscrow_ExampleScenario: three pending orders, the remote
// returns valid data for A and C and a business error for B. B stays
// unfetched, the run still succeeds and records status.
func TestSyncEscrow_ExampleScenario(t *testing.T) {
	ddb := &fakeDynamo{QueryFn: pendingOrders("A", "B", "C")}
	fetcher := &fakeFetcher{
		EscrowFn: func(sn string) (*shopee.EscrowDetail, error) {
			if sn == "B" {
				return nil, &shopee.RemoteError{Code: "order_not_eligible", Message: "not settled yet", Endpoint: "escrow"}
			}
			return &shopee.EscrowDetail{OrderSN: sn, OrderIncome: shopee.OrderIncome{EscrowAmount: 10}}, nil
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.APICalls)

	// only A and C flip to fetched
	require.Len(t, ddb.updates, 2)
	flipped := []string{
		ddb.updates[0].Key["SK"].(*types.AttributeValueMemberS).Value,
		ddb.updates[1].Key["SK"].(*types.AttributeValueMemberS).Value,
	}
	assert.ElementsMatch(t, []string{"ORDER#A", "ORDER#C"}, flipped)

	// status written despite the partial failure
	require.Len(t, statusWrites(ddb), 1)
}

// TestSyncEscrow_NothingPending: the second run of an up-to-date shop is
// a cheap no-op that still refreshes the status row.
func TestSyncEscrow_NothingPending(t *testing.T) {
	ddb := &fakeDynamo{}
	fetcher := &fakeFetcher{}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.Fetched)
	assert.Empty(t, fetcher.escrowCalls)
	assert.Len(t, statusWrites(ddb), 1)
}

// TestSyncEscrow_FirstCallFailure: a transient failure before any
// progress aborts the run and leaves status untouched.
func TestSyncEscrow_FirstCallFailure(t *testing.T) {
	ddb := &fakeDynamo{QueryFn: pendingOrders("A", "B")}
	fetcher := &fakeFetcher{
		EscrowFn: func(sn string) (*shopee.EscrowDetail, error) {
			return nil, &shopee.RemoteError{HTTPStatus: 503, Message: "unavailable", Endpoint: "escrow"}
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	_, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	require.Error(t, err)
	assert.Len(t, fetcher.escrowCalls, 1)
	assert.Empty(t, statusWrites(ddb))
}

// TestSyncEscrow_MidRunTransient: the same failure after progress is
// absorbed into the counters.
func TestSyncEscrow_MidRunTransient(t *testing.T) {
	ddb := &fakeDynamo{QueryFn: pendingOrders("A", "B", "C")}
	fetcher := &fakeFetcher{
		EscrowFn: func(sn string) (*shopee.EscrowDetail, error) {
			if sn == "B" {
				return nil, &shopee.RemoteError{HTTPStatus: 500, Message: "boom", Endpoint: "escrow"}
			}
			return &shopee.EscrowDetail{OrderSN: sn}, nil
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, statusWrites(ddb), 1)
}

// TestSyncEscrow_BatchWriteFailure: a failed persistence batch costs its
// records but not the run, and their flags stay unfetched.
func TestSyncEscrow_BatchWriteFailure(t *testing.T) {
	sns := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		sns = append(sns, fmt.Sprintf("SN-%03d", i))
	}
	call := 0
	ddb := &fakeDynamo{
		QueryFn: pendingOrders(sns...),
		BatchWriteItemFn: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			call++
			if call == 1 {
				return nil, errors.New("throughput exceeded")
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	fetcher := &fakeFetcher{}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, 60, res.Total)
	assert.Equal(t, 35, res.Fetched)
	assert.Equal(t, 25, res.Failed)
	assert.Len(t, ddb.updates, 35, "only written records flip their flag")
	assert.Len(t, statusWrites(ddb), 1)
}

// TestSyncEscrow_ClaimHeld: double-trigger protection.
func TestSyncEscrow_ClaimHeld(t *testing.T) {
	ddb := &fakeDynamo{
		PutItemFn: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	fetcher := &fakeFetcher{}
	orch := newTestOrchestrator(ddb, fetcher)

	_, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Empty(t, fetcher.escrowCalls)
}

// TestSyncEscrow_MissingCredentials: a config failure aborts before any
// fetch.
func TestSyncEscrow_MissingCredentials(t *testing.T) {
	ddb := &fakeDynamo{}
	orch := newTestOrchestrator(ddb, &fakeFetcher{})
	orch.Fetch = func(context.Context, int64) (Fetcher, error) {
		return nil, fmt.Errorf("shop 123: %w", shopee.ErrShopNotConnected)
	}

	_, err := orch.SyncEscrow(context.Background(), 123, "user-1", false)
	assert.ErrorIs(t, err, shopee.ErrShopNotConnected)
	assert.Empty(t, statusWrites(ddb))
}

func flashPage(n int, total, base int) *shopee.FlashSalePage {
	page := &shopee.FlashSalePage{TotalCount: total}
	for i := 0; i < n; i++ {
		page.FlashSales = append(page.FlashSales, shopee.FlashSale{FlashSaleID: int64(base + i)})
	}
	return page
}

func reapQueries(ddb *fakeDynamo) int {
	n := 0
	for _, q := range ddb.queries {
		if q.FilterExpression != nil && strings.Contains(aws.ToString(q.FilterExpression), "SyncedAt <") {
			n++
		}
	}
	return n
}

// TestSyncFlashSales_PaginationTermination: total 250 with page size 100
// takes exactly three calls and assembles 250 records.
func TestSyncFlashSales_PaginationTermination(t *testing.T) {
	ddb := &fakeDynamo{}
	fetcher := &fakeFetcher{
		PageFn: func(offset, limit int) (*shopee.FlashSalePage, error) {
			switch offset {
			case 0, 100:
				return flashPage(100, 250, offset), nil
			case 200:
				return flashPage(50, 250, offset), nil
			default:
				t.Fatalf("unexpected offset %d", offset)
				return nil, nil
			}
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncFlashSales(context.Background(), 123, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100, 200}, fetcher.pageCalls)
	assert.Equal(t, 250, res.Total)
	assert.Equal(t, 250, res.Fetched)
	assert.True(t, res.Exhaustive)
	assert.Equal(t, 1, reapQueries(ddb), "exhaustive fetch triggers the reaper")
	assert.Len(t, statusWrites(ddb), 1)
}

// TestSyncFlashSales_PartialKeepsCollected: a page failure after progress
// keeps what was collected and must not reap.
func TestSyncFlashSales_PartialKeepsCollected(t *testing.T) {
	ddb := &fakeDynamo{}
	fetcher := &fakeFetcher{
		PageFn: func(offset, limit int) (*shopee.FlashSalePage, error) {
			if offset == 0 {
				return flashPage(100, 250, 0), nil
			}
			return nil, &shopee.RemoteError{HTTPStatus: 502, Message: "bad gateway", Endpoint: "flash"}
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncFlashSales(context.Background(), 123, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Total)
	assert.Equal(t, 100, res.Fetched)
	assert.False(t, res.Exhaustive)
	assert.Zero(t, reapQueries(ddb), "interrupted fetch must never delete")
	assert.Len(t, statusWrites(ddb), 1)
}

// TestSyncFlashSales_FirstPageFailure: nothing collected means a hard
// failure.
func TestSyncFlashSales_FirstPageFailure(t *testing.T) {
	ddb := &fakeDynamo{}
	fetcher := &fakeFetcher{
		PageFn: func(offset, limit int) (*shopee.FlashSalePage, error) {
			return nil, &shopee.RemoteError{HTTPStatus: 500, Message: "down", Endpoint: "flash"}
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	_, err := orch.SyncFlashSales(context.Background(), 123, "user-1")
	require.Error(t, err)
	assert.Empty(t, statusWrites(ddb))
}

// TestSyncFlashSales_EmptyRemote: an empty but complete listing is
// exhaustive, so leftovers from earlier runs get reaped.
func TestSyncFlashSales_EmptyRemote(t *testing.T) {
	ddb := &fakeDynamo{}
	fetcher := &fakeFetcher{
		PageFn: func(offset, limit int) (*shopee.FlashSalePage, error) {
			return &shopee.FlashSalePage{TotalCount: 0}, nil
		},
	}
	orch := newTestOrchestrator(ddb, fetcher)

	res, err := orch.SyncFlashSales(context.Background(), 123, "user-1")
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.True(t, res.Exhaustive)
	assert.Equal(t, 1, reapQueries(ddb))
}
