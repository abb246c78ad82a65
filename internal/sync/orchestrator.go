package sync

import (
	"context"
	"fmt"
	"time"

	"backend/internal/db"
	"backend/internal/shopee"
)

// Fetcher is the remote side of a sync run, satisfied by *shopee.Client.
type Fetcher interface {
	GetEscrowDetail(ctx context.Context, orderSN string) (*shopee.EscrowDetail, error)
	GetFlashSalePage(ctx context.Context, offset, limit int) (*shopee.FlashSalePage, error)
}

// FetcherFactory builds a signed client for one shop. Failing here
// (missing or undecryptable credentials) aborts the run before any fetch.
type FetcherFactory func(ctx context.Context, shopID int64) (Fetcher, error)

// DefaultPageSize is the flash-sale list page size.
const DefaultPageSize = 100

// DefaultFetchDelay spaces out single-entity escrow calls to stay under
// the per-shop rate limit. List pagination needs no artificial delay.
const DefaultFetchDelay = 100 * time.Millisecond

// Orchestrator drives a sync run end to end: claim, fetch, write, reap,
// status, notify. It is the only writer of SyncStatus rows.
type Orchestrator struct {
	Fetch  FetcherFactory
	Cursor *Cursor
	Escrow *Writer
	Flash  *Writer
	Reaper *Reaper
	Status *StatusStore
	Notify *Notifier

	CandidateCap int
	BatchSize    int
	PageSize     int
	Delay        time.Duration

	now func() time.Time
}

// NewOrchestrator wires the engine against the configured tables.
func NewOrchestrator(ddb DynamoAPI, snsClient SNSPublisher, fetch FetcherFactory) *Orchestrator {
	return &Orchestrator{
		Fetch:  fetch,
		Cursor: &Cursor{DDB: ddb, Table: db.OrdersTableName()},
		Escrow: &Writer{DDB: ddb, Table: db.EscrowTableName()},
		Flash:  &Writer{DDB: ddb, Table: db.FlashSalesTableName()},
		Reaper: &Reaper{DDB: ddb, Table: db.FlashSalesTableName()},
		Status: &StatusStore{DDB: ddb, Table: db.SyncStatusTableName()},
		Notify: &Notifier{SNS: snsClient, TopicArn: dataChangedTopicArn(), DDB: ddb, LogTable: db.ActivityLogTableName()},

		CandidateCap: DefaultCandidateCap,
		BatchSize:    DefaultBatchSize,
		PageSize:     DefaultPageSize,
		Delay:        DefaultFetchDelay,

		now: time.Now,
	}
}

// SyncEscrow fetches settlement data for pending COMPLETED orders and
// upserts it. force reselects every completed order regardless of the
// fetched flag. Per-record remote errors and per-batch write errors are
// absorbed into the counters; only a missing-credentials error or a
// failure on the very first call with zero progress aborts the run.
func (o *Orchestrator) SyncEscrow(ctx context.Context, shopID int64, userSub string, force bool) (Result, error) {
	release, err := o.Status.Claim(ctx, shopID, TypeEscrow)
	if err != nil {
		return Result{}, err
	}
	defer release()

	fetcher, err := o.Fetch(ctx, shopID)
	if err != nil {
		return Result{}, err
	}

	pending, err := o.Cursor.SelectPending(ctx, shopID, force, o.CandidateCap)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(pending)}
	batch := make([]Record, 0, o.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		written, failed := o.Escrow.Upsert(ctx, batch)
		res.Failed += failed
		if len(written) > 0 {
			o.Cursor.MarkFetched(ctx, shopID, written)
			res.Fetched += len(written)
		}
		batch = batch[:0]
	}

	for i, ord := range pending {
		if i > 0 && o.Delay > 0 {
			select {
			case <-ctx.Done():
				flush()
				return res, ctx.Err()
			case <-time.After(o.Delay):
			}
		}

		det, ferr := fetcher.GetEscrowDetail(ctx, ord.OrderSN)
		res.APICalls++
		if ferr != nil {
			if i == 0 && !shopee.IsLogical(ferr) {
				// nothing synced yet, nothing to salvage
				return Result{}, fmt.Errorf("first escrow fetch for shop %d: %w", shopID, ferr)
			}
			fmt.Printf("sync: escrow fetch shop=%d order=%s skipped: %v\n", shopID, ord.OrderSN, ferr)
			res.Failed++
			continue
		}

		rec, rerr := escrowRecord(shopID, det, o.now())
		if rerr != nil {
			fmt.Printf("sync: marshal escrow shop=%d order=%s: %v\n", shopID, ord.OrderSN, rerr)
			res.Failed++
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= o.BatchSize {
			flush()
		}
	}
	flush()

	o.finish(ctx, shopID, userSub, TypeEscrow, "escrow", res)
	return res, nil
}

// SyncFlashSales pulls the shop's full flash-sale list page by page and
// replaces the stored rows. A page failure after at least one page was
// collected degrades to a partial sync: collected rows are kept, stale
// rows survive until the next complete fetch.
func (o *Orchestrator) SyncFlashSales(ctx context.Context, shopID int64, userSub string) (Result, error) {
	release, err := o.Status.Claim(ctx, shopID, TypeFlashSale)
	if err != nil {
		return Result{}, err
	}
	defer release()

	fetcher, err := o.Fetch(ctx, shopID)
	if err != nil {
		return Result{}, err
	}

	startedAt := o.now()
	var res Result
	var collected []shopee.FlashSale
	total := 0
	complete := true

	for offset := 0; ; offset += o.PageSize {
		page, perr := fetcher.GetFlashSalePage(ctx, offset, o.PageSize)
		res.APICalls++
		if perr != nil {
			if len(collected) == 0 {
				return Result{}, fmt.Errorf("flash sale list for shop %d: %w", shopID, perr)
			}
			// prefer stale-but-present data over a failed run
			fmt.Printf("sync: flash sale page offset=%d degraded: %v\n", offset, perr)
			complete = false
			break
		}
		total = page.TotalCount
		collected = append(collected, page.FlashSales...)
		if len(page.FlashSales) < o.PageSize || len(collected) >= total {
			break
		}
	}

	res.Total = len(collected)
	res.Exhaustive = complete && len(collected) >= total

	records := make([]Record, 0, len(collected))
	for _, fs := range collected {
		rec, rerr := flashSaleRecord(shopID, fs, o.now())
		if rerr != nil {
			res.Failed++
			continue
		}
		records = append(records, rec)
	}
	for start := 0; start < len(records); start += o.BatchSize {
		end := start + o.BatchSize
		if end > len(records) {
			end = len(records)
		}
		written, failed := o.Flash.Upsert(ctx, records[start:end])
		res.Fetched += len(written)
		res.Failed += failed
	}

	if res.Exhaustive {
		reaped, rerr := o.Reaper.ReapStale(ctx, shopID, startedAt)
		if rerr != nil {
			fmt.Printf("sync: reap stale shop=%d: %v\n", shopID, rerr)
		} else {
			res.Reaped = reaped
		}
	}

	o.finish(ctx, shopID, userSub, TypeFlashSale, "flash_sales", res)
	return res, nil
}

// finish records the run and signals dependents. Best-effort all the way:
// the run already happened, so nothing here may fail it.
func (o *Orchestrator) finish(ctx context.Context, shopID int64, userSub, syncType, table string, res Result) {
	if err := o.Status.MarkSynced(ctx, shopID, syncType, userSub, o.now(), res); err != nil {
		fmt.Printf("sync: mark synced shop=%d type=%s: %v\n", shopID, syncType, err)
	}
	o.Notify.DataChanged(ctx, shopID, table)
	o.Notify.LogRun(shopID, syncType, "completed", res)
}
