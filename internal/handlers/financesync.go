package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"backend/internal/sync"
	"backend/internal/tenancy"

	"github.com/aws/aws-lambda-go/events"
)

// FinanceSync is the interactive escrow-sync trigger. Dispatches on the
// action field: "sync" fetches only unfetched completed orders,
// "sync-all" forces a full re-fetch, "stats" reports the last run and the
// current backlog without touching the remote API.
func FinanceSync(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	sub, err := userSub(req)
	if err != nil {
		return errResp(401, "unauthorized")
	}

	var in SyncRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return errResp(400, "invalid json body")
	}
	if in.ShopID <= 0 {
		return errResp(400, "shop_id is required")
	}
	if strings.TrimSpace(in.Action) == "" {
		in.Action = "sync"
	}

	orch, ddb, err := NewSyncOrchestrator(ctx)
	if err != nil {
		return errResp(500, "failed to init aws clients")
	}
	defer orch.Notify.Flush()

	owns, err := tenancy.UserOwnsShop(ctx, ddb, sub, in.ShopID)
	if err != nil {
		return errResp(500, "shop lookup failed")
	}
	if !owns {
		return errResp(403, "shop not connected for this user")
	}

	switch in.Action {
	case "sync":
		res, err := orch.SyncEscrow(ctx, in.ShopID, sub, false)
		return respond(res, err)
	case "sync-all":
		res, err := orch.SyncEscrow(ctx, in.ShopID, sub, true)
		return respond(res, err)
	case "stats":
		return escrowStats(ctx, orch, in.ShopID, sub)
	default:
		return errResp(400, "unknown action: "+in.Action)
	}
}

func escrowStats(ctx context.Context, orch *sync.Orchestrator, shopID int64, sub string) (events.APIGatewayV2HTTPResponse, error) {
	pending, err := orch.Cursor.SelectPending(ctx, shopID, false, orch.CandidateCap)
	if err != nil {
		return errResp(500, "pending lookup failed")
	}
	last, err := orch.Status.LastSyncAt(ctx, shopID, sync.TypeEscrow, sub)
	if err != nil {
		return errResp(500, "status lookup failed")
	}

	resp := SyncResponse{Success: true, Total: len(pending)}
	if !last.IsZero() {
		resp.LastSyncAt = last.UTC().Format(time.RFC3339)
	}
	return jsonResp(200, resp)
}
