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

// FlashSaleSync is the interactive flash-sale sync trigger.
func FlashSaleSync(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
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
		res, err := orch.SyncFlashSales(ctx, in.ShopID, sub)
		return respond(res, err)
	case "stats":
		last, err := orch.Status.LastSyncAt(ctx, in.ShopID, sync.TypeFlashSale, sub)
		if err != nil {
			return errResp(500, "status lookup failed")
		}
		resp := SyncResponse{Success: true}
		if !last.IsZero() {
			resp.LastSyncAt = last.UTC().Format(time.RFC3339)
		}
		return jsonResp(200, resp)
	default:
		return errResp(400, "unknown action: "+in.Action)
	}
}
