package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"backend/internal/shopee"
	"backend/internal/sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SyncRequest is the action-dispatch body shared by both sync endpoints.
type SyncRequest struct {
	Action string `json:"action"`
	ShopID int64  `json:"shop_id"`
}

// SyncResponse mirrors the run counters back to the dashboard.
type SyncResponse struct {
	Success    bool   `json:"success"`
	Total      int    `json:"total"`
	Fetched    int    `json:"fetched"`
	Failed     int    `json:"failed"`
	APICalls   int    `json:"api_calls,omitempty"`
	Reaped     int    `json:"reaped,omitempty"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

func userSub(req events.APIGatewayV2HTTPRequest) (string, error) {
	// HTTP API JWT authorizer puts claims in RequestContext.Authorizer.JWT
	if req.RequestContext.Authorizer == nil || req.RequestContext.Authorizer.JWT == nil {
		return "", errors.New("missing authorizer claims")
	}
	sub := strings.TrimSpace(req.RequestContext.Authorizer.JWT.Claims["sub"])
	if sub == "" {
		return "", fmt.Errorf("missing sub")
	}
	return sub, nil
}

func jsonResp(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(b),
	}, nil
}

func errResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, SyncResponse{Success: false, Error: msg})
}

func shopeeBaseURL() string {
	if v := strings.TrimSpace(os.Getenv("SHOPEE_API_BASE_URL")); v != "" {
		return v
	}
	return "https://partner.shopeemobile.com"
}

// NewSyncOrchestrator assembles the sync engine with real AWS clients and a
// per-shop signed Shopee client factory.
func NewSyncOrchestrator(ctx context.Context) (*sync.Orchestrator, *dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	ddb := dynamodb.NewFromConfig(awsCfg)
	snsClient := sns.NewFromConfig(awsCfg)
	creds := &shopee.CredentialProvider{
		DDB: ddb,
		SSM: ssm.NewFromConfig(awsCfg),
	}

	fetch := func(ctx context.Context, shopID int64) (sync.Fetcher, error) {
		c, err := creds.GetCredentials(ctx, shopID)
		if err != nil {
			return nil, err
		}
		return shopee.NewClient(shopeeBaseURL(), c), nil
	}

	return sync.NewOrchestrator(ddb, snsClient, fetch), ddb, nil
}

// respond maps run outcomes onto the wire shape. Partial failures are a
// success with a non-zero failed count; only aborts flip success off.
func respond(res sync.Result, err error) (events.APIGatewayV2HTTPResponse, error) {
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			return jsonResp(409, SyncResponse{Success: false, Error: "sync already in progress"})
		case errors.Is(err, shopee.ErrShopNotConnected):
			return jsonResp(400, SyncResponse{Success: false, Error: err.Error()})
		default:
			return jsonResp(500, SyncResponse{Success: false, Error: err.Error()})
		}
	}
	return jsonResp(200, SyncResponse{
		Success:  true,
		Total:    res.Total,
		Fetched:  res.Fetched,
		Failed:   res.Failed,
		APICalls: res.APICalls,
		Reaped:   res.Reaped,
	})
}
