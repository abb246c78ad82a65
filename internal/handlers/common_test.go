package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"backend/internal/shopee"
	"backend/internal/sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedRequest(sub, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Body: body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
					Claims: map[string]string{"sub": sub},
				},
			},
		},
	}
}

func TestUserSub(t *testing.T) {
	sub, err := userSub(authedRequest("user-1", ""))
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = userSub(events.APIGatewayV2HTTPRequest{})
	assert.Error(t, err, "no authorizer must not panic")

	_, err = userSub(authedRequest("   ", ""))
	assert.Error(t, err)
}

func decodeBody(t *testing.T, resp events.APIGatewayV2HTTPResponse) SyncResponse {
	t.Helper()
	var out SyncResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	return out
}

func TestRespond_StatusMapping(t *testing.T) {
	resp, err := respond(sync.Result{}, sync.ErrSyncInProgress)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)

	resp, _ = respond(sync.Result{}, shopee.ErrShopNotConnected)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = respond(sync.Result{}, errors.New("boom"))
	assert.Equal(t, 500, resp.StatusCode)
}

// TestRespond_PartialFailureIsSuccess: a run with per-record failures still
// completed, so the wire marks it successful and reports the counters.
func TestRespond_PartialFailureIsSuccess(t *testing.T) {
	resp, err := respond(sync.Result{Total: 3, Fetched: 2, Failed: 1, APICalls: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["content-type"])

	body := decodeBody(t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Fetched)
	assert.Equal(t, 1, body.Failed)
}

func TestShopeeBaseURL(t *testing.T) {
	t.Setenv("SHOPEE_API_BASE_URL", "")
	assert.Equal(t, "https://partner.shopeemobile.com", shopeeBaseURL())

	t.Setenv("SHOPEE_API_BASE_URL", "https://partner.test-stable.shopeemobile.com")
	assert.Equal(t, "https://partner.test-stable.shopeemobile.com", shopeeBaseURL())
}
