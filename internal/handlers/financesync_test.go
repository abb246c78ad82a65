package handlers

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Request validation happens before any AWS client is built, so these
// paths run hermetically.

func TestFinanceSync_Unauthorized(t *testing.T) {
	resp, err := FinanceSync(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"shop_id":1}`})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestFinanceSync_BadBody(t *testing.T) {
	resp, err := FinanceSync(context.Background(), authedRequest("user-1", "{not json"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestFinanceSync_MissingShopID(t *testing.T) {
	resp, err := FinanceSync(context.Background(), authedRequest("user-1", `{"action":"sync"}`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp).Error, "shop_id")
}

func TestFlashSaleSync_Unauthorized(t *testing.T) {
	resp, err := FlashSaleSync(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"shop_id":1}`})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestFlashSaleSync_MissingShopID(t *testing.T) {
	resp, err := FlashSaleSync(context.Background(), authedRequest("user-1", `{}`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
