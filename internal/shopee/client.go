package shopee

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Envelope is the common Shopee Open Platform v2 response wrapper.
// A non-empty Error field is a remote-reported failure even on HTTP 200.
type Envelope struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response"`
}

// Credentials is everything needed to sign one shop's API calls.
type Credentials struct {
	PartnerID   int64
	PartnerKey  string
	ShopID      int64
	AccessToken string
}

// Client issues signed requests against the Shopee Open Platform.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Creds   Credentials

	// Now is overridable so signatures are reproducible in tests.
	Now func() time.Time
}

func NewClient(baseURL string, creds Credentials) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Creds:   creds,
		Now:     time.Now,
	}
}

// sign computes the shop-level v2 signature:
// HMAC-SHA256(partner_key, partner_id + path + timestamp + access_token + shop_id).
func (c *Client) sign(path string, ts int64) string {
	base := fmt.Sprintf("%d%s%d%s%d", c.Creds.PartnerID, path, ts, c.Creds.AccessToken, c.Creds.ShopID)
	mac := hmac.New(sha256.New, []byte(c.Creds.PartnerKey))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

// Call issues one signed request and unwraps the common envelope.
// The raw inner response is returned on success; a remote-reported error
// (envelope Error set, or non-2xx status) comes back as *RemoteError.
func (c *Client) Call(ctx context.Context, path, method string, params url.Values, body any) (json.RawMessage, error) {
	ts := c.Now().UTC().Unix()

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("partner_id", strconv.FormatInt(c.Creds.PartnerID, 10))
	q.Set("shop_id", strconv.FormatInt(c.Creds.ShopID, 10))
	q.Set("access_token", c.Creds.AccessToken)
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", c.sign(path, ts))

	endpoint := c.BaseURL + path + "?" + q.Encode()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		fmt.Printf("shopee: %s failed after %dms: %v\n", path, time.Since(started).Milliseconds(), err)
		return nil, &RemoteError{Endpoint: path, Message: err.Error()}
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	fmt.Printf("shopee: %s status=%d dur=%dms\n", path, res.StatusCode, time.Since(started).Milliseconds())

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &RemoteError{
			Endpoint:   path,
			HTTPStatus: res.StatusCode,
			Message:    string(raw),
		}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal %s response: %w", path, err)
	}
	if env.Error != "" {
		return nil, &RemoteError{
			Endpoint:   path,
			HTTPStatus: res.StatusCode,
			Code:       env.Error,
			Message:    env.Message,
		}
	}
	return env.Response, nil
}
