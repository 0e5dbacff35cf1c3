package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// SendRequest is the vendor's send contract. Field names are part of
// the external boundary and stay camelCase on the wire.
type SendRequest struct {
	CustomerID         int64  `json:"customerId"`
	CustomerEmail      string `json:"customerEmail"`
	Message            string `json:"message"`
	CommunicationLogID int64  `json:"communicationLogId"`
	CallbackURL        string `json:"callbackUrl"`
}

// SendResponse is the vendor's immediate acceptance. It does NOT mean
// the message was delivered; the final outcome arrives later on the
// callback URL.
type SendResponse struct {
	Status          string `json:"status"`
	VendorMessageID string `json:"vendorMessageId"`
}

type Config struct {
	// SendURL is the vendor's send endpoint.
	SendURL string
	// CallbackURL is where the vendor posts delivery receipts.
	CallbackURL string
	Timeout     time.Duration
	MaxConns    int
}

// Client talks to the sending vendor over HTTP.
type Client struct {
	config Config
	http   *fasthttp.Client
}

func NewClient(config Config) (*Client, error) {
	if config.SendURL == "" {
		return nil, fmt.Errorf("vendor send URL is required")
	}
	if config.CallbackURL == "" {
		return nil, fmt.Errorf("vendor callback URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 512
	}

	return &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}, nil
}

// CallbackURL reports where receipts for this client's sends arrive.
func (c *Client) CallbackURL() string {
	return c.config.CallbackURL
}

// Send submits one message to the vendor and returns its acceptance.
// A transport error or non-2xx response is a send failure; the retry
// decision belongs to the calling queue, not to this client.
func (c *Client) Send(ctx context.Context, sendReq *SendRequest) (*SendResponse, error) {
	sendReq.CallbackURL = c.config.CallbackURL

	body, err := json.Marshal(sendReq)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.SendURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := c.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("vendor request failed: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("vendor returned status %d", resp.StatusCode())
	}

	var out SendResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode vendor response: %w", err)
	}
	return &out, nil
}
