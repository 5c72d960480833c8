// Package telephony drives the PSTN side of a call through the Twilio REST
// API: placing outbound calls, generating the TwiML that bridges call audio
// into the media stream endpoint, and ending calls.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Call status values reported by Twilio.
const (
	StatusQueued     = "queued"
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Client places and controls calls for one Twilio account.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the REST API base URL, mainly for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for call lifecycle events.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the given account credentials and caller ID
// number.
func NewClient(accountSID, authToken, fromNumber string, opts ...ClientOption) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("telephony: account SID and auth token must not be empty")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("telephony: from number must not be empty")
	}
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// callResource is the subset of Twilio's call resource we read back.
type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// PlaceCall dials toNumber. Twilio fetches call instructions from twimlURL
// when the callee answers and posts status transitions to statusCallback.
// Returns the call SID.
func (c *Client) PlaceCall(ctx context.Context, toNumber, twimlURL, statusCallback string) (string, error) {
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Url", twimlURL)
	if statusCallback != "" {
		form.Set("StatusCallback", statusCallback)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
	}

	res, err := c.post(ctx, "/Calls.json", form)
	if err != nil {
		return "", fmt.Errorf("telephony: place call: %w", err)
	}
	c.logger.Info("call placed", "call_sid", res.SID, "to", toNumber)
	return res.SID, nil
}

// EndCall transitions an in-progress call to completed, hanging it up.
func (c *Client) EndCall(ctx context.Context, callSID string) error {
	form := url.Values{}
	form.Set("Status", StatusCompleted)

	if _, err := c.post(ctx, "/Calls/"+callSID+".json", form); err != nil {
		return fmt.Errorf("telephony: end call %s: %w", callSID, err)
	}
	c.logger.Info("call ended", "call_sid", callSID)
	return nil
}

// CallStatus fetches the current status of a call.
func (c *Client) CallStatus(ctx context.Context, callSID string) (string, error) {
	u := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("telephony: call status: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	res, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("telephony: call status %s: %w", callSID, err)
	}
	return res.Status, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*callResource, error) {
	u := fmt.Sprintf("%s/Accounts/%s%s", c.baseURL, c.accountSID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*callResource, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var res callResource
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}
