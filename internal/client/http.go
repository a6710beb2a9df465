package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// callerHeader must match server.CallerHeader.
const callerHeader = "X-Vesting-Caller"

// HTTPClient implements VestingClient using the HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	opts       options
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       o,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Schedules ---

func (c *HTTPClient) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	var s model.Schedule
	if err := c.doJSON(ctx, http.MethodPost, "/v1/schedules", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error) {
	var s model.Schedule
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schedules/"+url.PathEscape(beneficiary.String()), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	q := url.Values{}
	if filter.ActiveOnly {
		q.Set("active_only", "true")
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	path := "/v1/schedules"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.ListSchedulesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

func (c *HTTPClient) Releasable(ctx context.Context, beneficiary model.Address) (decimal.Decimal, error) {
	var resp api.AmountResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schedules/"+url.PathEscape(beneficiary.String())+"/releasable", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Amount, nil
}

func (c *HTTPClient) Release(ctx context.Context) (decimal.Decimal, error) {
	var resp api.AmountResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/release", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Amount, nil
}

func (c *HTTPClient) EmergencyWithdraw(ctx context.Context, amount decimal.Decimal) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/withdraw", &api.AmountRequest{Amount: amount}, nil)
}

// --- Agreements ---

func (c *HTTPClient) SignAgreement(ctx context.Context, ipfsHash string) (*model.Agreement, error) {
	var a model.Agreement
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agreements", &api.SignAgreementRequest{IPFSHash: ipfsHash}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error) {
	var a model.Agreement
	if err := c.doJSON(ctx, http.MethodGet, "/v1/agreements/"+url.PathEscape(signer.String()), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) ListAgreements(ctx context.Context) ([]*model.Agreement, error) {
	var resp api.ListAgreementsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/agreements", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agreements, nil
}

// --- Administration ---

func (c *HTTPClient) Owner(ctx context.Context) (*api.OwnerResponse, error) {
	var resp api.OwnerResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/owner", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) TransferOwnership(ctx context.Context, newOwner model.Address) (*api.OwnerResponse, error) {
	var resp api.OwnerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/owner", &api.TransferOwnershipRequest{NewOwner: newOwner}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Token ---

func (c *HTTPClient) TokenInfo(ctx context.Context) (*model.TokenInfo, error) {
	var info model.TokenInfo
	if err := c.doJSON(ctx, http.MethodGet, "/v1/token", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) Balance(ctx context.Context, addr model.Address) (*model.Balance, error) {
	var b model.Balance
	if err := c.doJSON(ctx, http.MethodGet, "/v1/balances/"+url.PathEscape(addr.String()), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) Balances(ctx context.Context) ([]*model.Balance, error) {
	var resp api.ListBalancesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/balances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

func (c *HTTPClient) Allowance(ctx context.Context, owner, spender model.Address) (*model.Allowance, error) {
	var a model.Allowance
	path := "/v1/allowances/" + url.PathEscape(owner.String()) + "/" + url.PathEscape(spender.String())
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) Mint(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.doJSON(ctx, http.MethodPost, "/v1/token/mint", &api.MintRequest{To: to, Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) Approve(ctx context.Context, spender model.Address, amount decimal.Decimal) (*model.Allowance, error) {
	var a model.Allowance
	if err := c.doJSON(ctx, http.MethodPost, "/v1/token/approve", &api.ApproveRequest{Spender: spender, Amount: amount}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) Transfer(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.doJSON(ctx, http.MethodPost, "/v1/token/transfer", &api.TransferRequest{To: to, Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) Faucet(ctx context.Context, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.doJSON(ctx, http.MethodPost, "/v1/token/faucet", &api.AmountRequest{Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- Events ---

func (c *HTTPClient) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	q := url.Values{}
	if len(filter.Topics) > 0 {
		q.Set("topics", strings.Join(filter.Topics, ","))
	}
	if filter.Subject != "" {
		q.Set("subject", filter.Subject.String())
	}
	if filter.AfterID > 0 {
		q.Set("after_id", strconv.FormatInt(filter.AfterID, 10))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// WatchEvents streams events from GET /v1/events/stream. A non-negative
// afterID is sent as Last-Event-ID so the server replays what was missed.
func (c *HTTPClient) WatchEvents(ctx context.Context, topics []string, afterID int64, fn func(*model.Event) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if afterID >= 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(afterID, 10))
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && data != "":
			var e model.Event
			if err := json.Unmarshal([]byte(data), &e); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			data = ""
			if err := fn(&e); err != nil {
				return err
			}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return io.ErrUnexpectedEOF
}

func (c *HTTPClient) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/snapshot", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Identity and health ---

func (c *HTTPClient) WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error) {
	var resp api.WhoAmIResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/whoami", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError is returned when the server responds with a non-2xx status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	}
	if c.opts.caller != "" {
		req.Header.Set(callerHeader, c.opts.caller.String())
	}
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func readAPIError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
