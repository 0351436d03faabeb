package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-01"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	apiVersion string
	baseURL    string // overrides https://{shop}; used in tests
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	APIVersion string
	BaseURL    string
	Timeout    time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	return &HTTPAPIClient{
		apiVersion: version,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ListOrders fetches one page of orders.
// GET /orders.json
func (c *HTTPAPIClient) ListOrders(ctx context.Context, s Session, req *ListOrdersRequest) (*OrdersPage, error) {
	q := url.Values{}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.PageInfo != "" {
		// Filters are fixed by the cursor and must not be repeated.
		q.Set("page_info", req.PageInfo)
	} else {
		setIf(q, "status", req.Status)
		setIf(q, "financial_status", req.FinancialStatus)
		setIf(q, "fulfillment_status", req.FulfillmentStatus)
	}

	resp, err := c.doRequest(ctx, s, http.MethodGet, "/orders.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var page OrdersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}
	page.NextPageInfo = nextPageInfo(resp.Header.Get("Link"))
	return &page, nil
}

// ListFulfillmentOrders fetches the fulfillment orders of an order.
// GET /orders/{id}/fulfillment_orders.json
func (c *HTTPAPIClient) ListFulfillmentOrders(ctx context.Context, s Session, orderID string) (*FulfillmentOrdersResponse, error) {
	path := fmt.Sprintf("/orders/%s/fulfillment_orders.json", url.PathEscape(orderID))

	resp, err := c.doRequest(ctx, s, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result FulfillmentOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode fulfillment orders response: %w", err)
	}
	return &result, nil
}

// CreateFulfillment creates a fulfillment.
// POST /fulfillments.json
func (c *HTTPAPIClient) CreateFulfillment(ctx context.Context, s Session, req *CreateFulfillmentRequest) (*FulfillmentResponse, error) {
	resp, err := c.doRequest(ctx, s, http.MethodPost, "/fulfillments.json", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.parseError(resp)
	}

	var result FulfillmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode fulfillment response: %w", err)
	}
	return &result, nil
}

func (c *HTTPAPIClient) shopURL(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, s Session, method, path string, body any) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/admin/api/%s%s", c.shopURL(s.Shop), c.apiVersion, path)

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", s.AccessToken)
	req.Header.Set("User-Agent", "shiplite/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		return &APIError{StatusCode: resp.StatusCode, Errors: envelope.Errors}
	}

	raw, _ := json.Marshal(strings.TrimSpace(string(body)))
	return &APIError{StatusCode: resp.StatusCode, Errors: raw}
}

// nextPageInfo extracts the page_info cursor of the rel="next" link.
// Link: <https://shop/admin/api/2024-01/orders.json?limit=250&page_info=abc>; rel="next"
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		isNext := false
		for _, attr := range segments[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				isNext = true
				break
			}
		}
		if !isNext {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
