package shopify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiplite/pkg/storefront/shopify"
)

var testSession = shopify.Session{Shop: "acme.myshopify.com", AccessToken: "shpat_test"}

func TestHTTPAPIClient_ListOrders_FirstPage(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		q := r.URL.Query()
		assert.Equal(t, "open", q.Get("status"))
		assert.Equal(t, "paid", q.Get("financial_status"))
		assert.Equal(t, "unshipped", q.Get("fulfillment_status"))
		assert.Equal(t, "250", q.Get("limit"))

		w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2024-01/orders.json?limit=250&page_info=abc123>; rel="next"`, srvURL))
		_, _ = w.Write([]byte(`{"orders":[{"id":1001,"name":"#1001","fulfillment_status":null,"total_weight":0,"created_at":"2024-03-01T12:00:00-05:00","line_items":[{"id":1,"quantity":2,"grams":300}]}]}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL})
	page, err := client.ListOrders(context.Background(), testSession, &shopify.ListOrdersRequest{
		Status: "open", FinancialStatus: "paid", FulfillmentStatus: "unshipped", Limit: 250,
	})

	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, int64(1001), page.Orders[0].ID)
	assert.Nil(t, page.Orders[0].FulfillmentStatus)
	assert.Equal(t, "abc123", page.NextPageInfo)
}

func TestHTTPAPIClient_ListOrders_CursorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "abc123", q.Get("page_info"))
		assert.Empty(t, q.Get("status"))

		w.Header().Set("Link", `<https://acme.myshopify.com/admin/api/2024-01/orders.json?page_info=prev>; rel="previous"`)
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL, APIVersion: "2024-01"})
	page, err := client.ListOrders(context.Background(), testSession, &shopify.ListOrdersRequest{
		Status: "open", Limit: 250, PageInfo: "abc123",
	})

	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Empty(t, page.NextPageInfo)
}

func TestHTTPAPIClient_ListOrders_LinkWithPreviousAndNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://a/orders.json?page_info=p1>; rel="previous", <https://a/orders.json?limit=250&page_info=n2>; rel="next"`)
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL})
	page, err := client.ListOrders(context.Background(), testSession, &shopify.ListOrdersRequest{PageInfo: "p0"})

	require.NoError(t, err)
	assert.Equal(t, "n2", page.NextPageInfo)
}

func TestHTTPAPIClient_ListFulfillmentOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders/1001/fulfillment_orders.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"fulfillment_orders":[{"id":55,"order_id":1001,"status":"open","delivery_method":{"method_type":"shipping"}}]}`))
	}))
	defer srv.Close()

	client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL})
	resp, err := client.ListFulfillmentOrders(context.Background(), testSession, "1001")

	require.NoError(t, err)
	require.Len(t, resp.FulfillmentOrders, 1)
	assert.Equal(t, int64(55), resp.FulfillmentOrders[0].ID)
	assert.Equal(t, "shipping", resp.FulfillmentOrders[0].DeliveryMethod.MethodType)
}

func TestHTTPAPIClient_CreateFulfillment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-01/fulfillments.json", r.URL.Path)

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f := body["fulfillment"]
		assert.Equal(t, true, f["notify_customer"])
		tracking := f["tracking_info"].(map[string]any)
		assert.Equal(t, "1ZABC", tracking["number"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"fulfillment":{"id":900,"order_id":1001,"status":"success","tracking_number":"1ZABC"}}`))
	}))
	defer srv.Close()

	client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL})
	resp, err := client.CreateFulfillment(context.Background(), testSession, &shopify.CreateFulfillmentRequest{
		Fulfillment: shopify.FulfillmentInput{
			LineItemsByFulfillmentOrder: []shopify.FulfillmentOrderRef{{FulfillmentOrderID: 55}},
			TrackingInfo:                shopify.TrackingInfo{Number: "1ZABC", Company: "USPS"},
			NotifyCustomer:              true,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(900), resp.Fulfillment.ID)
	assert.Equal(t, "success", resp.Fulfillment.Status)
}

func TestHTTPAPIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"string errors", 401, `{"errors":"[API] Invalid API key or access token"}`, "[API] Invalid API key or access token"},
		{"field errors", 422, `{"errors":{"fulfillment":["is already fulfilled"]}}`, `{"fulfillment":["is already fulfilled"]}`},
		{"plain body", 502, `bad gateway`, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := shopify.NewHTTPAPIClient(shopify.HTTPAPIClientConfig{BaseURL: srv.URL})
			_, err := client.ListFulfillmentOrders(context.Background(), testSession, "1")

			var apiErr *shopify.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message())
		})
	}
}
