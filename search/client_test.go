package search

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"protein-hunter/config"
)

func testConfig(pageSize, maxPages int) config.SearchConfig {
	return config.SearchConfig{
		Endpoint: "https://api.test/search",
		AppID:    "test-app",
		PageSize: pageSize,
		MaxPages: maxPages,
		Timeout:  5 * time.Second,
	}
}

func newTestClient(t *testing.T, cfg config.SearchConfig) *Client {
	t.Helper()
	client, err := NewClient(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	httpmock.ActivateNonDefault(client.httpc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestSearchParsesListings(t *testing.T) {
	client := newTestClient(t, testConfig(30, 3))

	body := `{"items":[
		{"itemCode":"shopx:100","itemName":"WPC 1kg","itemPrice":2980,"itemUrl":"https://item/100",
		 "shopName":"ShopX","postageFlag":1,"pointRate":2,
		 "mediumImageUrls":["https://img/100.jpg?_ex=128x128"]}
	]}`
	httpmock.RegisterResponder("GET", "https://api.test/search",
		httpmock.NewStringResponder(http.StatusOK, body))

	listings, err := client.Search(context.Background(), "WPC", 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}
	got := listings[0]
	if got.ItemCode != "shopx:100" || got.ItemPrice != 2980 || got.PostageFlag != 1 {
		t.Errorf("unexpected listing: %+v", got)
	}
	if got.PointRate != 2 {
		t.Errorf("PointRate = %v, want 2", got.PointRate)
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Errorf("call count = %d, want 1 (short page stops pagination)", httpmock.GetTotalCallCount())
	}
}

func TestSearchLegacyWrappedListings(t *testing.T) {
	client := newTestClient(t, testConfig(30, 3))

	body := `{"Items":[{"Item":{"itemCode":"shopy:7","itemName":"WPI","itemPrice":4500,"shopName":"ShopY"}}]}`
	httpmock.RegisterResponder("GET", "https://api.test/search",
		httpmock.NewStringResponder(http.StatusOK, body))

	listings, err := client.Search(context.Background(), "WPI", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 1 || listings[0].ItemCode != "shopy:7" {
		t.Fatalf("listings = %+v, want one wrapped item", listings)
	}
}

func TestSearchPaginates(t *testing.T) {
	client := newTestClient(t, testConfig(2, 5))

	httpmock.RegisterResponder("GET", "https://api.test/search",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("applicationId") != "test-app" {
				t.Errorf("applicationId = %q", q.Get("applicationId"))
			}
			if q.Get("sort") != "+itemPrice" {
				t.Errorf("sort = %q", q.Get("sort"))
			}
			switch q.Get("page") {
			case "1":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"items":[{"itemCode":"a:1","itemPrice":100},{"itemCode":"a:2","itemPrice":200}]}`), nil
			case "2":
				return httpmock.NewStringResponse(http.StatusOK,
					`{"items":[{"itemCode":"a:3","itemPrice":300}]}`), nil
			default:
				t.Errorf("unexpected page %q", q.Get("page"))
				return httpmock.NewStringResponse(http.StatusOK, `{"items":[]}`), nil
			}
		})

	listings, err := client.Search(context.Background(), "protein", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("listings = %d, want 3", len(listings))
	}
	if httpmock.GetTotalCallCount() != 2 {
		t.Errorf("call count = %d, want 2", httpmock.GetTotalCallCount())
	}
}

func TestSearchServesRepeatFromCache(t *testing.T) {
	client := newTestClient(t, testConfig(30, 3))

	httpmock.RegisterResponder("GET", "https://api.test/search",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"itemCode":"a:1","itemPrice":100}]}`))

	for i := 0; i < 2; i++ {
		if _, err := client.Search(context.Background(), "soy", 10); err != nil {
			t.Fatalf("Search #%d: %v", i+1, err)
		}
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Errorf("call count = %d, want 1 (second search cached)", httpmock.GetTotalCallCount())
	}
}

func TestSearchAPIErrorPayload(t *testing.T) {
	client := newTestClient(t, testConfig(30, 3))

	httpmock.RegisterResponder("GET", "https://api.test/search",
		httpmock.NewStringResponder(http.StatusOK,
			`{"error":"wrong_parameter","error_description":"keyword is not specified"}`))

	_, err := client.Search(context.Background(), "x", 10)
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Code != "wrong_parameter" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestSearchStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var e ErrUnauthorized
			return errors.As(err, &e)
		}},
		{"forbidden", http.StatusForbidden, func(err error) bool {
			var e ErrUnauthorized
			return errors.As(err, &e)
		}},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var e ErrRateLimited
			return errors.As(err, &e)
		}},
		{"server error", http.StatusServiceUnavailable, func(err error) bool {
			var e ErrServer
			return errors.As(err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, testConfig(30, 3))
			httpmock.RegisterResponder("GET", "https://api.test/search",
				httpmock.NewStringResponder(tt.status, "{}"))

			_, err := client.Search(context.Background(), "x", 10)
			if err == nil || !tt.check(err) {
				t.Errorf("err = %v, want %s", err, tt.name)
			}
		})
	}
}

func TestSearchRequiresAppID(t *testing.T) {
	cfg := testConfig(30, 3)
	cfg.AppID = ""
	client := newTestClient(t, cfg)

	if _, err := client.Search(context.Background(), "x", 10); !errors.Is(err, ErrMissingAppID) {
		t.Fatalf("err = %v, want ErrMissingAppID", err)
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTimeout{Err: errors.New("t")}, "timeout"},
		{ErrUnauthorized{Err: errors.New("u")}, "unauthorized"},
		{ErrRateLimited{Err: errors.New("r")}, "rate_limited"},
		{ErrServer{Err: errors.New("s")}, "server"},
		{APIError{Code: "wrong_parameter"}, "api_error"},
		{errors.New("misc"), "other"},
		{nil, "unknown"},
	}
	for _, tt := range tests {
		if got := errorTypeLabel(tt.err); got != tt.want {
			t.Errorf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
