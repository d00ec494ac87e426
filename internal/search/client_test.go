package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/customsearch/v1"
)

const customSearchResponse = `{
  "kind": "customsearch#search",
  "items": [
    {
      "title": "Corgi 267 Batmobile boxed | eBay",
      "link": "https://www.ebay.com/itm/1",
      "displayLink": "www.ebay.com",
      "snippet": "Sold for $120.50. Free shipping.",
      "pagemap": {"offer": [{"price": "118.00", "pricecurrency": "USD"}]}
    },
    {
      "title": "Corgi Batmobile - WorthPoint",
      "link": "https://www.worthpoint.com/worthopedia/corgi-batmobile",
      "displayLink": "www.worthpoint.com",
      "snippet": "$90 - $110 range for played-with examples"
    },
    {
      "title": "Corgi Batmobile 1966",
      "link": "https://www.ebay.com/itm/2",
      "displayLink": "www.ebay.com",
      "snippet": "no price mentioned",
      "pagemap": {"metatags": [{"og:price:amount": "$135"}]}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		EngineID:          "test-cx",
		Endpoint:          srv.URL + "/",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		BreakerFailures:   2,
		BreakerCooldown:   time.Minute,
		HTTPClient:        srv.Client(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	return c
}

func TestSearchListings_MapsProviderResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
		assert.Equal(t, "corgi batmobile", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(customSearchResponse))
	}, nil)

	res, err := c.SearchListings(context.Background(), "corgi batmobile")
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, "Sold for $120.50. Free shipping.", res.Items[0].Snippet)
	require.NotNil(t, res.Items[0].OfferPrice)
	assert.Equal(t, 118.0, *res.Items[0].OfferPrice)
	assert.Nil(t, res.Items[1].OfferPrice)
	require.NotNil(t, res.Items[2].OfferPrice)
	assert.Equal(t, 135.0, *res.Items[2].OfferPrice)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "ebay.com", res.Sources[0].Hostname)
	assert.Equal(t, 2, res.Sources[0].Count)
	assert.Equal(t, "worthpoint.com", res.Sources[1].Hostname)
}

func TestSearchListings_EmptyItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kind": "customsearch#search"}`))
	}, nil)

	res, err := c.SearchListings(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Sources)
}

func TestSearchListings_ServerErrorIsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 500, "message": "boom"}}`, http.StatusInternalServerError)
	}, nil)

	_, err := c.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindUnavailable, ue.Kind)
}

func TestSearchListings_QuotaExceededIsRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota"}}`))
	}, nil)

	_, err := c.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindRateLimited, ue.Kind)
}

func TestSearchListings_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}, nil)

	_, err := c.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
}

func TestSearchListings_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := c.SearchListings(context.Background(), "q")
		require.Error(t, err)
	}

	_, err := c.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindCircuitOpen, ue.Kind)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the provider")
}

func TestSearchListings_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 30 * time.Millisecond })

	_, err := c.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindTimeout, ue.Kind)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewClient(context.Background(), Config{EngineID: "cx"})
	assert.Error(t, err)
}

func TestMapResults_DerivesSourcesFromDisplayLink(t *testing.T) {
	res := mapResults([]*customsearch.Result{
		nil,
		{Title: "a", DisplayLink: "WWW.RubyLane.com"},
		{Title: "b", Link: "https://sothebys.com/lot/1"},
	})
	require.Len(t, res.Items, 2)
	assert.ElementsMatch(t, []string{"rubylane.com", "sothebys.com"},
		[]string{res.Sources[0].Hostname, res.Sources[1].Hostname})
}

func TestOfferPrice(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"empty", ``, 0, false},
		{"invalid json", `{`, 0, false},
		{"offer string", `{"offer":[{"price":"1,250.00"}]}`, 1250, true},
		{"offer number", `{"offer":[{"price": 42.5}]}`, 42.5, true},
		{"product low price", `{"product":[{"lowprice":"$19"}]}`, 19, true},
		{"offer wins over metatags", `{"metatags":[{"og:price:amount":"5"}],"offer":[{"price":"7"}]}`, 7, true},
		{"unparseable", `{"offer":[{"price":"call"}]}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := offerPrice([]byte(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.SearchListings(context.Background(), "q")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, KindUnavailable, ue.Kind)
}
