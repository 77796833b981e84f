package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return r.n }

func upstream(t *testing.T, status int, body string) (*httptest.Server, func() string) {
	t.Helper()

	var (
		mu       sync.Mutex
		gotQuery string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQuery = r.URL.Path + "?" + r.URL.RawQuery
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts, func() string {
		mu.Lock()
		defer mu.Unlock()
		return gotQuery
	}
}

const twoDrinks = `{"drinks":[
	{"strDrink":"Margarita","strDrinkThumb":"https://img/margarita.jpg","idDrink":"1"},
	{"strDrink":"Whiskey Sour","strDrinkThumb":null,"idDrink":"2"}
]}`

func TestClient_Fetch_TransformsInOrder(t *testing.T) {
	ts, query := upstream(t, http.StatusOK, twoDrinks)

	c := NewClient(ts.URL+"/", "lemon", WithRand(fixedRand{f: 0.5, n: 1}))
	products, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/filter.php?i=lemon", query())
	require.Len(t, products, 2)

	assert.Equal(t, Product{ID: 0, Name: "Margarita", Price: 3.5, Image: "https://img/margarita.jpg", Lemons: 2}, products[0])
	assert.Equal(t, Product{ID: 1, Name: "Whiskey Sour", Price: 3.5, Image: DefaultImage, Lemons: 2}, products[1])
}

func TestClient_Fetch_RandomFieldsStayInRange(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"drinks":[`)
	for i := 0; i < 200; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"strDrink":"drink-%d"}`, i)
	}
	b.WriteString(`]}`)

	ts, _ := upstream(t, http.StatusOK, b.String())

	c := NewClient(ts.URL, "lemon", WithRand(rand.New(rand.NewPCG(1, 2))))
	products, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 200)

	for i, p := range products {
		assert.Equal(t, i, p.ID)
		assert.GreaterOrEqual(t, p.Price, 2.0)
		assert.Less(t, p.Price, 5.0)
		assert.GreaterOrEqual(t, p.Lemons, 1)
		assert.LessOrEqual(t, p.Lemons, 5)
	}
}

func TestClient_Fetch_PriceNeverReachesUpperBound(t *testing.T) {
	ts, _ := upstream(t, http.StatusOK, `{"drinks":[{"strDrink":"Edge"}]}`)

	c := NewClient(ts.URL, "lemon", WithRand(fixedRand{f: 0.9999999999999999, n: 4}))
	products, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)

	assert.Less(t, products[0].Price, 5.0)
	assert.Equal(t, 5, products[0].Lemons)
}

func TestClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "upstream 503", status: http.StatusServiceUnavailable, body: `oops`, wantErr: ErrUpstreamUnavailable},
		{name: "upstream 404", status: http.StatusNotFound, body: ``, wantErr: ErrUpstreamUnavailable},
		{name: "malformed body", status: http.StatusOK, body: `{"drinks":[`, wantErr: ErrFetch},
		{name: "missing list", status: http.StatusOK, body: `{}`, wantErr: ErrMissingDrinks},
		{name: "null list", status: http.StatusOK, body: `{"drinks":null}`, wantErr: ErrMissingDrinks},
		{name: "none found", status: http.StatusOK, body: `{"drinks":"None Found"}`, wantErr: ErrMissingDrinks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := upstream(t, tt.status, tt.body)

			products, err := NewClient(ts.URL, "lemon").Fetch(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, products)
		})
	}
}

func TestClient_Fetch_MissingListIsFetchError(t *testing.T) {
	assert.ErrorIs(t, ErrMissingDrinks, ErrFetch)
	assert.NotErrorIs(t, ErrMissingDrinks, ErrUpstreamUnavailable)
}

func TestClient_Fetch_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, "lemon").Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestClient_Fetch_EmptyList(t *testing.T) {
	ts, _ := upstream(t, http.StatusOK, `{"drinks":[]}`)

	products, err := NewClient(ts.URL, "lemon").Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
}

func TestClient_Fetch_CountsResults(t *testing.T) {
	ok, _ := upstream(t, http.StatusOK, twoDrinks)
	down, _ := upstream(t, http.StatusBadGateway, ``)

	reg := prometheus.NewRegistry()
	c := NewClient(ok.URL, "lemon", WithRegistry(reg))

	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	c.BaseURL = down.URL
	_, err = c.Fetch(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetches.WithLabelValues("upstream_status")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.fetches.WithLabelValues("error")))
}

func TestNewClient_DefaultsIngredient(t *testing.T) {
	c := NewClient("http://example.test/api/", "")
	assert.Equal(t, DefaultIngredient, c.Ingredient)
	assert.Equal(t, "http://example.test/api", c.BaseURL)
}

func TestNewClient_TimeoutIndependentOfOptionOrder(t *testing.T) {
	shared := &http.Client{}

	for name, opts := range map[string][]Option{
		"client then timeout": {WithHTTPClient(shared), WithTimeout(time.Millisecond)},
		"timeout then client": {WithTimeout(time.Millisecond), WithHTTPClient(shared)},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewClient("http://example.invalid", "", opts...)
			assert.Equal(t, time.Millisecond, c.Client.Timeout)
			assert.NotSame(t, shared, c.Client)
		})
	}

	assert.Zero(t, shared.Timeout, "caller's client is left alone")

	c := NewClient("http://example.invalid", "", WithHTTPClient(shared))
	assert.Same(t, shared, c.Client)
	assert.Equal(t, defaultTimeout, NewClient("http://example.invalid", "").Client.Timeout)
}
