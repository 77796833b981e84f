package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrUpstreamUnavailable means the drink catalog answered with a
	// non-success status.
	ErrUpstreamUnavailable = errors.New("catalog upstream unavailable")
	// ErrFetch covers transport failures and bodies that cannot be used.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrMissingDrinks is an ErrFetch for a body without a drinks list.
	ErrMissingDrinks = fmt.Errorf("%w: drinks list missing", ErrFetch)
)

// Rand is the source of the per-fetch price and lemon cost.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// globalRand draws from the unseeded package generator, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type Client struct {
	BaseURL    string
	Ingredient string
	Client     *http.Client
	Rand       Rand

	timeout time.Duration
	fetches *prometheus.CounterVec
}

type Option func(*Client)

func WithRand(r Rand) Option {
	return func(c *Client) { c.Rand = r }
}

// WithTimeout bounds each upstream request. It applies on top of
// WithHTTPClient in either order and never mutates the caller's client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.Client = hc }
}

// WithRegistry counts fetches by result on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_fetches_total",
			Help: "Upstream drink catalog fetches by result",
		}, []string{"result"})
		reg.MustRegister(c.fetches)
	}
}

func NewClient(baseURL, ingredient string, opts ...Option) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if ingredient == "" {
		ingredient = DefaultIngredient
	}

	c := &Client{
		BaseURL:    baseURL,
		Ingredient: ingredient,
		Client:     &http.Client{Timeout: defaultTimeout},
		Rand:       globalRand{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.Client.Timeout != c.timeout {
		hc := *c.Client
		hc.Timeout = c.timeout
		c.Client = &hc
	}
	return c
}

type drinkList struct {
	Drinks json.RawMessage `json:"drinks"`
}

type drink struct {
	Name  string `json:"strDrink"`
	Thumb string `json:"strDrinkThumb"`
}

// Fetch queries the catalog for drinks containing the configured ingredient
// and prices each one. Prices and lemon costs are drawn fresh on every call.
func (c *Client) Fetch(ctx context.Context) ([]Product, error) {
	drinks, err := c.fetchDrinks(ctx)
	if err != nil {
		c.observe(err)
		return nil, err
	}
	c.observe(nil)

	out := make([]Product, 0, len(drinks))
	for i, d := range drinks {
		out = append(out, c.toProduct(i, d))
	}
	return out, nil
}

func (c *Client) fetchDrinks(ctx context.Context) ([]drink, error) {
	u := fmt.Sprintf("%s/filter.php?i=%s", c.BaseURL, url.QueryEscape(c.Ingredient))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body drinkList
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrFetch, err)
	}

	raw := strings.TrimSpace(string(body.Drinks))
	if raw == "" || raw == "null" {
		return nil, ErrMissingDrinks
	}

	// The upstream answers "None Found" in place of an empty list.
	var drinks []drink
	if err := json.Unmarshal(body.Drinks, &drinks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingDrinks, err)
	}
	return drinks, nil
}

func (c *Client) toProduct(i int, d drink) Product {
	price := minPrice + (maxPrice-minPrice)*c.Rand.Float64()
	if price >= maxPrice {
		price = math.Nextafter(maxPrice, minPrice)
	}

	image := d.Thumb
	if image == "" {
		image = DefaultImage
	}

	return Product{
		ID:     i,
		Name:   d.Name,
		Price:  price,
		Image:  image,
		Lemons: minLemons + c.Rand.IntN(maxLemons-minLemons+1),
	}
}

func (c *Client) observe(err error) {
	if c.fetches == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		result = "upstream_status"
	case err != nil:
		result = "error"
	}
	c.fetches.WithLabelValues(result).Inc()
}
