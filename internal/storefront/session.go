package storefront

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lemonstand/internal/catalog"
)

const (
	InitialStock    = 20
	MsgPurchaseDone = "Purchase complete!"
)

var (
	initialProfit  = decimal.NewFromInt(100)
	lemonBuyPrice  = decimal.NewFromInt(5)
	lemonSalePrice = decimal.NewFromInt(3)
)

// InitialProfit is the balance every new session starts with.
func InitialProfit() decimal.Decimal { return initialProfit }

func LemonBuyPrice() decimal.Decimal { return lemonBuyPrice }

func LemonSalePrice() decimal.Decimal { return lemonSalePrice }

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientFunds = errors.New("insufficient funds for lemons")
	ErrOutOfStock        = errors.New("lemons out of stock")
	ErrInvalidIndex      = errors.New("invalid cart position")
	ErrUnknownProduct    = errors.New("product not in catalog")
)

// Session is one shopper's storefront. Every operation takes the session lock
// and runs to completion before the next one starts. Catalog loads do their
// I/O outside the lock and only swap the catalog in under it; when loads
// overlap, the one started last wins regardless of finish order.
//
// lemonsUsed and lemonsStock are independent counters: adding to the cart
// never checks stock and checkout never consumes it.
type Session struct {
	ID string

	mu          sync.Mutex
	catalog     []catalog.Product
	cart        []catalog.Product
	lemonsUsed  int
	profit      decimal.Decimal
	lemonsStock int
	cartVisible bool

	loadsStarted uint64
	loadApplied  uint64

	lastSeen  time.Time
	expiresAt time.Time

	log *zap.Logger
}

func NewSession(id string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		ID:          id,
		profit:      initialProfit,
		lemonsStock: InitialStock,
		lastSeen:    time.Now(),
		log:         log.With(zap.String("session_id", id)),
	}
}

// Receipt describes a completed checkout.
type Receipt struct {
	Items   int     `json:"items"`
	Total   float64 `json:"total"`
	Profit  float64 `json:"profit"`
	Message string  `json:"message"`
}

// LoadCatalog replaces the catalog with a fresh snapshot. On failure the
// current catalog is kept and the error is logged and returned.
//
// A load that finishes after a later-started load has been applied is
// discarded and reports nil.
func (s *Session) LoadCatalog(ctx context.Context, f catalog.Fetcher) error {
	s.mu.Lock()
	s.loadsStarted++
	seq := s.loadsStarted
	s.mu.Unlock()

	products, err := f.Fetch(ctx)
	if err != nil {
		s.log.Error("load catalog failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	stale := seq < s.loadApplied
	if !stale {
		s.catalog = products
		s.loadApplied = seq
	}
	s.mu.Unlock()

	if stale {
		s.log.Debug("stale catalog load discarded", zap.Uint64("load", seq))
		return nil
	}
	s.log.Debug("catalog loaded", zap.Int("products", len(products)))
	return nil
}

func (s *Session) AddToCart(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(p)
}

// AddToCartByID adds the catalog product with the given id.
func (s *Session) AddToCartByID(id int) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.catalog, func(p catalog.Product) bool { return p.ID == id })
	if i < 0 {
		return catalog.Product{}, ErrUnknownProduct
	}
	p := s.catalog[i]
	s.addLocked(p)
	return p, nil
}

func (s *Session) addLocked(p catalog.Product) {
	s.cart = append(s.cart, p)
	s.lemonsUsed += p.Lemons
}

// RemoveFromCart removes exactly the entry at pos. Out of range positions
// return ErrInvalidIndex and change nothing.
func (s *Session) RemoveFromCart(pos int) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.cart) {
		return catalog.Product{}, ErrInvalidIndex
	}

	p := s.cart[pos]
	s.cart = slices.Delete(s.cart, pos, pos+1)
	s.lemonsUsed -= p.Lemons
	return p, nil
}

// Checkout books the cart total as profit and empties the cart. Lemon stock is
// left alone.
func (s *Session) Checkout() (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cart) == 0 {
		return Receipt{}, ErrEmptyCart
	}

	total := cartTotal(s.cart)
	items := len(s.cart)

	s.profit = s.profit.Add(total)
	s.cart = nil
	s.lemonsUsed = 0

	return Receipt{
		Items:   items,
		Total:   total.InexactFloat64(),
		Profit:  s.profit.InexactFloat64(),
		Message: MsgPurchaseDone,
	}, nil
}

func (s *Session) BuyLemons() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profit.LessThan(lemonBuyPrice) {
		return ErrInsufficientFunds
	}
	s.lemonsStock++
	s.profit = s.profit.Sub(lemonBuyPrice)
	return nil
}

func (s *Session) SellLemons() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lemonsStock <= 0 {
		return ErrOutOfStock
	}
	s.lemonsStock--
	s.profit = s.profit.Add(lemonSalePrice)
	return nil
}

// ToggleCartVisible flips the cart overlay flag and returns the new value.
func (s *Session) ToggleCartVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartVisible = !s.cartVisible
	return s.cartVisible
}

func (s *Session) SetCartVisible(v bool) {
	s.mu.Lock()
	s.cartVisible = v
	s.mu.Unlock()
}

func (s *Session) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartTotal(s.cart)
}

func (s *Session) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart)
}

func (s *Session) LemonsUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lemonsUsed
}

func (s *Session) LemonsStock() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lemonsStock
}

func (s *Session) Profit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profit
}

func (s *Session) CartVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartVisible
}

func (s *Session) Catalog() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.catalog)
}

func (s *Session) Cart() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cart)
}

// Snapshot is a consistent read of the whole session. Money is rendered as
// JSON numbers.
type Snapshot struct {
	Catalog     []catalog.Product `json:"catalog"`
	Cart        []catalog.Product `json:"cart"`
	CartCount   int               `json:"cart_count"`
	CartTotal   float64           `json:"cart_total"`
	LemonsUsed  int               `json:"lemons_used"`
	LemonsStock int               `json:"lemons_stock"`
	Profit      float64           `json:"profit"`
	CartVisible bool              `json:"cart_visible"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Catalog:     nonNil(slices.Clone(s.catalog)),
		Cart:        nonNil(slices.Clone(s.cart)),
		CartCount:   len(s.cart),
		CartTotal:   cartTotal(s.cart).InexactFloat64(),
		LemonsUsed:  s.lemonsUsed,
		LemonsStock: s.lemonsStock,
		Profit:      s.profit.InexactFloat64(),
		CartVisible: s.cartVisible,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// expireAt pins the session lifetime to its token expiry.
func (s *Session) expireAt(t time.Time) {
	s.mu.Lock()
	s.expiresAt = t
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

func cartTotal(cart []catalog.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range cart {
		total = total.Add(decimal.NewFromFloat(p.Price))
	}
	return total
}

func nonNil(ps []catalog.Product) []catalog.Product {
	if ps == nil {
		return []catalog.Product{}
	}
	return ps
}
