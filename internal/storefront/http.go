package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lemonstand/internal/catalog"
	"lemonstand/pkg/kit"
)

const (
	maxBodyBytes       = 1 << 16
	defaultSessionTTL  = 2 * time.Hour
	defaultLoadTimeout = 10 * time.Second
)

// Client-facing messages for refused operations.
const (
	MsgEmptyCart         = "Your cart is empty!"
	MsgInsufficientFunds = "Not enough money to buy lemons!"
	MsgOutOfStock        = "No lemons left to sell!"
)

type Server struct {
	Store   Store
	Tokens  *TokenMaker
	Catalog catalog.Fetcher
	Log     *zap.Logger
	Metrics *Metrics

	TTL         time.Duration
	LoadTimeout time.Duration
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", s.create)

	r.Route("/session", func(pr chi.Router) {
		pr.Use(RequireSession(s.Tokens, s.Store))

		pr.Get("/", s.snapshot)
		pr.Delete("/", s.end)
		pr.Post("/catalog", s.reload)

		pr.Post("/cart", s.addToCart)
		pr.Delete("/cart/{position}", s.removeFromCart)
		pr.Post("/cart/visibility/toggle", s.toggleCart)
		pr.Put("/cart/visibility", s.setCartVisibility)

		pr.Post("/checkout", s.checkout)
		pr.Post("/lemons/buy", s.buyLemons)
		pr.Post("/lemons/sell", s.sellLemons)
	})

	return r
}

type createResp struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	sess := NewSession(uuid.NewString(), s.logger())

	token, exp, err := s.Tokens.New(sess.ID, s.ttl())
	if err != nil {
		s.logger().Error("sign session token failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	sess.expireAt(exp)
	s.Store.Put(sess)
	s.Metrics.setSessions(s.Store.Len())
	s.logger().Info("session started", zap.String("session_id", sess.ID))

	s.loadAsync(sess)

	kit.WriteJSON(w, http.StatusCreated, createResp{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: exp.UTC(),
	})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) end(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	s.Store.Delete(sess.ID)
	s.Metrics.setSessions(s.Store.Len())
	s.logger().Info("session ended", zap.String("session_id", sess.ID))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	s.loadAsync(sess)
	kit.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

type addReq struct {
	ProductID *int `json:"product_id"`
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	var req addReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.ProductID == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	if _, err := sess.AddToCartByID(*req.ProductID); err != nil {
		s.writeSessionError(w, r, "add_to_cart", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.writeSessionError(w, r, "remove_from_cart", ErrInvalidIndex)
		return
	}

	if _, err := sess.RemoveFromCart(pos); err != nil {
		s.writeSessionError(w, r, "remove_from_cart", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	receipt, err := sess.Checkout()
	if err != nil {
		s.writeSessionError(w, r, "checkout", err)
		return
	}
	s.Metrics.checkout(receipt)
	kit.WriteJSON(w, http.StatusOK, receipt)
}

func (s *Server) buyLemons(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	if err := sess.BuyLemons(); err != nil {
		s.writeSessionError(w, r, "buy_lemons", err)
		return
	}
	s.Metrics.trade("buy")
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) sellLemons(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	if err := sess.SellLemons(); err != nil {
		s.writeSessionError(w, r, "sell_lemons", err)
		return
	}
	s.Metrics.trade("sell")
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) toggleCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	sess.ToggleCartVisible()
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

type visibilityReq struct {
	Visible *bool `json:"visible"`
}

// setCartVisibility also serves the overlay's outside-click, which sends
// {"visible": false}.
func (s *Server) setCartVisibility(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	var req visibilityReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Visible == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "visible required", nil)
		return
	}

	sess.SetCartVisible(*req.Visible)
	kit.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

// loadAsync refreshes the session catalog in the background. Failures are
// logged by the session and the previous catalog stays in place.
func (s *Server) loadAsync(sess *Session) {
	timeout := s.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = sess.LoadCatalog(ctx, s.Catalog)
	}()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after json object")
	}
	return nil
}

func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		s.reject(op, "empty_cart")
		kit.WriteError(w, r, http.StatusConflict, MsgEmptyCart, nil)
	case errors.Is(err, ErrInsufficientFunds):
		s.reject(op, "insufficient_funds")
		kit.WriteError(w, r, http.StatusConflict, MsgInsufficientFunds, nil)
	case errors.Is(err, ErrOutOfStock):
		s.reject(op, "out_of_stock")
		kit.WriteError(w, r, http.StatusConflict, MsgOutOfStock, nil)
	case errors.Is(err, ErrInvalidIndex):
		s.reject(op, "invalid_index")
		kit.WriteError(w, r, http.StatusBadRequest, "invalid cart position",
			map[string]any{"position": chi.URLParam(r, "position")})
	case errors.Is(err, ErrUnknownProduct):
		s.reject(op, "unknown_product")
		kit.WriteError(w, r, http.StatusNotFound, "product not found", nil)
	default:
		s.logger().Error("session operation failed", zap.String("op", op), zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) reject(op, reason string) {
	s.Metrics.rejected(op, reason)
	s.logger().Debug("operation rejected", zap.String("op", op), zap.String("reason", reason))
}

func (s *Server) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultSessionTTL
	}
	return s.TTL
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
