package catalog

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"lemonstand/pkg/kit"
)

const (
	MsgUpstreamUnavailable = "Failed to fetch data"
	MsgFetchError          = "Error fetching products"
)

// Fetcher produces a fresh catalog snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Product, error)
}

type Server struct {
	Catalog Fetcher
	Log     *zap.Logger
}

func (s *Server) ListHandler() http.HandlerFunc { return s.list }

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.Fetch(r.Context())
	if err != nil {
		if s.Log != nil {
			s.Log.Error("fetch products failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, ErrorMessage(err), nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

// ErrorMessage maps a fetch failure to the message reported to clients.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrUpstreamUnavailable) {
		return MsgUpstreamUnavailable
	}
	return MsgFetchError
}
