package product

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mononest/backend/db"
	resp "github.com/mononest/backend/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Options contains the configuration for Service router
type Options struct {
	ProductManager *Manager
	Logger         *zap.Logger
}

// Service is the product API router
type Service struct {
	Options
}

// NewService will create an instance of the product API router
func NewService(option Options) (*Service, error) {
	if option.ProductManager == nil {
		return nil, fmt.Errorf("nil ProductManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.ProductManager.List(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list products",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of products"))
		return
	}

	resp.WriteResponse(w, r, products)
}

// getProduct answers null rather than 404 for an unknown id
func (s *Service) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	logger := s.Logger.With(zap.String("ProductID", id))

	product, err := s.ProductManager.Get(r.Context(), id)
	if errors.Is(err, db.ErrInvalidID) {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid product id"))
		return
	}
	if err != nil {
		logger.Error("Unable to query product",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the product"))
		return
	}

	resp.WriteResponse(w, r, product)
}

// Router will return the routes under product API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listProducts)
	r.Get("/{id}", s.getProduct)

	return r
}
