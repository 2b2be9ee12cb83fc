package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mononest/backend/payment"
	"github.com/mononest/backend/product"
	resp "github.com/mononest/backend/response"
	"github.com/mononest/backend/user"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Banner is the body of the liveness route
const Banner = "server is running"

// Options contains the routers mounted on the root router
type Options struct {
	Products    *product.Service
	Users       *user.Service
	Payments    *payment.Service
	CORSOrigins []string
	Logger      *zap.Logger
}

func (o *Options) validate() error {
	if o.Products == nil {
		return fmt.Errorf("nil Products is invalid")
	}
	if o.Users == nil {
		return fmt.Errorf("nil Users is invalid")
	}
	if o.Payments == nil {
		return fmt.Errorf("nil Payments is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	return nil
}

// New assembles the HTTP surface of the API
func New(option Options) (http.Handler, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(option.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: option.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", payment.IdempotencyHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.WriteError(w, r, resp.ErrNotFound())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		resp.WriteError(w, r, resp.ErrMethodNotAllowed())
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, Banner)
	})

	r.Mount("/product", option.Products.Router())
	r.Mount("/user", option.Users.Router())
	r.Mount("/payment", option.Payments.Router())
	r.Mount("/create-payment-intent", option.Payments.IntentHandler())

	return r, nil
}

func accessLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request served",
					zap.String("requestID", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
