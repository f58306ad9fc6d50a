// Package display serves the kitchen board over HTTP for the kitchen screen.
package display

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/board"
	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/pkg/health"
	"github.com/xenking/ramen-pos/pkg/httpmiddleware"
)

// Board exposes the current board view.
type Board interface {
	View() board.View
	Changed() <-chan struct{}
}

// Commander forwards status change requests.
type Commander interface {
	RequestStatusChange(ctx context.Context, orderID string, target order.Status) error
}

// Config controls the display server.
type Config struct {
	Addr        string        `default:"0.0.0.0:8090" usage:"Kitchen display listen address"`
	CORSOrigins []string      `default:"*" usage:"Allowed CORS origins"`
	WaitTimeout time.Duration `default:"25s" usage:"Longest wait of a board long-poll request"`
}

// Server is the kitchen display HTTP API.
type Server struct {
	board    Board
	commands Commander
	health   *health.Health
	cfg      Config
	lg       *zap.Logger
}

// NewServer creates a Server.
func NewServer(b Board, c Commander, h *health.Health, cfg Config, lg *zap.Logger) *Server {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 25 * time.Second
	}
	return &Server{
		board:    b,
		commands: c,
		health:   h,
		cfg:      cfg,
		lg:       lg,
	}
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler(tp trace.TracerProvider, mp metric.MeterProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.NoCache,
		cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpmiddleware.RequestIDHeader},
			ExposedHeaders: []string{httpmiddleware.RequestIDHeader},
			MaxAge:         86400,
		}).Handler,
	)

	r.Get("/livez", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", s.getBoard)
		r.Get("/board/active", s.getActive)
		r.Get("/orders/{orderID}/actions", s.getActions)
		r.Post("/orders/{orderID}/status", s.postStatus)
	})

	h := httpmiddleware.Wrap(r,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(s.lg),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
	)
	return otelhttp.NewHandler(h, "kitchen-display",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
