// Package app wires the register and the kitchen display from configuration.
package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/backend"
	"github.com/xenking/ramen-pos/internal/stream"
)

// connectBackend creates the backend client and authenticates it. Without
// credentials the client stays anonymous.
func connectBackend(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) (*backend.Client, error) {
	httpClient := &http.Client{
		Timeout: cfg.Backend.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	api, err := backend.New(cfg.Backend.BaseURL, httpClient, backend.Session{Token: cfg.Auth.Token}, lg.Named("backend"))
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	if cfg.Auth.Token != "" || cfg.Auth.Username == "" {
		return api, nil
	}

	session, err := api.Login(ctx, cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	lg.Info("Logged in", zap.String("user", cfg.Auth.Username))
	return api.WithSession(session), nil
}

// newDialer picks the push transport.
func newDialer(cfg *Config, api *backend.Client) stream.Dialer {
	if strings.EqualFold(cfg.Stream.Transport, TransportKafka) {
		return &stream.KafkaDialer{
			Brokers: cfg.Stream.Kafka.Brokers,
			Topic:   cfg.Stream.Kafka.Topic,
			GroupID: cfg.Stream.Kafka.GroupID,
			MaxWait: cfg.Stream.Kafka.MaxWait,
		}
	}
	return &stream.WebSocketDialer{
		URL:         api.StreamURL(),
		Origin:      api.Origin(),
		Header:      api.Session().Header(),
		IdleTimeout: cfg.Stream.IdleTimeout,
	}
}
