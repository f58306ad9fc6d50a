package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/checkout"
	"github.com/xenking/ramen-pos/internal/receipt"
	"github.com/xenking/ramen-pos/internal/register"
)

// RunRegister runs an interactive register session on in and out until the
// cashier quits or ctx is cancelled.
func RunRegister(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, in io.Reader, out io.Writer) error {
	rate, err := cfg.Tax()
	if err != nil {
		return err
	}
	api, err := connectBackend(ctx, lg, m, cfg)
	if err != nil {
		return err
	}

	opts := register.Options{
		Catalog:   api,
		Submitter: checkout.NewSubmitter(api, rate, lg.Named("checkout"), m.TracerProvider()),
		TaxRate:   rate,
		In:        in,
		Out:       out,
		Logger:    lg.Named("register"),
	}
	if cfg.Receipt.Dir != "" {
		w, err := receipt.NewWriter(cfg.Receipt, lg.Named("receipt"))
		if err != nil {
			return errors.Wrap(err, "create receipt writer")
		}
		opts.Receipts = w
	}

	session, err := register.NewSession(opts)
	if err != nil {
		return errors.Wrap(err, "create session")
	}
	return session.Run(ctx)
}
