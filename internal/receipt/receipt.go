// Package receipt renders QR receipts for placed orders.
package receipt

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/checkout"
)

// ErrNoOrderID is returned for confirmations the backend did not assign an id to.
var ErrNoOrderID = errors.New("order has no id")

// Config controls receipt output.
type Config struct {
	Dir     string `default:"receipts" usage:"Directory for receipt QR codes (empty disables receipts)"`
	BaseURL string `default:"http://127.0.0.1:8000" usage:"Base URL encoded into receipt QR codes"`
	Size    int    `default:"256" usage:"Receipt QR code size in pixels"`
}

// Writer stores one PNG per order under Dir.
type Writer struct {
	cfg Config
	lg  *zap.Logger
}

// NewWriter creates a Writer, creating Dir if needed.
func NewWriter(cfg Config, lg *zap.Logger) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("receipt dir is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create receipt dir")
	}
	return &Writer{cfg: cfg, lg: lg}, nil
}

// Link returns the URL a receipt for orderID points to.
func (w *Writer) Link(orderID string) string {
	return strings.TrimRight(w.cfg.BaseURL, "/") + "/orders/" + url.PathEscape(orderID)
}

// Encode returns the PNG QR code for orderID.
func (w *Writer) Encode(orderID string) ([]byte, error) {
	if orderID == "" {
		return nil, ErrNoOrderID
	}
	png, err := qrcode.Encode(w.Link(orderID), qrcode.Medium, w.cfg.Size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}

// Write stores the receipt for conf and returns the file path.
func (w *Writer) Write(conf *checkout.Confirmation) (string, error) {
	if conf == nil || conf.OrderID == "" {
		return "", ErrNoOrderID
	}
	png, err := w.Encode(conf.OrderID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(w.cfg.Dir, "order-"+sanitize(conf.OrderID)+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", errors.Wrap(err, "write receipt")
	}
	w.lg.Debug("Receipt written",
		zap.String("order_id", conf.OrderID),
		zap.String("path", path),
	)
	return path, nil
}

// sanitize keeps ids usable as file names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
