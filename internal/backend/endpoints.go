package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/domain/product"
	"github.com/xenking/ramen-pos/internal/wire"
)

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        loginPath,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "login")
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, errors.Wrap(err, "decode login response")
	}
	if resp.AccessToken == "" {
		return Session{}, errors.New("login response has no access token")
	}
	return Session{Token: resp.AccessToken}, nil
}

type menuItemDTO struct {
	ID          flexID          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Stock       int             `json:"stock"`
	CategoryID  flexID          `json:"category_id"`
	IsActive    bool            `json:"is_active"`
	ImageURL    *string         `json:"image_url"`
}

func (d menuItemDTO) toDomain() product.MenuItem {
	item := product.MenuItem{
		ID:         string(d.ID),
		Name:       d.Name,
		UnitPrice:  d.UnitPrice.Round(0).IntPart(),
		Stock:      d.Stock,
		CategoryID: string(d.CategoryID),
		Active:     d.IsActive,
	}
	if d.Description != nil {
		item.Description = *d.Description
	}
	if d.ImageURL != nil {
		item.ImageURL = *d.ImageURL
	}
	return item
}

// ListMenu implements product.Catalog.
func (c *Client) ListMenu(ctx context.Context) ([]product.MenuItem, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: productsPath})
	if err != nil {
		return nil, errors.Wrap(err, "list menu")
	}

	var dtos []menuItemDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	items := make([]product.MenuItem, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, d.toDomain())
	}
	return items, nil
}

// PlaceOrder submits an order in a single request.
func (c *Client) PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Placement, error) {
	r, err := jsonRequest(http.MethodPost, ordersPath, req)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	var resp struct {
		OrderID flexID `json:"order_id"`
		ID      flexID `json:"id"`
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		// The acknowledgement may omit the id or not be an object at all.
		_ = json.Unmarshal(body, &resp)
	}
	id := string(resp.OrderID)
	if id == "" {
		id = string(resp.ID)
	}
	return &order.Placement{OrderID: id}, nil
}

// PatchStatus asks the backend to move an order to status.
func (c *Client) PatchStatus(ctx context.Context, orderID string, status order.Status) error {
	r, err := jsonRequest(http.MethodPatch, ordersPath+"/"+url.PathEscape(orderID)+"/status", struct {
		Status string `json:"status"`
	}{Status: status.String()})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, r); err != nil {
		return errors.Wrap(err, "patch status")
	}
	return nil
}

// ActiveOrders returns the kitchen snapshot.
func (c *Client) ActiveOrders(ctx context.Context) ([]order.Order, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: kitchenPath})
	if err != nil {
		return nil, errors.Wrap(err, "kitchen snapshot")
	}
	orders, skipped, err := wire.DecodeOrders(body)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		c.lg.Warn("Skipping snapshot orders with unknown status", zap.Strings("order_ids", skipped))
	}
	return orders, nil
}
