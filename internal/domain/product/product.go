package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// MenuItem is a sellable item as published by the backend catalog.
//
// UnitPrice is expressed in integer minor currency units.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	UnitPrice   int64
	Stock       int
	CategoryID  string
	Active      bool
	ImageURL    string
}

// Available reports whether the item can be added to a draft.
func (m MenuItem) Available() bool {
	return m.Active && m.Stock > 0
}

// Catalog lists the menu offered by the backend.
type Catalog interface {
	ListMenu(ctx context.Context) ([]MenuItem, error)
}

// Find returns the item with the given id.
func Find(items []MenuItem, id string) (MenuItem, error) {
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return MenuItem{}, errors.Wrapf(ErrNotFound, "id %q", id)
}
