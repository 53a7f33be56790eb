// Package cart keeps each reader's pending book selection outside the
// database and hands it to the ledger at checkout.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidItem = errors.New("invalid cart item")

type Item struct {
	BookID  uint      `json:"book_id"`
	AddedAt time.Time `json:"added_at"`
}

// Cart is an ordered set of books.
type Cart struct {
	Items []Item `json:"items"`
}

// Add appends bookID unless it is already present. It reports whether the cart changed.
func (c *Cart) Add(bookID uint, at time.Time) bool {
	if c.Contains(bookID) {
		return false
	}
	c.Items = append(c.Items, Item{BookID: bookID, AddedAt: at})
	return true
}

// Remove drops bookID. It reports whether the cart changed.
func (c *Cart) Remove(bookID uint) bool {
	for i, it := range c.Items {
		if it.BookID == bookID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Contains(bookID uint) bool {
	for _, it := range c.Items {
		if it.BookID == bookID {
			return true
		}
	}
	return false
}

// IDs returns book IDs in the order they were added.
func (c *Cart) IDs() []uint {
	out := make([]uint, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.BookID)
	}
	return out
}

func (c *Cart) Len() int { return len(c.Items) }

// Store persists carts by key.
type Store interface {
	// Load returns an empty cart when none is stored.
	Load(ctx context.Context, key string) (*Cart, error)
	Save(ctx context.Context, key string, c *Cart) error
	Clear(ctx context.Context, key string) error
}

// Key is the store key for a user's cart.
func Key(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}
