// ABOUTME: Shopping cart state container persisted in a browser cookie
// ABOUTME: Load reads the cart at the start of a request and Save writes it back explicitly

package cart

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"
)

// CookieName is the cookie holding the encoded cart.
const CookieName = "darkroom_cart"

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

// Limits that keep the encoded cookie under the 4 KB browsers accept.
const (
	maxItems       = 20
	maxIDBytes     = 48
	maxTitleBytes  = 40
	maxCookieBytes = 3800
)

// ErrTooLarge is returned by Save when the encoded cart would not fit in a cookie.
var ErrTooLarge = errors.New("cart too large for its cookie")

// Item is one print in the cart. Title and price are captured when the item
// is added and re-checked against the store at checkout.
type Item struct {
	PhotoID    string `json:"id"`
	Title      string `json:"t"`
	PriceCents int64  `json:"p"`
	Quantity   int    `json:"q"`
}

// Cart is the cart of one browser.
type Cart struct {
	Items []Item `json:"items"`
}

// Load reads the cart from the request cookie. A missing or unreadable
// cookie yields an empty cart.
func Load(r *http.Request) *Cart {
	c := &Cart{}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return c
	}

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return c
	}
	var decoded Cart
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return c
	}

	for _, it := range decoded.Items {
		if it.PhotoID == "" || it.Quantity < 1 || it.PriceCents < 0 {
			continue
		}
		c.Add(it)
	}
	return c
}

// Save writes the cart cookie. An empty cart clears it.
func (c *Cart) Save(w http.ResponseWriter) error {
	if c.Empty() {
		Clear(w)
		return nil
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	value := base64.RawURLEncoding.EncodeToString(raw)
	if len(value) > maxCookieBytes {
		return ErrTooLarge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear deletes the cart cookie.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Add puts an item in the cart, increasing the quantity if the photo is
// already there. Titles are shortened to fit the cookie; items with
// oversized ids are ignored.
func (c *Cart) Add(item Item) {
	if len(item.PhotoID) > maxIDBytes {
		return
	}
	item.Title = truncate(item.Title, maxTitleBytes)
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	for i := range c.Items {
		if c.Items[i].PhotoID == item.PhotoID {
			c.Items[i].Quantity = min(c.Items[i].Quantity+item.Quantity, MaxQuantity)
			return
		}
	}
	if len(c.Items) >= maxItems {
		return
	}
	item.Quantity = min(item.Quantity, MaxQuantity)
	c.Items = append(c.Items, item)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Remove drops a photo from the cart.
func (c *Cart) Remove(photoID string) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.PhotoID != photoID {
			out = append(out, it)
		}
	}
	c.Items = out
}

// SetQuantity changes the quantity of a line. Zero or less removes it.
func (c *Cart) SetQuantity(photoID string, qty int) {
	if qty <= 0 {
		c.Remove(photoID)
		return
	}
	for i := range c.Items {
		if c.Items[i].PhotoID == photoID {
			c.Items[i].Quantity = min(qty, MaxQuantity)
			return
		}
	}
}

// TotalCents is the sum of price times quantity over all lines.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

// Count is the number of prints in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}
