// ABOUTME: Request handlers for the public site pages and the cart/checkout flow
// ABOUTME: Cart changes are saved back to the cookie before redirecting with 303

package site

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/darkroom/internal/cart"
	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

const maxNameLength = 200

// photoView is a photo prepared for rendering with its image settings applied.
type photoView struct {
	*store.Photo
	Alt      string
	Position string
	Lazy     bool
	Price    string
}

func (s *Site) photoView(p *store.Photo, state *ViewState) photoView {
	v := photoView{
		Photo: p,
		Alt:   p.Title,
		Lazy:  state.Images["lazyLoad"] != false,
		Price: FormatMoney(p.PriceCents, state.Currency),
	}
	if p.ImageSettings == "" {
		return v
	}
	custom, err := settings.Decode(p.ImageSettings)
	if err != nil {
		s.logger.Warn("photo image settings unreadable", "photo", p.ID, "error", err)
		return v
	}
	if alt, ok := custom["alt"].(string); ok && alt != "" {
		v.Alt = alt
	}
	if pos, ok := custom["objectPosition"].(string); ok {
		v.Position = pos
	}
	if lazy, ok := custom["lazyLoad"].(bool); ok {
		v.Lazy = lazy
	}
	return v
}

type pageContent struct {
	Page *store.Page
	Body template.HTML
}

type homeData struct {
	Page     *pageContent
	Featured []photoView
}

func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := homeData{}
	page, err := s.pages.GetPageBySlug(r.Context(), "home")
	switch {
	case err == nil && page.Published:
		data.Page = &pageContent{Page: page, Body: s.markdown(r.Context(), page.Body)}
	case err != nil && !errors.Is(err, store.ErrPageNotFound):
		s.fail(w, r, fmt.Errorf("loading home page: %w", err))
		return
	}

	photos, err := s.photos.ListPhotos(r.Context())
	if err != nil {
		s.fail(w, r, fmt.Errorf("listing photos: %w", err))
		return
	}
	for _, p := range photos {
		if p.Featured {
			data.Featured = append(data.Featured, s.photoView(p, state))
		}
	}

	v := view{ViewState: state, PageTitle: state.Title, Data: data}
	if data.Page != nil {
		v.MetaDescription = data.Page.Page.MetaDescription
	}
	s.render(w, http.StatusOK, "home.html", v)
}

func (s *Site) handleGallery(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	photos, err := s.photos.ListPhotos(r.Context())
	if err != nil {
		s.fail(w, r, fmt.Errorf("listing photos: %w", err))
		return
	}
	views := make([]photoView, 0, len(photos))
	for _, p := range photos {
		views = append(views, s.photoView(p, state))
	}

	s.render(w, http.StatusOK, "gallery.html", view{ViewState: state, PageTitle: "Gallery", Data: views})
}

func (s *Site) handlePhoto(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	photo, err := s.photos.GetPhoto(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrPhotoNotFound) {
		s.notFound(w, state)
		return
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("getting photo: %w", err))
		return
	}

	s.render(w, http.StatusOK, "photo.html", view{
		ViewState:       state,
		PageTitle:       photo.Title,
		MetaDescription: photo.Caption,
		Data:            s.photoView(photo, state),
	})
}

func (s *Site) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, r, "about")
}

func (s *Site) handlePage(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, r, r.PathValue("slug"))
}

// servePage renders a published page by slug. Drafts are not found.
func (s *Site) servePage(w http.ResponseWriter, r *http.Request, slug string) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := s.pages.GetPageBySlug(r.Context(), slug)
	if errors.Is(err, store.ErrPageNotFound) || (err == nil && !page.Published) {
		s.notFound(w, state)
		return
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("getting page %q: %w", slug, err))
		return
	}

	s.render(w, http.StatusOK, "page.html", view{
		ViewState:       state,
		PageTitle:       page.Title,
		MetaDescription: page.MetaDescription,
		Data:            &pageContent{Page: page, Body: s.markdown(r.Context(), page.Body)},
	})
}

type cartData struct {
	Email string
	Name  string
}

func (s *Site) handleCart(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "cart.html", view{ViewState: state, PageTitle: "Cart", Data: cartData{}})
}

func (s *Site) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	photo, err := s.photos.GetPhoto(r.Context(), r.FormValue("photo_id"))
	if errors.Is(err, store.ErrPhotoNotFound) {
		http.Error(w, "Photo not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("getting photo: %w", err))
		return
	}
	if photo.PriceCents <= 0 {
		http.Error(w, "This photo is not for sale", http.StatusBadRequest)
		return
	}

	c := cart.Load(r)
	c.Add(cart.Item{
		PhotoID:    photo.ID,
		Title:      photo.Title,
		PriceCents: photo.PriceCents,
		Quantity:   formQuantity(r, 1),
	})
	s.saveCart(w, r, c)
}

func (s *Site) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	c := cart.Load(r)
	c.Remove(r.FormValue("photo_id"))
	s.saveCart(w, r, c)
}

func (s *Site) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	c := cart.Load(r)
	c.SetQuantity(r.FormValue("photo_id"), formQuantity(r, 0))
	s.saveCart(w, r, c)
}

func (s *Site) saveCart(w http.ResponseWriter, r *http.Request, c *cart.Cart) {
	if err := c.Save(w); err != nil {
		if errors.Is(err, cart.ErrTooLarge) {
			http.Error(w, "Your cart is full", http.StatusBadRequest)
			return
		}
		s.fail(w, r, fmt.Errorf("saving cart: %w", err))
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func formQuantity(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil {
		return fallback
	}
	return n
}

func (s *Site) handleCheckout(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	form := cartData{
		Email: strings.TrimSpace(r.FormValue("email")),
		Name:  strings.TrimSpace(r.FormValue("name")),
	}
	reject := func(msg string) {
		s.render(w, http.StatusBadRequest, "cart.html", view{ViewState: state, PageTitle: "Cart", Flash: msg, Data: form})
	}

	if state.Cart.Empty() {
		reject("Your cart is empty.")
		return
	}
	addr, err := mail.ParseAddress(form.Email)
	if err != nil || addr.Address != form.Email {
		reject("Please enter a valid email address.")
		return
	}
	if form.Name == "" || len(form.Name) > maxNameLength {
		reject("Please enter your name.")
		return
	}

	order := &store.Order{
		ID:        uuid.New().String(),
		Email:     form.Email,
		Name:      form.Name,
		Currency:  state.Currency,
		CreatedAt: time.Now().UTC(),
	}
	// Prices come from the store, not from the cookie.
	for _, it := range state.Cart.Items {
		photo, err := s.photos.GetPhoto(r.Context(), it.PhotoID)
		if errors.Is(err, store.ErrPhotoNotFound) || (err == nil && photo.PriceCents <= 0) {
			reject(fmt.Sprintf("%q is no longer available. Please remove it from your cart.", it.Title))
			return
		}
		if err != nil {
			s.fail(w, r, fmt.Errorf("pricing cart: %w", err))
			return
		}
		order.Items = append(order.Items, store.OrderItem{
			PhotoID:    photo.ID,
			Title:      photo.Title,
			PriceCents: photo.PriceCents,
			Quantity:   it.Quantity,
		})
		order.TotalCents += photo.PriceCents * int64(it.Quantity)
	}

	if err := s.orders.CreateOrder(r.Context(), order); err != nil {
		s.fail(w, r, fmt.Errorf("creating order: %w", err))
		return
	}
	s.logger.Info("order placed", "order", order.ID, "items", len(order.Items), "total_cents", order.TotalCents)
	s.metrics.RecordOrder(order.Currency, order.TotalCents)

	cart.Clear(w)
	http.Redirect(w, r, "/orders/"+order.ID, http.StatusSeeOther)
}

func (s *Site) handleOrder(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	order, err := s.orders.GetOrder(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrOrderNotFound) {
		s.notFound(w, state)
		return
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("getting order: %w", err))
		return
	}

	s.render(w, http.StatusOK, "order.html", view{ViewState: state, PageTitle: "Thank you", Data: order})
}

func (s *Site) handleNotFound(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadViewState(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.notFound(w, state)
}
