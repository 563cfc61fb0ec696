package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/menu"
	"teapot/internal/models"
	"teapot/internal/services/delivery"
	"teapot/internal/services/feed"
	"teapot/internal/services/order"
)

// SessionCookie carries the customer's session id
const SessionCookie = "teapot_session"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

// Handler serves the storefront JSON API
type Handler struct {
	catalog  *menu.Catalog
	sessions *Sessions
	feed     *feed.Feed
	logger   *logger.Logger
}

// NewHandler creates a new storefront handler
func NewHandler(catalog *menu.Catalog, sessions *Sessions, orderFeed *feed.Feed, log *logger.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		feed:     orderFeed,
		logger:   log,
	}
}

// Routes builds the router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.withLogging)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)
		r.Get("/menu/tabs", h.GetMenuTabs)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Delete("/cart/items/{name}", h.RemoveCartItem)
			r.Post("/cart/items/{name}/increase", h.IncreaseCartItem)
			r.Post("/cart/items/{name}/decrease", h.DecreaseCartItem)

			r.Post("/delivery", h.UpdateDelivery)
			r.Post("/checkout", h.Checkout)
		})

		r.Get("/staff/orders", h.ListOrders)
		r.Post("/staff/orders/{key}/fulfill", h.FulfillOrder)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// GetMenu handles GET /api/menu[?tab=]
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		h.writeJSON(w, r, http.StatusOK, h.catalog.All())
		return
	}

	items, ok := h.catalog.Items(tab)
	if !ok {
		h.writeErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("Unknown menu tab %q", tab))
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

// GetMenuTabs handles GET /api/menu/tabs
func (h *Handler) GetMenuTabs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.catalog.Tabs())
}

type cartView struct {
	Items       []models.CartLine `json:"items"`
	Count       int               `json:"count"`
	Subtotal    models.Money      `json:"subtotal"`
	DeliveryFee models.Money      `json:"deliveryFee"`
	Total       models.Money      `json:"total"`
}

func newCartView(s *Session) cartView {
	return cartViewOf(s.Cart.Lines(), s.Submitter.DeliveryFee())
}

func cartViewOf(lines []models.CartLine, fee decimal.Decimal) cartView {
	if lines == nil {
		lines = []models.CartLine{}
	}
	subtotal := models.CalculateSubtotal(lines)

	count := 0
	for _, l := range lines {
		count += l.Quantity
	}

	return cartView{
		Items:       lines,
		Count:       count,
		Subtotal:    models.NewMoney(subtotal),
		DeliveryFee: models.NewMoney(fee),
		Total:       models.NewMoney(subtotal.Add(fee)),
	}
}

// GetCart handles GET /api/cart. A visitor without a session sees an empty cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if s == nil {
		h.writeJSON(w, r, http.StatusOK, cartViewOf(nil, h.sessions.DeliveryFee()))
		return
	}
	h.writeJSON(w, r, http.StatusOK, newCartView(s))
}

type addItemRequest struct {
	Name string `json:"name"`
}

// AddCartItem handles POST /api/cart/items. The item reaches the cart through
// the session bus as an ItemAdded message.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	item, ok := h.catalog.Lookup(req.Name)
	if !ok {
		h.writeErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("Unknown menu item %q", req.Name))
		return
	}

	s := sessionFrom(r)
	if err := s.Bus.Publish(r.Context(), events.ItemAdded{Item: item}); err != nil {
		h.logger.Error("item_publish_failed", "Failed to publish item added", requestIDFrom(r), err, nil)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, r, http.StatusOK, newCartView(s))
}

// RemoveCartItem handles DELETE /api/cart/items/{name}
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, sessionFrom(r).Cart.RemoveItem)
}

// IncreaseCartItem handles POST /api/cart/items/{name}/increase
func (h *Handler) IncreaseCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, sessionFrom(r).Cart.IncreaseQuantity)
}

// DecreaseCartItem handles POST /api/cart/items/{name}/decrease
func (h *Handler) DecreaseCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, sessionFrom(r).Cart.DecreaseQuantity)
}

func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, name string) error) {
	name := chi.URLParam(r, "name")
	if err := op(r.Context(), name); err != nil {
		h.logger.Error("cart_update_failed", "Failed to update cart", requestIDFrom(r), err, map[string]interface{}{
			"item": name,
		})
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, newCartView(sessionFrom(r)))
}

type deliveryRequest struct {
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

type deliveryView struct {
	Address string            `json:"address"`
	Phone   string            `json:"phone"`
	Errors  map[string]string `json:"errors"`
}

func (req deliveryRequest) apply(f *delivery.Form) {
	if req.Phone != nil {
		f.SetPhone(*req.Phone)
	}
	if req.Address != nil {
		f.SetAddress(*req.Address)
	}
}

// UpdateDelivery handles POST /api/delivery: per-keystroke normalization and inline messages
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var view deliveryView
	sessionFrom(r).WithForm(func(f *delivery.Form) error {
		req.apply(f)
		info := f.Info()
		view = deliveryView{Address: info.Address, Phone: info.Phone, Errors: f.Errors()}
		return nil
	})

	h.writeJSON(w, r, http.StatusOK, view)
}

// Checkout handles POST /api/checkout. Fields present in the body update the
// form first; the order is then built from the form.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	s := sessionFrom(r)

	var conf *order.Confirmation
	err := s.WithForm(func(f *delivery.Form) error {
		req.apply(f)
		if err := f.Submit(s.Cart.IsEmpty()); err != nil {
			return err
		}

		var err error
		conf, err = s.Submitter.Submit(r.Context(), f.Info(), requestID)
		if err == nil {
			f.Reset()
		}
		return err
	})

	var verr *delivery.ValidationError
	var netErr *order.NetworkError
	switch {
	case err == nil:
		h.writeJSON(w, r, http.StatusOK, conf)
	case errors.As(err, &verr):
		h.writeJSON(w, r, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "Validation failed",
			"fields":     verr.Messages(),
			"request_id": requestID,
		})
	case errors.As(err, &netErr):
		h.writeErrorResponse(w, r, http.StatusBadGateway, "Could not reach the order service. Please try again.")
	default:
		h.logger.Error("checkout_failed", "Checkout failed", requestID, err, nil)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// ListOrders handles GET /api/staff/orders. An idle feed is refreshed first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.feed.State() == feed.Idle {
		if err := h.feed.Refresh(r.Context()); err != nil {
			h.logger.Error("orders_fetch_failed", "Failed to fetch orders", requestIDFrom(r), err, nil)
			h.writeErrorResponse(w, r, http.StatusBadGateway, "Could not reach the order service")
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, h.feed.Orders())
}

// FulfillOrder handles POST /api/staff/orders/{key}/fulfill; key is the order id or phone number
func (h *Handler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	o, ok := h.feed.Find(key)
	if !ok {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Order not found")
		return
	}

	if err := h.feed.MarkFulfilled(r.Context(), o); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.writeErrorResponse(w, r, http.StatusNotFound, "Order not found")
			return
		}
		h.writeErrorResponse(w, r, http.StatusBadGateway, "Failed to mark order fulfilled")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "storefront",
		"feed":      h.feed.State().String(),
		"sessions":  h.sessions.Len(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestIDFrom(r), err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	h.writeJSON(w, r, statusCode, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestIDFrom(r),
	})
}

// withSession resolves the session cookie, issuing a new id when it is missing
// or malformed. Reads without a cookie run with no session.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			next.ServeHTTP(w, r)
			return
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		s, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			h.logger.Error("session_restore_failed", "Failed to restore session", requestIDFrom(r), err, nil)
			h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, s)))
	})
}

// withLogging tags the request with an id and logs start and completion
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))
		w.Header().Set("X-Request-ID", requestID)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

func sessionFrom(r *http.Request) *Session {
	s, _ := r.Context().Value(sessionKey).(*Session)
	return s
}
