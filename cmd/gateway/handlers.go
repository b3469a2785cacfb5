package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	cartapp "github.com/bloemendal/storefront/internal/cart/app"
	cartdomain "github.com/bloemendal/storefront/internal/cart/domain"
	checkoutapp "github.com/bloemendal/storefront/internal/checkout/app"
	checkoutdomain "github.com/bloemendal/storefront/internal/checkout/domain"
	"github.com/bloemendal/storefront/internal/notify"
	orderapp "github.com/bloemendal/storefront/internal/order/app"
	promoapp "github.com/bloemendal/storefront/internal/promo/app"
	recoveryapp "github.com/bloemendal/storefront/internal/recovery/app"
	"github.com/bloemendal/storefront/internal/settings"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/status"
)

type server struct {
	log      *slog.Logger
	sessions *checkoutapp.Manager
	orders   *orderapp.Service
	recovery *recoveryapp.Service
	settings settings.Provider
	mail     notify.Sender
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("GET /v1/settings", s.handleSettings)
	mux.HandleFunc("GET /v1/orders/{id}", s.handleGetOrder)

	mux.HandleFunc("POST /v1/checkout/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/checkout/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/items", s.handleAddItem)
	mux.HandleFunc("PUT /v1/checkout/sessions/{id}/items/{variantId}", s.handleSetQuantity)
	mux.HandleFunc("DELETE /v1/checkout/sessions/{id}/items/{variantId}", s.handleRemoveItem)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/fields", s.handleSetField)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/country", s.handleSetCountry)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/address-lookup", s.handleAddressLookup)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/promo", s.handleApplyPromo)
	mux.HandleFunc("DELETE /v1/checkout/sessions/{id}/promo", s.handleClearPromo)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/payment-method", s.handlePaymentMethod)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/payment-result", s.handlePaymentResult)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/payment-cancelled", s.handlePaymentCancelled)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/recover", s.handleRecover)
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*checkoutapp.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		s.writeErrorMsg(w, http.StatusNotFound, "NOT_FOUND", "checkout session not found")
		return nil, false
	}
	return sess, true
}

func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"shippingCost":          st.ShippingCost.InexactFloat64(),
		"freeShippingThreshold": st.FreeShippingThreshold.InexactFloat64(),
		"vatRate":               21,
	})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.writeJSON(w, http.StatusCreated, map[string]any{"sessionId": sess.ID()})
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	// Loading a session is the moment the cancellation flag and the
	// staleness window are checked.
	sess.Load(r.Context())

	s.writeSessionState(w, r, sess)
}

type addItemRequest struct {
	ProductID           string  `json:"productId"`
	VariantID           string  `json:"variantId"`
	Name                string  `json:"name"`
	Size                string  `json:"size"`
	Color               string  `json:"color"`
	ColorHex            string  `json:"colorHex"`
	Price               float64 `json:"price"`
	Quantity            int     `json:"quantity"`
	Image               string  `json:"image"`
	SKU                 string  `json:"sku"`
	Stock               int     `json:"stock"`
	IsPresale           bool    `json:"isPresale"`
	PresaleExpectedDate string  `json:"presaleExpectedDate,omitempty"`
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}
	if req.VariantID == "" || req.Quantity <= 0 {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "variantId and a positive quantity are required")
		return
	}

	item := cartdomain.Item{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Name:      req.Name,
		Size:      req.Size,
		Color:     req.Color,
		ColorHex:  req.ColorHex,
		UnitPrice: decimal.NewFromFloat(req.Price),
		Quantity:  req.Quantity,
		Image:     req.Image,
		SKU:       req.SKU,
		Stock:     req.Stock,
		IsPresale: req.IsPresale,
	}
	if req.PresaleExpectedDate != "" {
		if ts, err := time.Parse(time.RFC3339, req.PresaleExpectedDate); err == nil {
			item.PresaleExpectedDate = &ts
		}
	}

	sess.Cart().Add(item)
	s.writeSessionState(w, r, sess)
}

func (s *server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	sess.Cart().SetQuantity(r.PathValue("variantId"), req.Quantity)
	s.writeSessionState(w, r, sess)
}

func (s *server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Cart().Remove(r.PathValue("variantId"))
	s.writeSessionState(w, r, sess)
}

func (s *server) handleSetField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
		Touch bool   `json:"touch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	field := checkoutdomain.Field(req.Field)
	sess.SetField(field, req.Value)
	if req.Touch {
		sess.TouchField(field)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"error": sess.Form().VisibleError(field),
	})
}

func (s *server) handleSetCountry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Country string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Country == "" {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "country is required")
		return
	}

	sess.SetField(checkoutdomain.FieldCountry, req.Country)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAddressLookup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := sess.LookupAddress(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	form := sess.Form()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"street":      form.Street,
		"city":        form.City,
		"fullAddress": form.Lookup.FullAddress,
		"error":       form.Lookup.Err,
	})
}

func (s *server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	snap := sess.Cart().Snapshot()
	applied, err := sess.Promo().Apply(r.Context(), req.Code, snap.Subtotal, promoLines(snap))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"code":           applied.Code,
		"discountType":   string(applied.Type),
		"discountValue":  applied.Value.InexactFloat64(),
		"discountAmount": applied.Amount.InexactFloat64(),
	})
}

func (s *server) handleClearPromo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Promo().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	err := sess.SubmitDetails(r.Context())
	var verr *checkoutapp.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]string, len(verr.Fields))
		for f, msg := range verr.Fields {
			fields[string(f)] = msg
		}
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":   "VALIDATION_FAILED",
			"fields": fields,
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	notify.Dispatch(s.log, s.mail, notify.Message{
		Template: "checkout-started",
		To:       sess.Form().Email,
		Props:    map[string]any{"orderId": sess.OrderID()},
	})

	s.writeSessionState(w, r, sess)
}

func (s *server) handlePaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "payment method is required")
		return
	}

	intent, err := sess.SelectPaymentMethod(r.Context(), req.Method)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"intentId":     intent.ID,
		"clientSecret": intent.ClientSecret,
	})
}

func (s *server) handlePaymentResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Succeeded bool   `json:"succeeded"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	if !req.Succeeded {
		sess.PaymentFailed(r.Context(), req.Reason)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"step":  string(sess.Step()),
			"error": "payment failed, please try again",
		})
		return
	}

	orderID, err := sess.PaymentSucceeded(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	notify.Dispatch(s.log, s.mail, notify.Message{
		Template: "order-confirmation",
		To:       sess.Form().Email,
		Props:    map[string]any{"orderId": orderID},
	})

	s.writeJSON(w, http.StatusOK, map[string]any{
		"step":    string(sess.Step()),
		"orderId": orderID,
	})
}

func (s *server) handlePaymentCancelled(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.MarkPaymentCancelled()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecover(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		s.writeErrorMsg(w, http.StatusBadRequest, "INVALID_ARGUMENT", "orderId is required")
		return
	}

	rec, err := s.recovery.Recover(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess.Restore(rec.Items, rec.Form, rec.OrderID, rec.OrderCreatedAt)
	s.writeSessionState(w, r, sess)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]any{
			"productName":     it.ProductName,
			"size":            it.Size,
			"color":           it.Color,
			"sku":             it.SKU,
			"quantity":        it.Quantity,
			"priceAtPurchase": it.PriceAtPurchase.InexactFloat64(),
			"subtotal":        it.Subtotal.InexactFloat64(),
			"isPresale":       it.IsPresale,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":             order.ID,
		"status":         string(order.Status),
		"paymentStatus":  string(order.PaymentStatus),
		"subtotal":       order.Subtotal.InexactFloat64(),
		"discountAmount": order.DiscountAmount.InexactFloat64(),
		"shippingCost":   order.ShippingCost.InexactFloat64(),
		"total":          order.Total.InexactFloat64(),
		"promoCode":      order.PromoCode,
		"items":          items,
	})
}

func (s *server) writeSessionState(w http.ResponseWriter, r *http.Request, sess *checkoutapp.Session) {
	snap := sess.Cart().Snapshot()

	items := make([]map[string]any, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, map[string]any{
			"productId": it.ProductID,
			"variantId": it.VariantID,
			"name":      it.Name,
			"size":      it.Size,
			"color":     it.Color,
			"price":     it.UnitPrice.InexactFloat64(),
			"quantity":  it.Quantity,
			"isPresale": it.IsPresale,
		})
	}

	state := map[string]any{
		"sessionId": sess.ID(),
		"step":      string(sess.Step()),
		"orderId":   sess.OrderID(),
		"cart": map[string]any{
			"items":     items,
			"subtotal":  snap.Subtotal.InexactFloat64(),
			"itemCount": snap.ItemCount,
		},
	}

	if intent := sess.Intent(); intent.ClientSecret != "" {
		state["clientSecret"] = intent.ClientSecret
	}

	if applied, ok := sess.Promo().Current(); ok {
		state["promo"] = map[string]any{
			"code":           applied.Code,
			"discountType":   string(applied.Type),
			"discountAmount": applied.Amount.InexactFloat64(),
		}
	}

	if totals, err := sess.Totals(r.Context()); err == nil {
		state["totals"] = map[string]any{
			"subtotalAfterDiscount": totals.SubtotalAfterDiscount.InexactFloat64(),
			"shipping":              totals.Shipping.InexactFloat64(),
			"total":                 totals.Total.InexactFloat64(),
			"vatAmount":             totals.VATAmount.InexactFloat64(),
			"shippingVat":           totals.ShippingVAT.InexactFloat64(),
			"totalVat":              totals.TotalVAT.InexactFloat64(),
		}
	}

	s.writeJSON(w, http.StatusOK, state)
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	httpStatus, code, msg := httpStatusFromGRPC(toGRPCStatus(err))
	if httpStatus >= http.StatusInternalServerError {
		s.log.Error("request failed", "code", code, "err", err)
	} else if st, ok := status.FromError(toGRPCStatus(err)); ok {
		s.log.Info("request rejected", "code", code, "reason", st.Message())
	}
	s.writeErrorMsg(w, httpStatus, code, msg)
}

func (s *server) writeErrorMsg(w http.ResponseWriter, httpStatus int, code, msg string) {
	s.writeJSON(w, httpStatus, map[string]any{
		"code":  code,
		"error": msg,
	})
}

func promoLines(snap cartapp.Snapshot) []promoapp.CartLine {
	lines := make([]promoapp.CartLine, 0, len(snap.Items))
	for _, it := range snap.Items {
		lines = append(lines, promoapp.CartLine{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return lines
}
