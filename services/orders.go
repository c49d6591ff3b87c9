package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/apperr"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/models"
	"furnistore/payment"
)

type CheckoutInput struct {
	Name    string      `json:"name" validate:"required,max=200"`
	Email   string      `json:"email" validate:"required,email"`
	Address string      `json:"address" validate:"required,max=500"`
	City    string      `json:"city" validate:"required,max=100"`
	Country string      `json:"country" validate:"required,max=100"`
	Zip     string      `json:"zip" validate:"required,max=20"`
	Items   []ItemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

type CheckoutResult struct {
	SessionID string `json:"id"`
	URL       string `json:"url"`
	OrderID   string `json:"orderId"`
}

type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

type Orders struct {
	tx        Transactor
	orders    OrderStore
	products  ProductStore
	gateway   payment.Gateway
	currency  string
	publicURL string
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func NewOrders(tx Transactor, orders OrderStore, products ProductStore, gateway payment.Gateway,
	currency, publicURL string, m *metrics.Metrics, log *slog.Logger) *Orders {
	return &Orders{
		tx:        tx,
		orders:    orders,
		products:  products,
		gateway:   gateway,
		currency:  currency,
		publicURL: strings.TrimRight(publicURL, "/"),
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Create prices the requested items from the catalog, stores a PENDING order
// and opens a hosted checkout session for it.
func (s *Orders) Create(ctx context.Context, userID primitive.ObjectID, locale string, in CheckoutInput) (CheckoutResult, error) {
	if err := check(in); err != nil {
		return CheckoutResult{}, err
	}
	lines, err := mergeLines(in.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	var order models.Order
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		products, err := loadProducts(ctx, s.products, lines)
		if err != nil {
			return err
		}

		now := s.now()
		order = models.Order{
			UserID:   userID,
			Items:    make([]models.OrderItem, 0, len(lines)),
			Currency: s.currency,
			Status:   models.OrderPending,
			Shipping: models.ShippingDetails{
				Name:    in.Name,
				Email:   in.Email,
				Address: in.Address,
				City:    in.City,
				Country: in.Country,
				Zip:     in.Zip,
			},
			PaymentProvider: s.gateway.Name(),
			Locale:          locale,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		total := decimal.Zero
		for _, l := range lines {
			p := products[l.productID]
			if l.quantity > p.Stock {
				return apperr.Validation("order.insufficient_stock",
					fmt.Sprintf("Not enough stock for %s, available: %d", p.Name, p.Stock)).
					WithParams(map[string]any{"Product": p.Name, "Available": p.Stock})
			}
			item := models.OrderItem{ProductID: p.ID, Name: p.Name, Quantity: l.quantity, UnitPrice: p.Price}
			order.Items = append(order.Items, item)
			total = total.Add(item.Subtotal())
		}
		order.TotalAmount = total
		return s.orders.Insert(ctx, &order)
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	orderID := order.ID.Hex()
	log := s.log.With(logging.Fields{OrderID: orderID, UserID: userID.Hex(), Step: "checkout"}.Attrs()...)

	req := payment.CheckoutRequest{
		OrderID:       orderID,
		Currency:      order.Currency,
		CustomerEmail: order.Shipping.Email,
		SuccessURL:    s.publicURL + "/checkout/success?orderId=" + url.QueryEscape(orderID),
		CancelURL:     s.publicURL + "/cart",
	}
	for _, it := range order.Items {
		req.Items = append(req.Items, payment.LineItem{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err == nil {
		err = s.orders.SetPaymentSession(ctx, order.ID, s.gateway.Name(), sess.ID)
	}
	if err != nil {
		log.Error("checkout session failed", "error", err)
		if _, cancelErr := s.orders.Cancel(context.WithoutCancel(ctx), order.ID); cancelErr != nil {
			log.Error("cancel order after checkout failure", "error", cancelErr)
		}
		return CheckoutResult{}, apperr.Unexpected(err)
	}

	s.metrics.ObserveOrderCreated()
	log.Info("order created", "total", order.TotalAmount.StringFixed(2), "session_id", sess.ID)
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL, OrderID: orderID}, nil
}

func (s *Orders) list(ctx context.Context, q models.OrderQuery) (OrderPage, error) {
	q.Page, q.Limit = page(q.Page, q.Limit)
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Orders: orders, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *Orders) ListForUser(ctx context.Context, userID primitive.ObjectID, p, limit int) (OrderPage, error) {
	return s.list(ctx, models.OrderQuery{UserID: &userID, Page: p, Limit: limit})
}

func orderNotFound() error {
	return apperr.NotFound("order.not_found", "Order not found")
}

func (s *Orders) Get(ctx context.Context, idHex string) (models.Order, error) {
	id, err := parseID(idHex)
	if err != nil {
		return models.Order{}, err
	}
	order, err := s.orders.Get(ctx, id)
	return order, notFound(err, "order.not_found", "Order not found")
}

// GetForUser hides other users' orders behind NotFound.
func (s *Orders) GetForUser(ctx context.Context, userID primitive.ObjectID, idHex string) (models.Order, error) {
	order, err := s.Get(ctx, idHex)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, orderNotFound()
	}
	return order, nil
}

// CancelForUser cancels the caller's own order while it is still PENDING.
func (s *Orders) CancelForUser(ctx context.Context, userID primitive.ObjectID, idHex string) error {
	order, err := s.GetForUser(ctx, userID, idHex)
	if err != nil {
		return err
	}
	ok, err := s.orders.CancelForUser(ctx, order.ID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("order.cannot_cancel", "Order cannot be canceled")
	}
	s.log.Info("order canceled by customer", logging.Fields{OrderID: idHex, UserID: userID.Hex()}.Attrs()...)
	return nil
}

func (s *Orders) ListAll(ctx context.Context, status string, p, limit int) (OrderPage, error) {
	q := models.OrderQuery{Page: p, Limit: limit}
	if status != "" {
		st, ok := models.ParseStatus(strings.ToUpper(status))
		if !ok {
			return OrderPage{}, apperr.Validation("order.invalid_status", "Invalid status value")
		}
		q.Status = st
	}
	return s.list(ctx, q)
}

// SetStatus applies an admin status change. Any admin status may follow any
// other; the transition is logged.
func (s *Orders) SetStatus(ctx context.Context, idHex, status string) (models.Order, error) {
	id, err := parseID(idHex)
	if err != nil {
		return models.Order{}, err
	}
	st, ok := models.ParseAdminStatus(status)
	if !ok {
		return models.Order{}, apperr.Validation("order.invalid_status", "Invalid status value").
			WithFields(map[string]string{"status": "must be one of PENDING, PROCESSING, SHIPPED, DELIVERED, CANCELED"})
	}

	before, err := s.orders.SetStatus(ctx, id, st)
	if err != nil {
		return models.Order{}, notFound(err, "order.not_found", "Order not found")
	}
	s.log.Info("order status changed", "order_id", idHex, "from", before.Status, "to", st)

	after := before
	after.Status = st
	after.UpdatedAt = s.now()
	return after, nil
}

// CancelAdmin cancels any order that is not already delivered or canceled.
func (s *Orders) CancelAdmin(ctx context.Context, idHex string) error {
	order, err := s.Get(ctx, idHex)
	if err != nil {
		return err
	}
	ok, err := s.orders.Cancel(ctx, order.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("order.cannot_cancel", "Order cannot be canceled")
	}
	s.log.Info("order canceled by admin", "order_id", idHex, "from", order.Status)
	return nil
}
