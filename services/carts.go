package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/apperr"
	"furnistore/database"
	"furnistore/models"
)

type ItemInput struct {
	ProductID string `json:"productId" validate:"required,mongodb"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type CartLine struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	Price     decimal.Decimal    `json:"price"`
	Stock     int                `json:"stock"`
	Quantity  int                `json:"quantity"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
}

type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type Carts struct {
	tx       Transactor
	carts    CartStore
	products ProductStore
}

func NewCarts(tx Transactor, carts CartStore, products ProductStore) *Carts {
	return &Carts{tx: tx, carts: carts, products: products}
}

func line(p models.Product, qty int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Quantity:  qty,
		Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// Get prices the cart from the live catalog. Lines whose product was
// deleted are left out.
func (s *Carts) Get(ctx context.Context, userID primitive.ObjectID) (CartView, error) {
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	byID := map[primitive.ObjectID]models.Product{}
	if len(ids) > 0 {
		products, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			return CartView{}, err
		}
		for _, p := range products {
			byID[p.ID] = p
		}
	}

	view := CartView{Items: []CartLine{}, Total: decimal.Zero}
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		l := line(p, it.Quantity)
		view.Items = append(view.Items, l)
		view.Total = view.Total.Add(l.Subtotal)
	}
	return view, nil
}

func (s *Carts) product(ctx context.Context, productIDHex string) (models.Product, error) {
	id, err := parseID(productIDHex)
	if err != nil {
		return models.Product{}, err
	}
	p, err := s.products.Get(ctx, id)
	return p, notFound(err, "product.not_found", "Product not found")
}

func insufficientStock() error {
	return apperr.Validation("cart.insufficient_stock", "Quantity exceeds available stock")
}

func (s *Carts) Add(ctx context.Context, userID primitive.ObjectID, in ItemInput) (CartLine, error) {
	if err := check(in); err != nil {
		return CartLine{}, err
	}
	p, err := s.product(ctx, in.ProductID)
	if err != nil {
		return CartLine{}, err
	}

	current := 0
	existing, err := s.carts.Get(ctx, userID, p.ID)
	switch {
	case err == nil:
		current = existing.Quantity
	case errors.Is(err, database.ErrNotFound):
		items, err := s.carts.List(ctx, userID)
		if err != nil {
			return CartLine{}, err
		}
		if len(items) >= MaxOrderLines {
			return CartLine{}, apperr.Validation("cart.too_many_items", "Cart cannot hold more than 100 products")
		}
	default:
		return CartLine{}, err
	}

	total := current + in.Quantity
	if total > MaxLineQuantity {
		return CartLine{}, apperr.Validation("order.quantity_too_large", "Quantity per product cannot exceed 99")
	}
	if total > p.Stock {
		return CartLine{}, insufficientStock()
	}

	item, err := s.carts.Add(ctx, userID, p.ID, in.Quantity)
	if err != nil {
		return CartLine{}, err
	}
	return line(p, item.Quantity), nil
}

// Update sets the quantity of a line; zero removes it.
func (s *Carts) Update(ctx context.Context, userID primitive.ObjectID, productIDHex string, qty int) (*CartLine, error) {
	if qty < 0 || qty > MaxLineQuantity {
		return nil, apperr.Validation("error.validation", "Some fields are invalid").
			WithFields(map[string]string{"quantity": "must be between 0 and 99"})
	}
	if qty == 0 {
		return nil, s.Remove(ctx, userID, productIDHex)
	}
	p, err := s.product(ctx, productIDHex)
	if err != nil {
		return nil, err
	}
	if qty > p.Stock {
		return nil, insufficientStock()
	}
	ok, err := s.carts.SetQuantity(ctx, userID, p.ID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("cart.item_not_found", "Product not found in cart")
	}
	l := line(p, qty)
	return &l, nil
}

func (s *Carts) Remove(ctx context.Context, userID primitive.ObjectID, productIDHex string) error {
	id, err := parseID(productIDHex)
	if err != nil {
		return err
	}
	ok, err := s.carts.Remove(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("cart.item_not_found", "Product not found in cart")
	}
	return nil
}

type ReplaceCartInput struct {
	Items []ItemInput `json:"items" validate:"max=100,dive"`
}

// Replace stores the client's local cart as the server-side cart.
func (s *Carts) Replace(ctx context.Context, userID primitive.ObjectID, in ReplaceCartInput) (CartView, error) {
	if err := check(in); err != nil {
		return CartView{}, err
	}
	lines, err := mergeLines(in.Items)
	if err != nil {
		return CartView{}, err
	}

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if len(lines) > 0 {
			if _, err := loadProducts(ctx, s.products, lines); err != nil {
				return err
			}
		}
		items := make([]models.CartItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, models.CartItem{ProductID: l.productID, Quantity: l.quantity})
		}
		return s.carts.Replace(ctx, userID, items)
	})
	if err != nil {
		return CartView{}, err
	}
	return s.Get(ctx, userID)
}

type mergedLine struct {
	productID primitive.ObjectID
	quantity  int
}

// mergeLines folds repeated product ids into one line, keeping first-seen order.
func mergeLines(items []ItemInput) ([]mergedLine, error) {
	var out []mergedLine
	index := map[primitive.ObjectID]int{}
	for _, it := range items {
		id, err := parseID(it.ProductID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].quantity += it.Quantity
			if out[i].quantity > MaxLineQuantity {
				return nil, apperr.Validation("order.quantity_too_large", "Quantity per product cannot exceed 99").
					WithFields(map[string]string{"items": it.ProductID})
			}
			continue
		}
		index[id] = len(out)
		out = append(out, mergedLine{productID: id, quantity: it.Quantity})
	}
	return out, nil
}

// loadProducts fetches every product referenced by lines, failing with
// NotFound when any is missing.
func loadProducts(ctx context.Context, products ProductStore, lines []mergedLine) (map[primitive.ObjectID]models.Product, error) {
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.productID)
	}
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, l := range lines {
		if _, ok := byID[l.productID]; !ok {
			return nil, apperr.NotFound("product.not_found", "Product not found").
				WithFields(map[string]string{"productId": l.productID.Hex()})
		}
	}
	return byID, nil
}
