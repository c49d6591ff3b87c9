// Package testutil provides in-memory stand-ins for storage and the payment
// provider so services and handlers can be tested without MongoDB or network.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/database"
	"furnistore/models"
)

type cartKey struct {
	user    primitive.ObjectID
	product primitive.ObjectID
}

type state struct {
	products  map[primitive.ObjectID]models.Product
	orders    map[primitive.ObjectID]models.Order
	carts     map[cartKey]models.CartItem
	events    map[string]models.WebhookEvent
	outbox    map[string]models.OutboxMessage
	users     map[primitive.ObjectID]models.User
	blacklist map[string]time.Time
}

func (s state) clone() state {
	c := state{
		products:  make(map[primitive.ObjectID]models.Product, len(s.products)),
		orders:    make(map[primitive.ObjectID]models.Order, len(s.orders)),
		carts:     make(map[cartKey]models.CartItem, len(s.carts)),
		events:    make(map[string]models.WebhookEvent, len(s.events)),
		outbox:    make(map[string]models.OutboxMessage, len(s.outbox)),
		users:     make(map[primitive.ObjectID]models.User, len(s.users)),
		blacklist: make(map[string]time.Time, len(s.blacklist)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.blacklist {
		c.blacklist[k] = v
	}
	return c
}

// Store keeps every collection in memory. Transact serializes transactions
// and restores the previous state when fn fails, which mirrors how a MongoDB
// transaction aborts.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	Products      *Products
	Orders        *Orders
	Carts         *Carts
	WebhookEvents *WebhookEvents
	Outbox        *Outbox
	Users         *Users

	// Transactions counts committed transactions.
	Transactions int
}

func NewStore() *Store {
	s := &Store{st: state{}.clone()}
	s.Products = &Products{s: s}
	s.Orders = &Orders{s: s}
	s.Carts = &Carts{s: s}
	s.WebhookEvents = &WebhookEvents{s: s}
	s.Outbox = &Outbox{s: s}
	s.Users = &Users{s: s}
	return s
}

func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.Transactions++
	s.mu.Unlock()
	return nil
}

func (s *Store) locked(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

func paginate[T any](items []T, p, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := 0
	if p > 1 {
		start = (p - 1) * limit
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type Products struct{ s *Store }

// Seed inserts products as-is, assigning ids where missing.
func (r *Products) Seed(products ...models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	r.s.locked(func(st *state) {
		for _, p := range products {
			if p.ID.IsZero() {
				p.ID = primitive.NewObjectID()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = time.Now()
			}
			st.products[p.ID] = p
			out = append(out, p)
		}
	})
	return out
}

func (r *Products) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	var out []models.Product
	r.s.locked(func(st *state) {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r *Products) List(_ context.Context, q models.ProductQuery) ([]models.Product, error) {
	out := []models.Product{}
	r.s.locked(func(st *state) {
		for _, p := range st.products {
			if q.Category != "" && p.Category != q.Category {
				continue
			}
			if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
				continue
			}
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, q.Page, q.Limit), nil
}

func (r *Products) Get(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	var (
		p  models.Product
		ok bool
	)
	r.s.locked(func(st *state) { p, ok = st.products[id] })
	if !ok {
		return models.Product{}, database.ErrNotFound
	}
	return p, nil
}

func (r *Products) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	r.s.locked(func(st *state) {
		for _, p := range st.products {
			if p.Category != "" {
				seen[p.Category] = true
			}
		}
	})
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Products) Create(_ context.Context, p *models.Product) error {
	now := time.Now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.s.locked(func(st *state) { st.products[p.ID] = *p })
	return nil
}

func (r *Products) Update(_ context.Context, id primitive.ObjectID, body models.ProductUpdate) (models.Product, error) {
	var (
		p  models.Product
		ok bool
	)
	r.s.locked(func(st *state) {
		p, ok = st.products[id]
		if !ok {
			return
		}
		if body.Name != nil {
			p.Name = *body.Name
		}
		if body.Description != nil {
			p.Description = *body.Description
		}
		if body.Category != nil {
			p.Category = *body.Category
		}
		if body.Price != nil {
			p.Price = *body.Price
		}
		if body.Stock != nil {
			p.Stock = *body.Stock
		}
		if body.ImageURL != nil {
			p.ImageURL = *body.ImageURL
		}
		p.UpdatedAt = time.Now()
		st.products[id] = p
	})
	if !ok {
		return models.Product{}, database.ErrNotFound
	}
	return p, nil
}

func (r *Products) Delete(_ context.Context, id primitive.ObjectID) error {
	var ok bool
	r.s.locked(func(st *state) {
		_, ok = st.products[id]
		delete(st.products, id)
	})
	if !ok {
		return database.ErrNotFound
	}
	return nil
}

func (r *Products) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) {
		p, found := st.products[id]
		if !found || p.Stock < qty {
			return
		}
		p.Stock -= qty
		st.products[id] = p
		ok = true
	})
	return ok, nil
}

type Orders struct{ s *Store }

func (r *Orders) Insert(_ context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	o := *order
	o.Items = append([]models.OrderItem(nil), order.Items...)
	r.s.locked(func(st *state) { st.orders[o.ID] = o })
	return nil
}

func (r *Orders) update(id primitive.ObjectID, fn func(o *models.Order) bool) (models.Order, bool, bool) {
	var before models.Order
	var found, changed bool
	r.s.locked(func(st *state) {
		o, ok := st.orders[id]
		if !ok {
			return
		}
		found = true
		before = o
		if fn(&o) {
			changed = true
			st.orders[id] = o
		}
	})
	return before, found, changed
}

func (r *Orders) SetPaymentSession(_ context.Context, id primitive.ObjectID, provider, sessionID string) error {
	var dup bool
	r.s.locked(func(st *state) {
		for oid, o := range st.orders {
			if oid != id && o.PaymentSessionID == sessionID {
				dup = true
			}
		}
	})
	if dup {
		return database.ErrDuplicateKey
	}
	_, found, _ := r.update(id, func(o *models.Order) bool {
		o.PaymentProvider = provider
		o.PaymentSessionID = sessionID
		o.UpdatedAt = time.Now()
		return true
	})
	if !found {
		return database.ErrNotFound
	}
	return nil
}

func (r *Orders) Get(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	var (
		o  models.Order
		ok bool
	)
	r.s.locked(func(st *state) { o, ok = st.orders[id] })
	if !ok {
		return models.Order{}, database.ErrNotFound
	}
	return o, nil
}

func (r *Orders) FindBySession(_ context.Context, sessionID string) (models.Order, error) {
	var (
		o  models.Order
		ok bool
	)
	r.s.locked(func(st *state) {
		for _, candidate := range st.orders {
			if sessionID != "" && candidate.PaymentSessionID == sessionID {
				o, ok = candidate, true
				return
			}
		}
	})
	if !ok {
		return models.Order{}, database.ErrNotFound
	}
	return o, nil
}

func (r *Orders) MarkPaid(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	_, _, changed := r.update(id, func(o *models.Order) bool {
		if o.Status != models.OrderPending {
			return false
		}
		o.Status = models.OrderPaid
		o.PaidAt = &at
		o.UpdatedAt = at
		return true
	})
	return changed, nil
}

func (r *Orders) SetStatus(_ context.Context, id primitive.ObjectID, status models.OrderStatus) (models.Order, error) {
	before, found, _ := r.update(id, func(o *models.Order) bool {
		o.Status = status
		o.UpdatedAt = time.Now()
		return true
	})
	if !found {
		return models.Order{}, database.ErrNotFound
	}
	return before, nil
}

func (r *Orders) CancelForUser(_ context.Context, id, userID primitive.ObjectID) (bool, error) {
	_, _, changed := r.update(id, func(o *models.Order) bool {
		if o.UserID != userID || o.Status != models.OrderPending {
			return false
		}
		o.Status = models.OrderCanceled
		return true
	})
	return changed, nil
}

func (r *Orders) Cancel(_ context.Context, id primitive.ObjectID) (bool, error) {
	_, _, changed := r.update(id, func(o *models.Order) bool {
		if o.Status == models.OrderDelivered || o.Status == models.OrderCanceled {
			return false
		}
		o.Status = models.OrderCanceled
		return true
	})
	return changed, nil
}

func (r *Orders) List(_ context.Context, q models.OrderQuery) ([]models.Order, int64, error) {
	out := []models.Order{}
	r.s.locked(func(st *state) {
		for _, o := range st.orders {
			if q.UserID != nil && o.UserID != *q.UserID {
				continue
			}
			if q.Status != "" && o.Status != q.Status {
				continue
			}
			out = append(out, o)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, q.Page, q.Limit), int64(len(out)), nil
}

type Carts struct{ s *Store }

func (r *Carts) List(_ context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	out := []models.CartItem{}
	r.s.locked(func(st *state) {
		for k, it := range st.carts {
			if k.user == userID {
				out = append(out, it)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Carts) Get(_ context.Context, userID, productID primitive.ObjectID) (models.CartItem, error) {
	var (
		it models.CartItem
		ok bool
	)
	r.s.locked(func(st *state) { it, ok = st.carts[cartKey{userID, productID}] })
	if !ok {
		return models.CartItem{}, database.ErrNotFound
	}
	return it, nil
}

func (r *Carts) Add(_ context.Context, userID, productID primitive.ObjectID, qty int) (models.CartItem, error) {
	var it models.CartItem
	r.s.locked(func(st *state) {
		k := cartKey{userID, productID}
		now := time.Now()
		existing, ok := st.carts[k]
		if !ok {
			existing = models.CartItem{ID: primitive.NewObjectID(), UserID: userID, ProductID: productID, CreatedAt: now}
		}
		existing.Quantity += qty
		existing.UpdatedAt = now
		st.carts[k] = existing
		it = existing
	})
	return it, nil
}

func (r *Carts) SetQuantity(_ context.Context, userID, productID primitive.ObjectID, qty int) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) {
		k := cartKey{userID, productID}
		it, found := st.carts[k]
		if !found {
			return
		}
		it.Quantity = qty
		it.UpdatedAt = time.Now()
		st.carts[k] = it
		ok = true
	})
	return ok, nil
}

func (r *Carts) Remove(_ context.Context, userID, productID primitive.ObjectID) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) {
		k := cartKey{userID, productID}
		_, ok = st.carts[k]
		delete(st.carts, k)
	})
	return ok, nil
}

func (r *Carts) Clear(_ context.Context, userID primitive.ObjectID) error {
	r.s.locked(func(st *state) {
		for k := range st.carts {
			if k.user == userID {
				delete(st.carts, k)
			}
		}
	})
	return nil
}

func (r *Carts) Replace(ctx context.Context, userID primitive.ObjectID, items []models.CartItem) error {
	_ = r.Clear(ctx, userID)
	now := time.Now()
	r.s.locked(func(st *state) {
		for i, it := range items {
			it.ID = primitive.NewObjectID()
			it.UserID = userID
			it.CreatedAt = now.Add(time.Duration(i))
			it.UpdatedAt = now
			st.carts[cartKey{userID, it.ProductID}] = it
		}
	})
	return nil
}

type WebhookEvents struct{ s *Store }

func (r *WebhookEvents) Exists(_ context.Context, id string) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) { _, ok = st.events[id] })
	return ok, nil
}

func (r *WebhookEvents) Insert(_ context.Context, event models.WebhookEvent) error {
	var dup bool
	r.s.locked(func(st *state) {
		if _, dup = st.events[event.ID]; !dup {
			st.events[event.ID] = event
		}
	})
	if dup {
		return database.ErrDuplicateKey
	}
	return nil
}

func (r *WebhookEvents) Count() int {
	var n int
	r.s.locked(func(st *state) { n = len(st.events) })
	return n
}

type Outbox struct{ s *Store }

func (r *Outbox) Enqueue(_ context.Context, msg models.OutboxMessage) error {
	var dup bool
	r.s.locked(func(st *state) {
		if _, dup = st.outbox[msg.ID]; !dup {
			st.outbox[msg.ID] = msg
		}
	})
	if dup {
		return database.ErrDuplicateKey
	}
	return nil
}

func (r *Outbox) Pending(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	out := []models.OutboxMessage{}
	for _, m := range r.All() {
		if m.Status == models.OutboxPending {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Outbox) MarkSent(_ context.Context, id string, at time.Time) error {
	r.s.locked(func(st *state) {
		m, ok := st.outbox[id]
		if !ok || m.Status != models.OutboxPending {
			return
		}
		m.Status = models.OutboxSent
		m.SentAt = &at
		m.Attempts++
		st.outbox[id] = m
	})
	return nil
}

func (r *Outbox) MarkFailed(_ context.Context, id string, reason string) error {
	r.s.locked(func(st *state) {
		m, ok := st.outbox[id]
		if !ok {
			return
		}
		m.LastError = reason
		m.Attempts++
		st.outbox[id] = m
	})
	return nil
}

// All returns every message, oldest first.
func (r *Outbox) All() []models.OutboxMessage {
	var out []models.OutboxMessage
	r.s.locked(func(st *state) {
		for _, m := range st.outbox {
			out = append(out, m)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	var dup bool
	r.s.locked(func(st *state) {
		for _, u := range st.users {
			if u.Email == user.Email {
				dup = true
				return
			}
		}
		st.users[user.ID] = *user
	})
	if dup {
		return database.ErrDuplicateKey
	}
	return nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.s.locked(func(st *state) {
		for _, candidate := range st.users {
			if candidate.Email == email {
				u, ok = candidate, true
				return
			}
		}
	})
	if !ok {
		return models.User{}, database.ErrNotFound
	}
	return u, nil
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.s.locked(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return models.User{}, database.ErrNotFound
	}
	return u, nil
}

func (r *Users) Blacklist(_ context.Context, token string, expiresAt time.Time) error {
	r.s.locked(func(st *state) { st.blacklist[token] = expiresAt })
	return nil
}

func (r *Users) IsBlacklisted(_ context.Context, token string) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) { _, ok = st.blacklist[token] })
	return ok, nil
}
