package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	eventrepo "storefront/internal/repository/event"
	orderrepo "storefront/internal/repository/order"
	paymentrepo "storefront/internal/repository/payment"
	productrepo "storefront/internal/repository/product"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Transactions are serialized and work on a
// copy of the state that replaces the original only on success.
type Memory struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{state: newMemState(), now: time.Now}
}

func (m *Memory) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{st: work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// PutUser stores u, assigning an id when empty.
func (m *Memory) PutUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.state.users[u.ID] = u
	return u
}

// PutAddress stores a, assigning an id when empty.
func (m *Memory) PutAddress(a domain.Address) domain.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.state.addresses[a.ID] = a
	return a
}

// PutProduct stores p, assigning an id when empty.
func (m *Memory) PutProduct(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.state.products[p.ID] = p
	return p
}

// Product returns a copy of the stored product.
func (m *Memory) Product(id string) (domain.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	return p, ok
}

type memState struct {
	users     map[string]domain.User
	addresses map[string]domain.Address
	products  map[string]domain.Product
	carts     map[string]domain.Cart // by user id
	orders    map[string]domain.Order
	payments  map[string]domain.Payment // by order id
	events    map[string]string
	seq       int64
}

func newMemState() *memState {
	return &memState{
		users:     map[string]domain.User{},
		addresses: map[string]domain.Address{},
		products:  map[string]domain.Product{},
		carts:     map[string]domain.Cart{},
		orders:    map[string]domain.Order{},
		payments:  map[string]domain.Payment{},
		events:    map[string]string{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		v.Items = append([]domain.CartItem(nil), v.Items...)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	c.seq = s.seq
	return c
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) Orders() orderrepo.Repository       { return memOrders{t} }
func (t *memTx) Payments() paymentrepo.Repository   { return memPayments{t} }
func (t *memTx) Products() productrepo.Repository   { return memProducts{t} }
func (t *memTx) Carts() cartrepo.Repository         { return memCarts{t} }
func (t *memTx) Customers() customerrepo.Repository { return memCustomers{t} }
func (t *memTx) Events() eventrepo.Repository       { return memEvents{t} }

type memProducts struct{ *memTx }

func (r memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memProducts) GetBySKU(_ context.Context, sku string) (*domain.Product, error) {
	for _, p := range r.st.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memProducts) ReserveStock(_ context.Context, id string, qty int) error {
	p, ok := r.st.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock < qty {
		return &domain.InsufficientStockError{ProductID: id, Name: p.Name, Available: p.Stock, Requested: qty}
	}
	p.Stock -= qty
	p.UpdatedAt = r.now()
	r.st.products[id] = p
	return nil
}

func (r memProducts) ReleaseStock(_ context.Context, id string, qty int) error {
	p, ok := r.st.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = r.now()
	r.st.products[id] = p
	return nil
}

type memCarts struct{ *memTx }

func (r memCarts) GetByUser(_ context.Context, userID string) (*domain.Cart, error) {
	c, ok := r.st.carts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Items = append([]domain.CartItem(nil), c.Items...)
	return &c, nil
}

func (r memCarts) AddItem(_ context.Context, userID, productID string, quantity int) error {
	c, ok := r.st.carts[userID]
	if !ok {
		c = domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: r.now()}
	}
	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			merged = true
		}
	}
	if !merged {
		c.Items = append(c.Items, domain.CartItem{ID: uuid.NewString(), CartID: c.ID, ProductID: productID, Quantity: quantity})
	}
	r.st.carts[userID] = c
	return nil
}

func (r memCarts) ChangeItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	for userID, c := range r.st.carts {
		if c.ID != cartID {
			continue
		}
		for i := range c.Items {
			if c.Items[i].ID != itemID {
				continue
			}
			if quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = quantity
			}
			r.st.carts[userID] = c
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r memCarts) Clear(_ context.Context, cartID string) error {
	for userID, c := range r.st.carts {
		if c.ID == cartID {
			c.Items = nil
			r.st.carts[userID] = c
		}
	}
	return nil
}

type memCustomers struct{ *memTx }

func (r memCustomers) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r memCustomers) GetAddress(_ context.Context, id string) (*domain.Address, error) {
	a, ok := r.st.addresses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r memCustomers) AddressBelongsToUser(_ context.Context, addressID, userID string) (bool, error) {
	a, ok := r.st.addresses[addressID]
	return ok && a.UserID == userID, nil
}

type memOrders struct{ *memTx }

func (r memOrders) NextSequence(context.Context) (int64, error) {
	r.st.seq++
	return r.st.seq, nil
}

func (r memOrders) Create(_ context.Context, o *domain.Order) error {
	for _, existing := range r.st.orders {
		if existing.Number == o.Number {
			return domain.ErrAlreadyExists
		}
	}
	o.ID = uuid.NewString()
	o.CreatedAt = r.now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = uuid.NewString()
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Address = nil
	stored.Items = append([]domain.OrderItem(nil), o.Items...)
	r.st.orders[o.ID] = stored
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (r memOrders) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r memOrders) CompareAndSetStatus(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.st.orders[id] = o
	return true, nil
}

func (r memOrders) UpdateNotes(_ context.Context, id, notes string) error {
	o, ok := r.st.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Notes = notes
	o.UpdatedAt = r.now()
	r.st.orders[id] = o
	return nil
}

type memPayments struct{ *memTx }

func (r memPayments) GetByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	p, ok := r.st.payments[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memPayments) GetBySessionID(_ context.Context, sessionID string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return sessionID != "" && p.SessionID == sessionID })
}

func (r memPayments) GetByIntentID(_ context.Context, intentID string) (*domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return intentID != "" && p.IntentID == intentID })
}

func (r memPayments) find(match func(domain.Payment) bool) (*domain.Payment, error) {
	var hits []domain.Payment
	for _, p := range r.st.payments {
		if match(p) {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].UpdatedAt.After(hits[j].UpdatedAt) })
	return &hits[0], nil
}

func (r memPayments) Save(_ context.Context, p *domain.Payment) error {
	if p.SessionID != "" {
		for orderID, other := range r.st.payments {
			if orderID != p.OrderID && other.SessionID == p.SessionID {
				return domain.ErrAlreadyExists
			}
		}
	}
	now := r.now()
	if existing, ok := r.st.payments[p.OrderID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.st.payments[p.OrderID] = *p
	return nil
}

type memEvents struct{ *memTx }

func (r memEvents) Record(_ context.Context, eventID, kind string) error {
	if _, ok := r.st.events[eventID]; ok {
		return domain.ErrAlreadyExists
	}
	r.st.events[eventID] = kind
	return nil
}
