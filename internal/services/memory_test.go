package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"workorder-service/internal/models"
	"workorder-service/internal/repository"
)

// memDB is an in-memory stand-in for the PostgreSQL store. Transactions
// snapshot the state and restore it on error, and a single mutex
// serializes them the way row locks do in the real store.
type memDB struct {
	mu        sync.Mutex
	tenants   map[uuid.UUID]*models.Tenant
	customers map[uuid.UUID]*models.Customer
	products  map[uuid.UUID]*models.Product
	movements []models.InventoryMovement
	orders    map[uuid.UUID]*models.Order
	events    []models.OrderEvent
	counters  map[string]int64
}

func newMemDB() *memDB {
	return &memDB{
		tenants:   make(map[uuid.UUID]*models.Tenant),
		customers: make(map[uuid.UUID]*models.Customer),
		products:  make(map[uuid.UUID]*models.Product),
		orders:    make(map[uuid.UUID]*models.Order),
		counters:  make(map[string]int64),
	}
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return &c
}

func (db *memDB) snapshot() *memDB {
	snap := newMemDB()
	for k, v := range db.tenants {
		c := *v
		snap.tenants[k] = &c
	}
	for k, v := range db.customers {
		c := *v
		snap.customers[k] = &c
	}
	for k, v := range db.products {
		c := *v
		snap.products[k] = &c
	}
	for k, v := range db.orders {
		snap.orders[k] = cloneOrder(v)
	}
	snap.movements = append([]models.InventoryMovement(nil), db.movements...)
	snap.events = append([]models.OrderEvent(nil), db.events...)
	for k, v := range db.counters {
		snap.counters[k] = v
	}
	return snap
}

func (db *memDB) restore(snap *memDB) {
	db.tenants = snap.tenants
	db.customers = snap.customers
	db.products = snap.products
	db.orders = snap.orders
	db.movements = snap.movements
	db.events = snap.events
	db.counters = snap.counters
}

func (db *memDB) stores() *repository.Stores {
	return &repository.Stores{
		Tenants:   &memTenants{db},
		Customers: &memCustomers{db},
		Products:  &memProducts{db},
		Orders:    &memOrders{db},
		Events:    &memEvents{db},
	}
}

// memUnitOfWork serializes transactions and rolls back on error
type memUnitOfWork struct {
	db *memDB
}

func (u *memUnitOfWork) Do(ctx context.Context, fn func(s *repository.Stores) error) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()

	snap := u.db.snapshot()
	if err := fn(u.db.stores()); err != nil {
		u.db.restore(snap)
		return err
	}
	return nil
}

func (u *memUnitOfWork) Stores() *repository.Stores {
	return u.db.stores()
}

type memTenants struct{ db *memDB }

func (r *memTenants) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	c := *tenant
	r.db.tenants[tenant.ID] = &c
	return nil
}

func (r *memTenants) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := r.db.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *memTenants) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	for _, t := range r.db.tenants {
		if t.Slug == slug {
			c := *t
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTenants) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	t, ok := r.db.tenants[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	return nil
}

func (r *memTenants) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, t := range r.db.tenants {
		if t.Status != models.TenantSuspended {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memCustomers struct{ db *memDB }

func (r *memCustomers) Create(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	c := *customer
	r.db.customers[customer.ID] = &c
	return nil
}

func (r *memCustomers) Update(ctx context.Context, customer *models.Customer) error {
	existing, ok := r.db.customers[customer.ID]
	if !ok || existing.TenantID != customer.TenantID {
		return repository.ErrNotFound
	}
	c := *customer
	r.db.customers[customer.ID] = &c
	return nil
}

func (r *memCustomers) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	c, ok := r.db.customers[id]
	if !ok || c.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *memCustomers) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*models.Customer, error) {
	if phone == "" {
		return nil, repository.ErrNotFound
	}
	for _, c := range r.db.customers {
		if c.TenantID == tenantID && c.Phone == phone {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCustomers) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Customer, error) {
	if email == "" {
		return nil, repository.ErrNotFound
	}
	for _, c := range r.db.customers {
		if c.TenantID == tenantID && c.Email == email {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCustomers) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Customer, error) {
	q := strings.ToLower(query)
	var exact, rest []models.Customer
	for _, c := range r.db.customers {
		if c.TenantID != tenantID {
			continue
		}
		switch {
		case c.Phone == query:
			exact = append(exact, *c)
		case strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(c.Phone, query) ||
			strings.Contains(strings.ToLower(c.Email), q):
			rest = append(rest, *c)
		}
	}
	out := append(exact, rest...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCustomers) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, c := range r.db.customers {
		if c.TenantID == tenantID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memCustomers) UpdateTotals(ctx context.Context, tenantID, id uuid.UUID, totalOrders int64, totalSpent decimal.Decimal) error {
	c, ok := r.db.customers[id]
	if !ok || c.TenantID != tenantID {
		return repository.ErrNotFound
	}
	c.TotalOrders = totalOrders
	c.TotalSpent = totalSpent
	return nil
}

type memProducts struct{ db *memDB }

func (r *memProducts) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	c := *product
	r.db.products[product.ID] = &c
	return nil
}

func (r *memProducts) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	p, ok := r.db.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *memProducts) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	// Transactions are already serialized by the unit of work's mutex
	return r.GetByID(ctx, tenantID, id)
}

func (r *memProducts) UpdateStock(ctx context.Context, product *models.Product) error {
	p, ok := r.db.products[product.ID]
	if !ok || p.TenantID != product.TenantID {
		return repository.ErrNotFound
	}
	p.Stock = product.Stock
	return nil
}

func (r *memProducts) CreateMovement(ctx context.Context, movement *models.InventoryMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	movement.CreatedAt = time.Now()
	r.db.movements = append(r.db.movements, *movement)
	return nil
}

func (r *memProducts) ListMovements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]models.InventoryMovement, error) {
	var out []models.InventoryMovement
	for i := len(r.db.movements) - 1; i >= 0; i-- {
		m := r.db.movements[i]
		if m.TenantID == tenantID && m.ProductID == productID {
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memProducts) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.db.products {
		if p.TenantID == tenantID && p.Active && p.IsLowStock() {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memOrders struct{ db *memDB }

func (r *memOrders) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	order.CreatedAt = time.Now()
	r.db.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memOrders) Update(ctx context.Context, order *models.Order) error {
	existing, ok := r.db.orders[order.ID]
	if !ok || existing.TenantID != order.TenantID {
		return repository.ErrNotFound
	}
	if existing.Version != order.Version {
		return repository.ErrVersionConflict
	}
	order.Version++
	r.db.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	o, ok := r.db.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrders) List(ctx context.Context, tenantID uuid.UUID, filter repository.OrderFilter) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range r.db.orders {
		if o.TenantID != tenantID {
			continue
		}
		if o.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	total := int64(len(out))
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, total, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r *memOrders) ListByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.db.orders {
		if o.TenantID == tenantID && o.CustomerID == customerID {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *memOrders) AddItem(ctx context.Context, item *models.OrderItem) error {
	o, ok := r.db.orders[item.OrderID]
	if !ok {
		return repository.ErrNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	o.Items = append(o.Items, *item)
	return nil
}

func (r *memOrders) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	o, ok := r.db.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memOrders) NextOrderNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error) {
	prefix := now.Format("20060102")
	key := tenantID.String() + ":" + prefix
	r.db.counters[key]++
	return fmt.Sprintf("WO-%s-%04d", prefix, r.db.counters[key]), nil
}

type memEvents struct{ db *memDB }

func (r *memEvents) Append(ctx context.Context, event *models.OrderEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	r.db.events = append(r.db.events, *event)
	return nil
}

func (r *memEvents) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID, includePrivate bool) ([]models.OrderEvent, error) {
	var out []models.OrderEvent
	for i := len(r.db.events) - 1; i >= 0; i-- {
		e := r.db.events[i]
		if e.TenantID != tenantID || e.OrderID != orderID {
			continue
		}
		if e.IsPrivate && !includePrivate {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memEvents) CountByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (int64, error) {
	var n int64
	for _, e := range r.db.events {
		if e.TenantID == tenantID && e.OrderID == orderID {
			n++
		}
	}
	return n, nil
}
