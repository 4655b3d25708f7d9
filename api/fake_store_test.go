package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"techshop/ent"
	"techshop/pricing"
	"techshop/store"
)

// fakeStore keeps everything in maps and mirrors the ordering and cascade
// rules of the Postgres store.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time

	categories map[int64]ent.Category
	products   map[int64]ent.Product
	components map[int64]ent.ComponentOption
	links      map[int64][]int64
	orders     map[int64]ent.Order

	pingErr error
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		categories: map[int64]ent.Category{},
		products:   map[int64]ent.Product{},
		components: map[int64]ent.ComponentOption{},
		links:      map[int64][]int64{},
		orders:     map[int64]ent.Order{},
	}
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func pageOf[T any](items []T, p store.Page) []T {
	if p.Offset >= len(items) {
		return []T{}
	}

	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}

	return items[p.Offset:end]
}

func matches(q string, fields ...string) bool {
	q = strings.ToLower(q)
	return lo.SomeBy(fields, func(f string) bool {
		return strings.Contains(strings.ToLower(f), q)
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (f *fakeStore) missing(field string, ids []int64, exists func(int64) bool) error {
	missing := lo.Filter(lo.Uniq(ids), func(id int64, _ int) bool { return !exists(id) })
	if len(missing) != 0 {
		return &store.ReferenceError{Field: field, IDs: missing}
	}
	return nil
}

func (f *fakeStore) sortedCategories() []ent.Category {
	cs := lo.Values(f.categories)
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
	return cs
}

func (f *fakeStore) ListCategories(_ context.Context, p store.Page) ([]ent.Category, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cs := f.sortedCategories()
	return pageOf(cs, p), len(cs), nil
}

func (f *fakeStore) GetCategory(_ context.Context, id int64) (*ent.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c *ent.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c.ID = f.id()
	f.categories[c.ID] = *c
	return nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, c *ent.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.categories[c.ID]; !ok {
		return store.ErrNotFound
	}
	f.categories[c.ID] = *c
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.categories, id)

	for pid, p := range f.products {
		if p.CategoryID == id {
			f.deleteProduct(pid)
		}
	}
	return nil
}

func (f *fakeStore) CategoryStats(_ context.Context, search string, p store.Page) ([]ent.CategoryStats, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stats []ent.CategoryStats
	for _, c := range f.sortedCategories() {
		if search != "" && !matches(search, c.Name) {
			continue
		}

		s := ent.CategoryStats{Category: c}
		total := decimal.Zero
		for _, pr := range f.products {
			if pr.CategoryID == c.ID {
				s.ProductCount++
				s.TotalStock += int64(pr.Stock)
				total = total.Add(pr.BasePrice.Decimal)
			}
		}
		s.TotalValue = ent.NewMoney(total)
		stats = append(stats, s)
	}

	return pageOf(stats, p), len(stats), nil
}

func (f *fakeStore) DuplicateCategories(_ context.Context, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, c := range f.sortedCategories() {
		if lo.Contains(ids, c.ID) {
			cp := ent.Category{ID: f.id(), Name: c.Name + " (копия)"}
			f.categories[cp.ID] = cp
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MergeCategories(_ context.Context, ids []int64) (*ent.Category, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	selected := lo.Filter(f.sortedCategories(), func(c ent.Category, _ int) bool {
		return lo.Contains(ids, c.ID)
	})
	if len(selected) < 2 {
		return nil, 0, store.ErrMergeTooFew
	}

	main := selected[0]
	for _, c := range selected[1:] {
		for pid, p := range f.products {
			if p.CategoryID == c.ID {
				p.CategoryID = main.ID
				f.products[pid] = p
			}
		}
		delete(f.categories, c.ID)
	}

	return &main, int64(len(selected) - 1), nil
}

func (f *fakeStore) load(p ent.Product) ent.Product {
	p.CategoryName = f.categories[p.CategoryID].Name

	p.Components = []ent.ComponentOption{}
	for _, id := range f.links[p.ID] {
		p.Components = append(p.Components, f.components[id])
	}
	sort.Slice(p.Components, func(i, j int) bool {
		a, b := p.Components[i], p.Components[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	p.CompatibleWith = append([]int64{}, p.CompatibleWith...)
	sort.Slice(p.CompatibleWith, func(i, j int) bool { return p.CompatibleWith[i] < p.CompatibleWith[j] })

	return p
}

func (f *fakeStore) ListProducts(_ context.Context, flt store.ProductFilter, p store.Page) ([]ent.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ps := lo.Filter(lo.Values(f.products), func(pr ent.Product, _ int) bool {
		switch {
		case flt.Search != "" && !matches(flt.Search, pr.Name, deref(pr.Description)):
			return false
		case flt.CategoryID != 0 && pr.CategoryID != flt.CategoryID:
			return false
		case flt.ComponentType != "" && pr.ComponentType != flt.ComponentType:
			return false
		case flt.Discount != nil && pr.Discount != *flt.Discount:
			return false
		}
		return true
	})

	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})

	page := lo.Map(pageOf(ps, p), func(pr ent.Product, _ int) ent.Product { return f.load(pr) })
	return page, len(ps), nil
}

func (f *fakeStore) GetProduct(_ context.Context, id int64) (*ent.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	loaded := f.load(p)
	return &loaded, nil
}

func (f *fakeStore) checkProduct(p *ent.Product) error {
	err := f.missing("category", []int64{p.CategoryID}, func(id int64) bool {
		_, ok := f.categories[id]
		return ok
	})
	if err != nil {
		return err
	}

	return f.missing("compatible_with", p.CompatibleWith, func(id int64) bool {
		_, ok := f.products[id]
		return ok
	})
}

func (f *fakeStore) CreateProduct(_ context.Context, p *ent.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkProduct(p); err != nil {
		return err
	}

	p.ID = f.id()
	stored := *p
	stored.CompatibleWith = lo.Uniq(p.CompatibleWith)
	f.products[p.ID] = stored

	*p = f.load(stored)
	return nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p *ent.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	old, ok := f.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}

	if err := f.checkProduct(p); err != nil {
		return err
	}

	stored := *p
	if p.CompatibleWith == nil {
		stored.CompatibleWith = old.CompatibleWith
	} else {
		stored.CompatibleWith = lo.Uniq(p.CompatibleWith)
	}
	f.products[p.ID] = stored

	*p = f.load(stored)
	return nil
}

func (f *fakeStore) deleteProduct(id int64) {
	delete(f.products, id)
	delete(f.links, id)

	for pid, p := range f.products {
		p.CompatibleWith = lo.Without(p.CompatibleWith, id)
		f.products[pid] = p
	}
}

func (f *fakeStore) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	f.deleteProduct(id)
	return nil
}

func (f *fakeStore) SetProductComponents(_ context.Context, id int64, componentIDs []int64) (*ent.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	err := f.missing("components", componentIDs, func(id int64) bool {
		_, ok := f.components[id]
		return ok
	})
	if err != nil {
		return nil, err
	}

	f.links[id] = lo.Uniq(componentIDs)

	loaded := f.load(p)
	return &loaded, nil
}

func (f *fakeStore) ComponentChoices(_ context.Context, productID int64) ([]ent.ComponentOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}

	cs := lo.Filter(f.sortedComponents(), func(c ent.ComponentOption, _ int) bool {
		return p.ComponentType == "" || c.Type == p.ComponentType
	})
	return cs, nil
}

func (f *fakeStore) updateProducts(ids []int64, fn func(p *ent.Product)) int64 {
	var n int64
	for _, id := range lo.Uniq(ids) {
		p, ok := f.products[id]
		if !ok {
			continue
		}
		fn(&p)
		f.products[id] = p
		n++
	}
	return n
}

func (f *fakeStore) SetProductStock(_ context.Context, ids []int64, stock int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if stock < 0 {
		return 0, store.ErrOutOfRange
	}

	return f.updateProducts(ids, func(p *ent.Product) { p.Stock = stock }), nil
}

func (f *fakeStore) SetProductDiscount(_ context.Context, ids []int64, discount int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if discount < 0 || discount > 100 {
		return 0, store.ErrOutOfRange
	}

	return f.updateProducts(ids, func(p *ent.Product) { p.Discount = discount }), nil
}

func (f *fakeStore) ScaleProductPrices(_ context.Context, ids []int64, factor decimal.Decimal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.updateProducts(ids, func(p *ent.Product) {
		p.BasePrice = pricing.Scale(p.BasePrice, factor)
	}), nil
}

func (f *fakeStore) sortedComponents() []ent.ComponentOption {
	cs := lo.Values(f.components)
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return cs
}

func (f *fakeStore) ListComponents(_ context.Context, flt store.ComponentFilter, p store.Page) ([]ent.ComponentUsage, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []ent.ComponentUsage
	for _, c := range f.sortedComponents() {
		if flt.Search != "" && !matches(flt.Search, c.Name, deref(c.Volume)) {
			continue
		}
		if flt.Type != "" && c.Type != flt.Type {
			continue
		}

		var n int64
		for _, ids := range f.links {
			if lo.Contains(ids, c.ID) {
				n++
			}
		}
		rows = append(rows, ent.ComponentUsage{ComponentOption: c, ProductCount: n})
	}

	return pageOf(rows, p), len(rows), nil
}

func (f *fakeStore) GetComponent(_ context.Context, id int64) (*ent.ComponentOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) CreateComponent(_ context.Context, c *ent.ComponentOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c.ID = f.id()
	f.components[c.ID] = *c
	return nil
}

func (f *fakeStore) UpdateComponent(_ context.Context, c *ent.ComponentOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.components[c.ID]; !ok {
		return store.ErrNotFound
	}
	f.components[c.ID] = *c
	return nil
}

func (f *fakeStore) DeleteComponent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.components[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.components, id)

	for pid, ids := range f.links {
		f.links[pid] = lo.Without(ids, id)
	}
	return nil
}

func (f *fakeStore) ScaleComponentPrices(_ context.Context, ids []int64, factor decimal.Decimal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, id := range lo.Uniq(ids) {
		c, ok := f.components[id]
		if !ok {
			continue
		}
		c.Price = pricing.Scale(c.Price, factor)
		f.components[id] = c
		n++
	}
	return n, nil
}

func (f *fakeStore) ListOrders(_ context.Context, flt store.OrderFilter, p store.Page) ([]ent.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders := lo.Filter(lo.Values(f.orders), func(o ent.Order, _ int) bool {
		switch {
		case flt.Search != "" && !matches(flt.Search, o.CustomerName, o.Address, deref(o.Comment)):
			return false
		case flt.Delivery != "" && o.Delivery != flt.Delivery:
			return false
		case flt.Status != "" && o.Status != flt.Status:
			return false
		}
		return true
	})

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})

	return pageOf(orders, p), len(orders), nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (*ent.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *ent.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if o.Status == "" {
		o.Status = ent.StatusPending
	}

	o.ID = f.id()
	f.clock = f.clock.Add(time.Minute)
	o.CreatedAt = f.clock
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, o *ent.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	old, ok := f.orders[o.ID]
	if !ok {
		return store.ErrNotFound
	}

	o.CreatedAt = old.CreatedAt
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeStore) updateOrders(ids []int64, fn func(o *ent.Order)) []int64 {
	updated := []int64{}
	for _, id := range lo.Uniq(ids) {
		o, ok := f.orders[id]
		if !ok {
			continue
		}
		fn(&o)
		f.orders[id] = o
		updated = append(updated, id)
	}
	return updated
}

func (f *fakeStore) SetOrderStatus(_ context.Context, ids []int64, status ent.OrderStatus) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.updateOrders(ids, func(o *ent.Order) { o.Status = status }), nil
}

func (f *fakeStore) SetOrderDelivery(_ context.Context, ids []int64, delivery ent.Delivery) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.updateOrders(ids, func(o *ent.Order) { o.Delivery = delivery }), nil
}
