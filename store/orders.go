package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"techshop/ent"
)

type OrderFilter struct {
	Search   string
	Delivery ent.Delivery
	Status   ent.OrderStatus
}

const orderColumns = `id, customer_name, address, delivery, comment, total, created_at, items, status`

func (s *Store) ListOrders(ctx context.Context, f OrderFilter, p Page) ([]ent.Order, int, error) {
	var w where
	if f.Search != "" {
		w.add(`(customer_name ilike ? or address ilike ? or comment ilike ?)`, contains(f.Search))
	}
	if f.Delivery != "" {
		w.add(`delivery = ?`, string(f.Delivery))
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}

	var total int

	err := s.db.GetContext(ctx, &total, `select count(*) from orders`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit, args := w.page(p)
	orders := []ent.Order{}

	err = s.db.SelectContext(ctx, &orders, `select `+orderColumns+` from orders`+w.String()+`
		order by created_at desc, id desc`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}

	return orders, total, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*ent.Order, error) {
	var o ent.Order

	err := s.db.GetContext(ctx, &o, `select `+orderColumns+` from orders where id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}

	return &o, nil
}

// CreateOrder inserts o; id and created_at are assigned by the database.
func (s *Store) CreateOrder(ctx context.Context, o *ent.Order) error {
	if o.Status == "" {
		o.Status = ent.StatusPending
	}

	err := s.db.QueryRowxContext(ctx, `
		insert into orders(customer_name, address, delivery, comment, total, items, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, created_at
	`, o.CustomerName, o.Address, o.Delivery, o.Comment, o.Total, o.Items, o.Status).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapErr(err))
	}

	return nil
}

// UpdateOrder overwrites every field except created_at.
func (s *Store) UpdateOrder(ctx context.Context, o *ent.Order) error {
	err := s.db.QueryRowxContext(ctx, `
		update orders set customer_name = $1, address = $2, delivery = $3,
		    comment = $4, total = $5, items = $6, status = $7
		where id = $8
		returning created_at
	`, o.CustomerName, o.Address, o.Delivery, o.Comment, o.Total, o.Items, o.Status, o.ID).
		Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", mapErr(err))
	}

	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from orders where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// SetOrderStatus updates the selected orders and returns the ids it touched.
func (s *Store) SetOrderStatus(ctx context.Context, ids []int64, status ent.OrderStatus) ([]int64, error) {
	updated := []int64{}

	err := s.db.SelectContext(ctx, &updated, `
		update orders set status = $1 where id = any($2)
		returning id
	`, status, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("set order status: %w", mapErr(err))
	}

	return updated, nil
}

func (s *Store) SetOrderDelivery(ctx context.Context, ids []int64, delivery ent.Delivery) ([]int64, error) {
	updated := []int64{}

	err := s.db.SelectContext(ctx, &updated, `
		update orders set delivery = $1 where id = any($2)
		returning id
	`, delivery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("set order delivery: %w", mapErr(err))
	}

	return updated, nil
}
