package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"techshop/ent"
)

type ComponentFilter struct {
	Search string
	Type   ent.ComponentType
}

func (s *Store) ListComponents(ctx context.Context, f ComponentFilter, p Page) ([]ent.ComponentUsage, int, error) {
	var w where
	if f.Search != "" {
		w.add(`(co.name ilike ? or co.volume ilike ?)`, contains(f.Search))
	}
	if f.Type != "" {
		w.add(`co.type = ?`, string(f.Type))
	}

	var total int

	err := s.db.GetContext(ctx, &total, `select count(*) from component_option co`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count components: %w", err)
	}

	limit, args := w.page(p)
	cs := []ent.ComponentUsage{}

	err = s.db.SelectContext(ctx, &cs, `
		select co.id, co.name, co.price, co.volume, co.type,
		       (select count(*) from product_component pc
		        where pc.component_option_id = co.id) as product_count
		from component_option co`+w.String()+`
		order by co.type, co.name, co.id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select components: %w", err)
	}

	return cs, total, nil
}

func (s *Store) GetComponent(ctx context.Context, id int64) (*ent.ComponentOption, error) {
	var c ent.ComponentOption

	err := s.db.GetContext(ctx, &c,
		`select id, name, price, volume, type from component_option where id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}

	return &c, nil
}

func (s *Store) CreateComponent(ctx context.Context, c *ent.ComponentOption) error {
	err := s.db.QueryRowxContext(ctx, `
		insert into component_option(name, price, volume, type)
		values ($1, $2, $3, $4)
		returning id
	`, c.Name, c.Price, c.Volume, c.Type).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert component: %w", mapErr(err))
	}

	return nil
}

func (s *Store) UpdateComponent(ctx context.Context, c *ent.ComponentOption) error {
	res, err := s.db.ExecContext(ctx, `
		update component_option set name = $1, price = $2, volume = $3, type = $4
		where id = $5
	`, c.Name, c.Price, c.Volume, c.Type, c.ID)
	if err != nil {
		return fmt.Errorf("update component: %w", mapErr(err))
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

func (s *Store) DeleteComponent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from component_option where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete component: %w", err)
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

func (s *Store) ScaleComponentPrices(ctx context.Context, ids []int64, factor decimal.Decimal) (int64, error) {
	n, err := s.scalePrices(ctx, "component_option", "price", ids, factor)
	if err != nil {
		return 0, fmt.Errorf("scale component prices: %w", err)
	}

	return n, nil
}
