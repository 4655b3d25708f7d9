package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"techshop/ent"
)

const copySuffix = " (копия)"

func (s *Store) ListCategories(ctx context.Context, p Page) ([]ent.Category, int, error) {
	var total int

	err := s.db.GetContext(ctx, &total, `select count(*) from category`)
	if err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	cs := []ent.Category{}

	err = s.db.SelectContext(ctx, &cs, `
		select id, name from category
		order by name, id
		limit $1 offset $2
	`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("select categories: %w", err)
	}

	return cs, total, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*ent.Category, error) {
	var c ent.Category

	err := s.db.GetContext(ctx, &c, `select id, name from category where id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}

	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *ent.Category) error {
	err := s.db.QueryRowxContext(ctx,
		`insert into category(name) values ($1) returning id`, c.Name).
		Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert category: %w", mapErr(err))
	}

	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *ent.Category) error {
	res, err := s.db.ExecContext(ctx,
		`update category set name = $1 where id = $2`, c.Name, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
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

// DeleteCategory removes the category together with its products.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from category where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
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

// CategoryStats lists categories with aggregates over their products.
func (s *Store) CategoryStats(ctx context.Context, search string, p Page) ([]ent.CategoryStats, int, error) {
	var w where
	if search != "" {
		w.add(`c.name ilike ?`, contains(search))
	}

	var total int

	err := s.db.GetContext(ctx, &total, `select count(*) from category c`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	limit, args := w.page(p)
	cs := []ent.CategoryStats{}

	err = s.db.SelectContext(ctx, &cs, `
		select c.id, c.name,
		       count(p.id) as product_count,
		       coalesce(sum(p.stock), 0) as total_stock,
		       coalesce(sum(p.base_price), 0) as total_value
		from category c
		    left join product p on p.category_id = c.id`+w.String()+`
		group by c.id
		order by c.name, c.id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select category stats: %w", err)
	}

	return cs, total, nil
}

// DuplicateCategories copies the selected categories (without products).
func (s *Store) DuplicateCategories(ctx context.Context, ids []int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into category(name)
		select left(name || $1, 100) from category
		where id = any($2)
		order by name, id
	`, copySuffix, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("duplicate categories: %w", err)
	}

	return affected(res)
}

// MergeCategories moves every product of the selected categories into the
// first of them by name and deletes the rest. It returns the surviving
// category and the number of deleted ones.
func (s *Store) MergeCategories(ctx context.Context, ids []int64) (*ent.Category, int64, error) {
	ids = lo.Uniq(ids)
	if len(ids) < 2 {
		return nil, 0, ErrMergeTooFew
	}

	var (
		main   ent.Category
		merged int64
	)

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var cs []ent.Category

		err := tx.SelectContext(ctx, &cs, `
			select id, name from category
			where id = any($1)
			order by name, id
			for update
		`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("select categories: %w", err)
		}

		if len(cs) < 2 {
			return ErrMergeTooFew
		}

		main = cs[0]
		others := lo.Map(cs[1:], func(c ent.Category, _ int) int64 { return c.ID })

		_, err = tx.ExecContext(ctx, `
			update product set category_id = $1
			where category_id = any($2)
		`, main.ID, pq.Array(others))
		if err != nil {
			return fmt.Errorf("move products: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`delete from category where id = any($1)`, pq.Array(others))
		if err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}

		merged, err = affected(res)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return &main, merged, nil
}
