package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"techshop/ent"
)

type ProductFilter struct {
	Search        string
	CategoryID    int64
	ComponentType ent.ComponentType
	Discount      *int
}

func (f ProductFilter) where() *where {
	w := &where{}
	if f.Search != "" {
		w.add(`(p.name ilike ? or p.description ilike ?)`, contains(f.Search))
	}
	if f.CategoryID != 0 {
		w.add(`p.category_id = ?`, f.CategoryID)
	}
	if f.ComponentType != "" {
		w.add(`p.component_type = ?`, string(f.ComponentType))
	}
	if f.Discount != nil {
		w.add(`p.discount = ?`, *f.Discount)
	}
	return w
}

const productSelect = `
	select p.id, p.name, p.category_id, c.name as category_name, p.base_price,
	       p.description, p.image, p.model_3d, p.stock, p.discount,
	       p.component_type, p.brand
	from product p
	    join category c on c.id = p.category_id`

func (s *Store) ListProducts(ctx context.Context, f ProductFilter, p Page) ([]ent.Product, int, error) {
	w := f.where()

	var total int

	err := s.db.GetContext(ctx, &total, `select count(*) from product p`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit, args := w.page(p)
	ps := []ent.Product{}

	err = s.db.SelectContext(ctx, &ps, productSelect+w.String()+`
		order by p.name, p.id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}

	err = loadRelations(ctx, s.db, ps)
	if err != nil {
		return nil, 0, err
	}

	return ps, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*ent.Product, error) {
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, id int64) (*ent.Product, error) {
	ps := make([]ent.Product, 1)

	err := sqlx.GetContext(ctx, q, &ps[0], productSelect+` where p.id = $1`, id)
	if err != nil {
		return nil, mapErr(err)
	}

	err = loadRelations(ctx, q, ps)
	if err != nil {
		return nil, err
	}

	return &ps[0], nil
}

type productComponent struct {
	ProductID int64 `db:"product_id"`
	ent.ComponentOption
}

type productEdge struct {
	From int64 `db:"from_product_id"`
	To   int64 `db:"to_product_id"`
}

// loadRelations fills Components and CompatibleWith for ps in two queries.
func loadRelations(ctx context.Context, q sqlx.QueryerContext, ps []ent.Product) error {
	if len(ps) == 0 {
		return nil
	}

	ids := lo.Map(ps, func(p ent.Product, _ int) int64 { return p.ID })

	var pcs []productComponent

	err := sqlx.SelectContext(ctx, q, &pcs, `
		select pc.product_id, co.id, co.name, co.price, co.volume, co.type
		from product_component pc
		    join component_option co on co.id = pc.component_option_id
		where pc.product_id = any($1)
		order by co.type, co.name, co.id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("select product components: %w", err)
	}

	var edges []productEdge

	err = sqlx.SelectContext(ctx, q, &edges, `
		select from_product_id, to_product_id
		from product_compatible
		where from_product_id = any($1)
		order by to_product_id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("select compatible products: %w", err)
	}

	components := lo.GroupBy(pcs, func(pc productComponent) int64 { return pc.ProductID })
	compatible := lo.GroupBy(edges, func(e productEdge) int64 { return e.From })

	for i := range ps {
		ps[i].Components = lo.Map(components[ps[i].ID], func(pc productComponent, _ int) ent.ComponentOption {
			return pc.ComponentOption
		})
		ps[i].CompatibleWith = lo.Map(compatible[ps[i].ID], func(e productEdge, _ int) int64 {
			return e.To
		})
	}

	return nil
}

func checkProductRefs(ctx context.Context, q sqlx.QueryerContext, p *ent.Product) error {
	err := checkIDs(ctx, q, "category", "category", []int64{p.CategoryID})
	if err != nil {
		return err
	}

	return checkIDs(ctx, q, "product", "compatible_with", p.CompatibleWith)
}

func setCompatible(ctx context.Context, tx *sqlx.Tx, id int64, to []int64) error {
	_, err := tx.ExecContext(ctx, `delete from product_compatible where from_product_id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear compatible products: %w", err)
	}

	if len(to) == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		insert into product_compatible(from_product_id, to_product_id)
		select $1, unnest($2::bigint[])
		on conflict do nothing
	`, id, pq.Array(lo.Uniq(to)))
	if err != nil {
		return fmt.Errorf("insert compatible products: %w", mapErr(err))
	}

	return nil
}

// CreateProduct inserts p with its compatibility edges and reloads it.
func (s *Store) CreateProduct(ctx context.Context, p *ent.Product) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := checkProductRefs(ctx, tx, p)
		if err != nil {
			return err
		}

		err = tx.QueryRowxContext(ctx, `
			insert into product(name, category_id, base_price, description, image,
			                    model_3d, stock, discount, component_type, brand)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			returning id
		`, p.Name, p.CategoryID, p.BasePrice, p.Description, p.Image,
			p.Model3D, p.Stock, p.Discount, p.ComponentType, p.Brand).
			Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert product: %w", mapErr(err))
		}

		err = setCompatible(ctx, tx, p.ID, p.CompatibleWith)
		if err != nil {
			return err
		}

		created, err := getProduct(ctx, tx, p.ID)
		if err != nil {
			return err
		}

		*p = *created
		return nil
	})
}

// UpdateProduct overwrites the stored product and reloads it. A nil
// CompatibleWith leaves the compatibility edges untouched.
func (s *Store) UpdateProduct(ctx context.Context, p *ent.Product) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := checkProductRefs(ctx, tx, p)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			update product set name = $1, category_id = $2, base_price = $3,
			    description = $4, image = $5, model_3d = $6, stock = $7,
			    discount = $8, component_type = $9, brand = $10
			where id = $11
		`, p.Name, p.CategoryID, p.BasePrice, p.Description, p.Image,
			p.Model3D, p.Stock, p.Discount, p.ComponentType, p.Brand, p.ID)
		if err != nil {
			return fmt.Errorf("update product: %w", mapErr(err))
		}

		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}

		if p.CompatibleWith != nil {
			err = setCompatible(ctx, tx, p.ID, p.CompatibleWith)
			if err != nil {
				return err
			}
		}

		updated, err := getProduct(ctx, tx, p.ID)
		if err != nil {
			return err
		}

		*p = *updated
		return nil
	})
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from product where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
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

// SetProductComponents replaces the component options attached to a product.
func (s *Store) SetProductComponents(ctx context.Context, id int64, componentIDs []int64) (*ent.Product, error) {
	var p *ent.Product

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool

		err := tx.GetContext(ctx, &exists,
			`select exists(select 1 from product where id = $1)`, id)
		if err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		err = checkIDs(ctx, tx, "component_option", "components", componentIDs)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `delete from product_component where product_id = $1`, id)
		if err != nil {
			return fmt.Errorf("clear product components: %w", err)
		}

		if len(componentIDs) != 0 {
			_, err = tx.ExecContext(ctx, `
				insert into product_component(product_id, component_option_id)
				select $1, unnest($2::bigint[])
				on conflict do nothing
			`, id, pq.Array(lo.Uniq(componentIDs)))
			if err != nil {
				return fmt.Errorf("insert product components: %w", mapErr(err))
			}
		}

		p, err = getProduct(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// ComponentChoices lists the options that may be attached to a product:
// those of the product's component type, or all of them when it has none.
func (s *Store) ComponentChoices(ctx context.Context, productID int64) ([]ent.ComponentOption, error) {
	var ct ent.ComponentType

	err := s.db.GetContext(ctx, &ct,
		`select component_type from product where id = $1`, productID)
	if err != nil {
		return nil, mapErr(err)
	}

	var w where
	if ct != "" {
		w.add(`type = ?`, string(ct))
	}

	cs := []ent.ComponentOption{}

	err = s.db.SelectContext(ctx, &cs, `
		select id, name, price, volume, type
		from component_option`+w.String()+`
		order by type, name, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("select component choices: %w", err)
	}

	return cs, nil
}

func (s *Store) SetProductStock(ctx context.Context, ids []int64, stock int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update product set stock = $1 where id = any($2)`, stock, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("set product stock: %w", mapErr(err))
	}

	return affected(res)
}

func (s *Store) SetProductDiscount(ctx context.Context, ids []int64, discount int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update product set discount = $1 where id = any($2)`, discount, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("set product discount: %w", mapErr(err))
	}

	return affected(res)
}

// ScaleProductPrices multiplies base prices by factor, rounding to cents.
func (s *Store) ScaleProductPrices(ctx context.Context, ids []int64, factor decimal.Decimal) (int64, error) {
	n, err := s.scalePrices(ctx, "product", "base_price", ids, factor)
	if err != nil {
		return 0, fmt.Errorf("scale product prices: %w", err)
	}

	return n, nil
}
