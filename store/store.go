// Package store persists the catalog and orders in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"techshop/ent"
	"techshop/pricing"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrMergeTooFew = errors.New("select at least 2 categories to merge")
	ErrOutOfRange  = errors.New("value out of range")
)

// ReferenceError reports ids that point at rows which do not exist.
type ReferenceError struct {
	Field string
	IDs   []int64
}

func (e *ReferenceError) Error() string {
	if len(e.IDs) == 0 {
		return e.Field + ": unknown id"
	}
	return fmt.Sprintf("%s: unknown id(s) %v", e.Field, e.IDs)
}

// Page is a limit/offset window over an ordered listing.
type Page struct {
	Limit  int
	Offset int
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = fn(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// fkFields names the API field behind each foreign key, for inserts that race
// with a delete after checkIDs passed.
var fkFields = map[string]string{
	"product_category_id_fkey":                   "category",
	"product_compatible_to_product_id_fkey":      "compatible_with",
	"product_component_component_option_id_fkey": "components",
}

// mapErr turns driver errors the API can explain into package errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "22003", "23514":
			return fmt.Errorf("%w: %s", ErrOutOfRange, pqErr.Message)
		case "23503":
			if field, ok := fkFields[pqErr.Constraint]; ok {
				return &ReferenceError{Field: field}
			}
		}
	}

	return err
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// scalePrices locks the selected rows and rewrites column with pricing.Scale,
// so the bulk actions round exactly like the rest of the catalog.
func (s *Store) scalePrices(ctx context.Context, table, column string, ids []int64, factor decimal.Decimal) (n int64, err error) {
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID    int64     `db:"id"`
			Price ent.Money `db:"price"`
		}

		err := tx.SelectContext(ctx, &rows, fmt.Sprintf(`
			select id, %s as price from %s where id = any($1) order by id for update
		`, column, table), pq.Array(ids))
		if err != nil {
			return mapErr(err)
		}

		for _, r := range rows {
			_, err = tx.ExecContext(ctx, fmt.Sprintf(`
				update %s set %s = $1 where id = $2
			`, table, column), pricing.Scale(r.Price, factor), r.ID)
			if err != nil {
				return mapErr(err)
			}
		}

		n = int64(len(rows))
		return nil
	})

	return n, err
}

// checkIDs fails with a ReferenceError when some of ids are missing from table.
func checkIDs(ctx context.Context, q sqlx.QueryerContext, table, field string, ids []int64) error {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil
	}

	var found []int64

	err := sqlx.SelectContext(ctx, q, &found,
		`select id from `+table+` where id = any($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("check %s ids: %w", field, err)
	}

	missing := lo.Without(ids, found...)
	if len(missing) != 0 {
		return &ReferenceError{Field: field, IDs: missing}
	}

	return nil
}

// where collects filter clauses; every "?" in a clause refers to the
// argument added with it.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses,
		strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " where " + strings.Join(w.clauses, " and ")
}

func (w *where) page(p Page) (string, []interface{}) {
	n := len(w.args)
	args := append(append([]interface{}{}, w.args...), p.Limit, p.Offset)

	return fmt.Sprintf(" limit $%d offset $%d", n+1, n+2), args
}

// contains builds an ILIKE pattern matching q anywhere.
func contains(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
