// Package catalog reads the product catalog from PostgreSQL and optionally
// caches lookups in Redis.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rxstock/internal/core"
)

// DefaultSearchLimit caps the rows a name/brand search returns.
const DefaultSearchLimit = 50

const productColumns = `p.id::text, p.barcode, p.name, coalesce(p.brand_name, ''),
	coalesce(p.category_id::text, ''), coalesce(c.name, ''),
	coalesce(p.dosage_amount, ''), coalesce(p.dosage_unit, ''), p.current_stock`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

// Postgres implements core.Catalog over a pgx pool.
type Postgres struct {
	pool        *pgxpool.Pool
	searchLimit int
}

func NewPostgres(pool *pgxpool.Pool, searchLimit int) *Postgres {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Postgres{pool: pool, searchLimit: searchLimit}
}

func (p *Postgres) SearchByBarcode(ctx context.Context, barcode string) (*core.CatalogProduct, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.barcode = $1`, barcode)
	prod, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search barcode %q: %w", barcode, err)
	}
	return prod, nil
}

// SearchByNameBrand returns products whose name contains the query or is
// contained in it, products sharing the name without its strength, and
// products whose brand contains or is contained in the brand. Ranking is left
// to the matcher; rows come back in name order so ties are stable.
func (p *Postgres) SearchByNameBrand(ctx context.Context, name, brand string) ([]core.CatalogProduct, error) {
	name = strings.TrimSpace(name)
	brand = strings.TrimSpace(brand)
	if name == "" && brand == "" {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, searchNameBrandSQL, searchNameBrandArgs(name, brand, p.searchLimit)...)
	if err != nil {
		return nil, fmt.Errorf("search name %q brand %q: %w", name, brand, err)
	}
	defer rows.Close()

	var out []core.CatalogProduct
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search name %q brand %q: %w", name, brand, err)
	}
	return out, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT id::text, name, coalesce(prefix, '') FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.Name, &c.Prefix)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// GetProduct returns nil, nil for an unknown or malformed ID.
func (p *Postgres) GetProduct(ctx context.Context, id string) (*core.CatalogProduct, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := p.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1::uuid`, id)
	prod, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return prod, nil
}

func scanProduct(row pgx.Row) (*core.CatalogProduct, error) {
	var p core.CatalogProduct
	err := row.Scan(
		&p.ID, &p.Barcode, &p.Name, &p.BrandName,
		&p.CategoryID, &p.CategoryName,
		&p.DosageAmount, &p.DosageUnit, &p.CurrentStock,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// likeColumn escapes LIKE wildcards held in a column value.
func likeColumn(col string) string {
	return `replace(replace(replace(` + col + `, '\', '\\'), '%', '\%'), '_', '\_')`
}

var searchNameBrandSQL = `SELECT ` + productColumns + productFrom + `
		WHERE ($1 <> '' AND (p.name ILIKE '%' || $2 || '%' OR $1 ILIKE '%' || ` + likeColumn("p.name") + ` || '%'))
		   OR ($3 <> '' AND p.name ILIKE '%' || $3 || '%')
		   OR ($4 <> '' AND coalesce(p.brand_name, '') <> ''
		       AND (p.brand_name ILIKE '%' || $5 || '%' OR $4 ILIKE '%' || ` + likeColumn("p.brand_name") + ` || '%'))
		ORDER BY p.name, p.id
		LIMIT $6`

// searchNameBrandArgs binds searchNameBrandSQL. The third argument is the
// name without strength tokens, empty when it equals the name.
func searchNameBrandArgs(name, brand string, limit int) []any {
	base := core.BaseName(name)
	if strings.EqualFold(base, name) {
		base = ""
	}
	return []any{name, escapeLike(name), escapeLike(base), brand, escapeLike(brand), limit}
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
