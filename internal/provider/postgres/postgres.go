// Package postgres backs collections with a PostGIS table. Filtering,
// sorting and paging are pushed down to SQL so large tables never stream
// through the process.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/opencdms-dev/opencdms-api/internal/cql"
	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

func init() {
	provider.Register("postgres", open)
}

var (
	poolMu sync.Mutex
	pools  = map[string]*pgxpool.Pool{}
)

func open(ctx context.Context, b provider.Binding) (provider.Provider, error) {
	dsn := b.Connection["dsn"]
	table := b.Connection["table"]
	if dsn == "" || table == "" {
		return nil, fmt.Errorf("%w: postgres provider requires dsn and table", provider.ErrConnection)
	}
	if !validIdent(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", provider.ErrConnection, table)
	}

	pool, err := getPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	fields, err := parseFields(b.Connection["fields"])
	if err != nil {
		return nil, err
	}
	geomField := b.Connection["geom_field"]
	if geomField == "" {
		geomField = "geom"
	}

	sch := provider.Schema{
		Fields:     fields,
		IDField:    b.Connection["id_field"],
		TitleField: b.Connection["title_field"],
		URIField:   b.Connection["uri_field"],
		TimeField:  b.Connection["time_field"],
		Spatial:    true,
	}
	if sch.IDField == "" {
		sch.IDField = "id"
	}
	for _, name := range append(sch.FieldNames(), sch.IDField, geomField) {
		if !validIdent(name) {
			return nil, fmt.Errorf("%w: invalid column name %q", provider.ErrConnection, name)
		}
	}

	return &Provider{pool: pool, table: table, geom: geomField, sch: sch}, nil
}

func getPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool, ok := pools[dsn]; ok {
		return pool, nil
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", provider.ErrConnection, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", provider.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", provider.ErrConnection, err)
	}
	pools[dsn] = pool
	return pool, nil
}

func parseFields(raw string) ([]provider.Field, error) {
	if raw == "" {
		return nil, nil
	}
	var fields []provider.Field
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, typ := tok, "string"
		if head, tail, ok := strings.Cut(tok, ":"); ok {
			name, typ = strings.TrimSpace(head), strings.TrimSpace(tail)
		}
		if name == "" || typ == "" {
			return nil, fmt.Errorf("%w: bad field declaration %q", provider.ErrConnection, tok)
		}
		fields = append(fields, provider.Field{Name: name, Type: typ})
	}
	return fields, nil
}

type Provider struct {
	pool  *pgxpool.Pool
	table string
	geom  string
	sch   provider.Schema
}

func (p *Provider) Schema() provider.Schema {
	return p.sch
}

func (p *Provider) Query(ctx context.Context, q provider.Query) (*provider.Result, error) {
	where, args, err := p.whereClause(q)
	if err != nil {
		return nil, err
	}

	if q.ResultType == provider.ResultTypeHits {
		var total int
		sql := fmt.Sprintf(`SELECT count(*) FROM %s%s`, quoteIdent(p.table), where)
		if err := p.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
		}
		return &provider.Result{NumberMatched: total, MatchedKnown: true}, nil
	}

	props := p.selectedProps(q)
	cols := make([]string, 0, len(props)+3)
	cols = append(cols, quoteIdent(p.sch.IDField))
	if q.SkipGeometry {
		cols = append(cols, "NULL")
	} else {
		cols = append(cols, fmt.Sprintf("ST_AsGeoJSON(%s)", quoteIdent(p.geom)))
	}
	for _, name := range props {
		cols = append(cols, quoteIdent(name))
	}
	cols = append(cols, "count(*) OVER()")

	sql := fmt.Sprintf(`SELECT %s FROM %s%s%s LIMIT %d OFFSET %d`,
		strings.Join(cols, ", "), quoteIdent(p.table), where, p.orderBy(q), q.Limit, q.Offset)

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
	}
	defer rows.Close()

	result := &provider.Result{Features: []provider.Feature{}, MatchedKnown: true}
	for rows.Next() {
		var (
			id    any
			gjson *string
			total int
		)
		propVals := make([]any, len(props))
		dest := make([]any, 0, len(props)+3)
		dest = append(dest, &id, &gjson)
		for i := range propVals {
			dest = append(dest, &propVals[i])
		}
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
		}

		f := provider.Feature{
			ID:         fmt.Sprintf("%v", id),
			Properties: map[string]any{},
		}
		if gjson != nil && *gjson != "" {
			geom, err := geojson.UnmarshalGeometry([]byte(*gjson))
			if err != nil {
				return nil, fmt.Errorf("%w: decode geometry: %v", provider.ErrGeneric, err)
			}
			f.Geometry = geom.Geometry()
		}
		for i, name := range props {
			f.Properties[name] = propVals[i]
		}
		result.Features = append(result.Features, f)
		result.NumberMatched = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
	}
	if len(result.Features) == 0 {
		// the window count vanishes with the rows; fall back to count(*)
		countSQL := fmt.Sprintf(`SELECT count(*) FROM %s%s`, quoteIdent(p.table), where)
		if err := p.pool.QueryRow(ctx, countSQL, args...).Scan(&result.NumberMatched); err != nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
		}
	}
	return result, nil
}

// whereClause renders every query predicate as SQL. Identifiers come from
// the declared schema only, never from request text.
func (p *Provider) whereClause(q provider.Query) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if bound, ok := q.Bound(); ok {
		conds = append(conds, fmt.Sprintf("ST_Intersects(%s, ST_MakeEnvelope(%s, %s, %s, %s, 4326))",
			quoteIdent(p.geom),
			bind(bound.Min[0]), bind(bound.Min[1]), bind(bound.Max[0]), bind(bound.Max[1])))
	}

	if q.Datetime != nil && p.sch.TimeField != "" {
		col := quoteIdent(p.sch.TimeField)
		if q.Datetime.Start != nil {
			conds = append(conds, fmt.Sprintf("%s >= %s", col, bind(*q.Datetime.Start)))
		}
		if q.Datetime.End != nil {
			conds = append(conds, fmt.Sprintf("%s <= %s", col, bind(*q.Datetime.End)))
		}
	}

	for _, pf := range q.Properties {
		if !p.sch.HasField(pf.Name) {
			continue
		}
		conds = append(conds, fmt.Sprintf("%s::text = %s", quoteIdent(pf.Name), bind(pf.Value)))
	}

	if q.Q != "" {
		var ors []string
		ph := bind("%" + q.Q + "%")
		for _, f := range p.sch.Fields {
			if f.Type == "string" {
				ors = append(ors, fmt.Sprintf("%s ILIKE %s", quoteIdent(f.Name), ph))
			}
		}
		ors = append(ors, fmt.Sprintf("%s::text ILIKE %s", quoteIdent(p.sch.IDField), ph))
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if q.Filter != nil {
		columns := map[string]bool{}
		for _, f := range p.sch.Fields {
			columns[f.Name] = true
		}
		builder := &cql.SQLBuilder{Args: args}
		frag, err := builder.Fragment(q.Filter, columns)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
		}
		args = builder.Args
		conds = append(conds, "("+frag+")")
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (p *Provider) orderBy(q provider.Query) string {
	if len(q.SortBy) == 0 {
		return fmt.Sprintf(" ORDER BY %s", quoteIdent(p.sch.IDField))
	}
	parts := make([]string, len(q.SortBy))
	for i, sc := range q.SortBy {
		dir := "ASC"
		if sc.Order == provider.SortDesc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", quoteIdent(sc.Property), dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (p *Provider) selectedProps(q provider.Query) []string {
	if len(q.Select) == 0 {
		return p.sch.FieldNames()
	}
	var out []string
	for _, name := range p.sch.FieldNames() {
		for _, sel := range q.Select {
			if sel == name {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}
