package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
)

// Postgres streams segments out of a PostGIS table. The table needs the
// columns (route_id text, from_measure double precision, geom geometry,
// props jsonb); geometries must already be WGS84.
type Postgres struct {
	conn *pgx.Conn
	rows pgx.Rows
	cur  nvdb.Record
	err  error
}

// OpenPostgres connects and starts the ordered segment scan.
func OpenPostgres(ctx context.Context, connString, table string) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to segment database: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT route_id, from_measure, ST_AsBinary(geom), props::text
		   FROM %s
		  ORDER BY route_id, from_measure`, table)
	rows, err := conn.Query(ctx, query)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("query segment table %s: %w", table, err)
	}

	return &Postgres{conn: conn, rows: rows}, nil
}

func (p *Postgres) Next() bool {
	if p.err != nil || !p.rows.Next() {
		return false
	}

	var routeID string
	var fromMeasure float64
	var wkb []byte
	var propsJSON string
	if err := p.rows.Scan(&routeID, &fromMeasure, &wkb, &propsJSON); err != nil {
		p.err = fmt.Errorf("scan segment row: %w", err)
		return false
	}

	props, err := nvdb.FromJSON([]byte(propsJSON))
	if err != nil {
		p.err = err
		return false
	}
	props[nvdb.ColRouteID] = nvdb.String(routeID)
	props[nvdb.ColFromMeasure] = nvdb.Float(fromMeasure)

	p.cur = nvdb.Record{WKB: wkb, Props: props}
	return true
}

func (p *Postgres) Record() nvdb.Record { return p.cur }

func (p *Postgres) Err() error {
	if p.err != nil {
		return p.err
	}
	return p.rows.Err()
}

func (p *Postgres) Close() error {
	p.rows.Close()
	return p.conn.Close(context.Background())
}
