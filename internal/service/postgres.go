package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// DataSourceConfig holds connection details for a PostgreSQL source.
type DataSourceConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require"
	Schema   string
}

// DSN renders the config as a lib/pq connection string.
func (c DataSourceConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresDataSource exposes the tables of one schema as datasets, one row
// per record, every value rendered to its text form.
type PostgresDataSource struct {
	db     *sql.DB
	schema string
}

// ConnectPostgres opens and pings the database.
func ConnectPostgres(ctx context.Context, cfg DataSourceConfig) (*PostgresDataSource, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	return &PostgresDataSource{db: db, schema: schema}, nil
}

func (p *PostgresDataSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresDataSource) List(ctx context.Context) ([]models.FileInfo, error) {
	tables, err := p.tables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileInfo, len(tables))
	for i, t := range tables {
		out[i] = models.FileInfo{Name: t}
	}
	return out, nil
}

// Version hashes the table content, so any change to the rows changes it.
func (p *PostgresDataSource) Version(ctx context.Context, name string) (string, error) {
	ident, err := p.identifier(ctx, name)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`SELECT coalesce(md5(string_agg(t::text, E'\n' ORDER BY t::text)), '') FROM %s t`, ident)
	var sum string
	if err := p.db.QueryRowContext(ctx, query).Scan(&sum); err != nil {
		return "", fmt.Errorf("hash table %s: %w", name, err)
	}
	return sum, nil
}

func (p *PostgresDataSource) Load(ctx context.Context, name string) (*state.Dataset, error) {
	ident, err := p.identifier(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, "SELECT * FROM "+ident)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}

		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return state.FromRecords(name, columns, records)
}

func (p *PostgresDataSource) tables(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`, p.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// identifier checks name against the schema's tables and quotes it.
func (p *PostgresDataSource) identifier(ctx context.Context, name string) (string, error) {
	tables, err := p.tables(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(tables, name) {
		return "", fmt.Errorf("%w: table %q", analysis.ErrNotFound, name)
	}
	return pq.QuoteIdentifier(p.schema) + "." + pq.QuoteIdentifier(name), nil
}

// formatValue renders a scanned column value the way it would appear in a
// CSV export.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
