package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"benchmd/internal/benchmark"
)

// Postgres implements RowStore and MappingStore on PostgreSQL via sqlx.
// Rows live in survey_rows, one record per canonical SurveyRow; source
// metadata and fingerprints live in survey_sources.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Connect opens a Postgres store, verifies connectivity, and applies
// conservative pool settings.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	logger.InfoContext(ctx, "postgres store connected")
	return &Postgres{db: db, logger: logger}, nil
}

// NewPostgres wraps an existing connection, mainly for tests.
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Bootstrap creates the schema when it does not exist yet. Idempotent, so
// the server runs it unconditionally at startup.
func (p *Postgres) Bootstrap(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS survey_sources (
    source      TEXT PRIMARY KEY,
    format      TEXT NOT NULL,
    row_count   INTEGER NOT NULL DEFAULT 0,
    fingerprint TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS survey_rows (
    id            BIGSERIAL PRIMARY KEY,
    source        TEXT NOT NULL REFERENCES survey_sources(source) ON DELETE CASCADE,
    specialty     TEXT NOT NULL DEFAULT '',
    provider_type TEXT NOT NULL DEFAULT '',
    region        TEXT NOT NULL DEFAULT '',
    variable      TEXT NOT NULL,
    n_orgs        INTEGER NOT NULL DEFAULT 0,
    n_incumbents  INTEGER NOT NULL DEFAULT 0,
    p25           DOUBLE PRECISION,
    p50           DOUBLE PRECISION,
    p75           DOUBLE PRECISION,
    p90           DOUBLE PRECISION,
    source_format TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_survey_rows_source ON survey_rows (source);
CREATE INDEX IF NOT EXISTS idx_survey_rows_source_specialty ON survey_rows (source, specialty);

CREATE TABLE IF NOT EXISTS mappings (
    id                TEXT PRIMARY KEY,
    mapping_type      TEXT NOT NULL,
    standardized_name TEXT NOT NULL,
    source_entries    JSONB NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_type_name
    ON mappings (mapping_type, lower(standardized_name));
`
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}

type rowRecord struct {
	Source       string   `db:"source"`
	Specialty    string   `db:"specialty"`
	ProviderType string   `db:"provider_type"`
	Region       string   `db:"region"`
	Variable     string   `db:"variable"`
	NOrgs        int      `db:"n_orgs"`
	NIncumbents  int      `db:"n_incumbents"`
	P25          *float64 `db:"p25"`
	P50          *float64 `db:"p50"`
	P75          *float64 `db:"p75"`
	P90          *float64 `db:"p90"`
	SourceFormat string   `db:"source_format"`
}

func toRecord(source string, row *benchmark.SurveyRow) rowRecord {
	return rowRecord{
		Source:       source,
		Specialty:    row.Specialty,
		ProviderType: row.ProviderType,
		Region:       row.Region,
		Variable:     row.Variable,
		NOrgs:        row.NOrgs,
		NIncumbents:  row.NIncumbents,
		P25:          row.P25,
		P50:          row.P50,
		P75:          row.P75,
		P90:          row.P90,
		SourceFormat: row.SourceFormat.String(),
	}
}

func (r *rowRecord) toSurveyRow() benchmark.SurveyRow {
	format := benchmark.FormatUnrecognized
	switch r.SourceFormat {
	case benchmark.FormatLong.String():
		format = benchmark.FormatLong
	case benchmark.FormatWide.String():
		format = benchmark.FormatWide
	}
	return benchmark.SurveyRow{
		SurveySource: r.Source,
		Specialty:    r.Specialty,
		ProviderType: r.ProviderType,
		Region:       r.Region,
		Variable:     r.Variable,
		NOrgs:        r.NOrgs,
		NIncumbents:  r.NIncumbents,
		P25:          r.P25,
		P50:          r.P50,
		P75:          r.P75,
		P90:          r.P90,
		SourceFormat: format,
	}
}

// ListSources implements RowStore.
func (p *Postgres) ListSources(ctx context.Context) ([]SourceInfo, error) {
	infos := []SourceInfo{}
	err := p.db.SelectContext(ctx, &infos,
		`SELECT source, format, row_count, fingerprint, updated_at
		   FROM survey_sources ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return infos, nil
}

// FetchRows implements RowStore. The specialty filter is pushed down as
// ILIKE patterns; the aggregator re-checks matches, so pattern semantics
// only need to be a superset of the exact rule.
func (p *Postgres) FetchRows(ctx context.Context, source string, filter *RowFilter) ([]benchmark.SurveyRow, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM survey_sources WHERE source = $1)`, source)
	if err != nil {
		return nil, fmt.Errorf("check source %q: %w", source, err)
	}
	if !exists {
		return nil, ErrSourceNotFound
	}

	query := `SELECT source, specialty, provider_type, region, variable,
			 n_orgs, n_incumbents, p25, p50, p75, p90, source_format
		    FROM survey_rows WHERE source = $1`
	args := []any{source}
	if filter != nil && len(filter.SpecialtyRawNames) > 0 {
		patterns := make([]string, 0, len(filter.SpecialtyRawNames))
		for _, raw := range filter.SpecialtyRawNames {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			patterns = append(patterns, "%"+escapeLike(raw)+"%")
		}
		if len(patterns) > 0 {
			query += ` AND specialty ILIKE ANY($2)`
			args = append(args, pq.Array(patterns))
		}
	}
	query += ` ORDER BY id`

	var records []rowRecord
	if err := p.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("fetch rows for %q: %w", source, err)
	}
	rows := make([]benchmark.SurveyRow, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].toSurveyRow())
	}
	return rows, nil
}

// ReplaceSource implements RowStore. The swap runs in one transaction so
// concurrent queries see either the old rows or the new ones.
func (p *Postgres) ReplaceSource(ctx context.Context, source string, format benchmark.Format, rows []benchmark.SurveyRow) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace of %q: %w", source, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO survey_sources (source, format, row_count, fingerprint, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (source) DO UPDATE
		    SET format = EXCLUDED.format,
		        row_count = EXCLUDED.row_count,
		        fingerprint = EXCLUDED.fingerprint,
		        updated_at = now()`,
		source, format.String(), len(rows), FingerprintRows(rows))
	if err != nil {
		return fmt.Errorf("upsert source %q: %w", source, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM survey_rows WHERE source = $1`, source); err != nil {
		return fmt.Errorf("clear rows for %q: %w", source, err)
	}

	const insert = `INSERT INTO survey_rows
		(source, specialty, provider_type, region, variable,
		 n_orgs, n_incumbents, p25, p50, p75, p90, source_format)
		VALUES (:source, :specialty, :provider_type, :region, :variable,
		 :n_orgs, :n_incumbents, :p25, :p50, :p75, :p90, :source_format)`

	const chunkSize = 500
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := make([]rowRecord, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, toRecord(source, &rows[i]))
		}
		if _, err := tx.NamedExecContext(ctx, insert, chunk); err != nil {
			return fmt.Errorf("insert rows for %q: %w", source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace of %q: %w", source, err)
	}
	p.logger.InfoContext(ctx, "source replaced",
		slog.String("source", source),
		slog.String("format", format.String()),
		slog.Int("rows", len(rows)))
	return nil
}

// Fingerprint implements RowStore.
func (p *Postgres) Fingerprint(ctx context.Context, source string) (string, error) {
	var fp string
	err := p.db.GetContext(ctx, &fp,
		`SELECT fingerprint FROM survey_sources WHERE source = $1`, source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSourceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint for %q: %w", source, err)
	}
	return fp, nil
}

type mappingRecord struct {
	ID               string `db:"id"`
	MappingType      string `db:"mapping_type"`
	StandardizedName string `db:"standardized_name"`
	SourceEntries    []byte `db:"source_entries"`
}

func (r *mappingRecord) toMapping() (benchmark.Mapping, error) {
	m := benchmark.Mapping{
		ID:               r.ID,
		Type:             benchmark.MappingType(r.MappingType),
		StandardizedName: r.StandardizedName,
	}
	if err := json.Unmarshal(r.SourceEntries, &m.SourceEntries); err != nil {
		return m, fmt.Errorf("decode entries for mapping %s: %w", r.ID, err)
	}
	return m, nil
}

// FetchMappings implements benchmark.MappingReader.
func (p *Postgres) FetchMappings(ctx context.Context, mappingType benchmark.MappingType) ([]benchmark.Mapping, error) {
	var records []mappingRecord
	err := p.db.SelectContext(ctx, &records,
		`SELECT id, mapping_type, standardized_name, source_entries
		   FROM mappings WHERE mapping_type = $1 ORDER BY standardized_name`,
		string(mappingType))
	if err != nil {
		return nil, fmt.Errorf("fetch %s mappings: %w", mappingType, err)
	}
	return decodeMappings(records)
}

// ListMappings implements MappingStore.
func (p *Postgres) ListMappings(ctx context.Context) ([]benchmark.Mapping, error) {
	var records []mappingRecord
	err := p.db.SelectContext(ctx, &records,
		`SELECT id, mapping_type, standardized_name, source_entries
		   FROM mappings ORDER BY mapping_type, standardized_name`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return decodeMappings(records)
}

func decodeMappings(records []mappingRecord) ([]benchmark.Mapping, error) {
	mappings := make([]benchmark.Mapping, 0, len(records))
	for i := range records {
		m, err := records[i].toMapping()
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// SaveMapping implements MappingStore. The ambiguity check and the upsert
// share a transaction that locks the type's mappings, so two concurrent
// saves cannot slip a conflicting raw name past each other.
func (p *Postgres) SaveMapping(ctx context.Context, m *benchmark.Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping save: %w", err)
	}
	defer tx.Rollback()

	var records []mappingRecord
	err = tx.SelectContext(ctx, &records,
		`SELECT id, mapping_type, standardized_name, source_entries
		   FROM mappings WHERE mapping_type = $1 FOR UPDATE`,
		string(m.Type))
	if err != nil {
		return fmt.Errorf("load %s mappings: %w", m.Type, err)
	}
	existing, err := decodeMappings(records)
	if err != nil {
		return err
	}

	if m.ID == "" {
		for i := range existing {
			if strings.EqualFold(existing[i].StandardizedName, m.StandardizedName) {
				m.ID = existing[i].ID
				break
			}
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	if err := benchmark.CheckAmbiguity(existing, *m); err != nil {
		return err
	}

	entries, err := json.Marshal(m.SourceEntries)
	if err != nil {
		return fmt.Errorf("encode entries for %q: %w", m.StandardizedName, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO mappings (id, mapping_type, standardized_name, source_entries, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO UPDATE
		    SET mapping_type = EXCLUDED.mapping_type,
		        standardized_name = EXCLUDED.standardized_name,
		        source_entries = EXCLUDED.source_entries,
		        updated_at = now()`,
		m.ID, string(m.Type), m.StandardizedName, entries)
	if err != nil {
		return fmt.Errorf("save mapping %q: %w", m.StandardizedName, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping save: %w", err)
	}
	return nil
}

// DeleteMapping implements MappingStore.
func (p *Postgres) DeleteMapping(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete mapping %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete mapping %s: %w", id, err)
	}
	if affected == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so raw names containing % or _
// match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
