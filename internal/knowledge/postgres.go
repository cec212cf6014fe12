package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/embeddings"
	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/config"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
	"github.com/lueurxax/signal-radar/migrations"
)

// Connection retry settings.
const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second

	migrationLockID = 1000
)

// PostgresStore implements Store on PostgreSQL with pgvector.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
	logger   *zerolog.Logger
}

// NewPostgres connects to PostgreSQL and returns a store. The connection
// is retried because the database may still be starting.
func NewPostgres(ctx context.Context, cfg *config.Config, embedder embeddings.Provider, logger *zerolog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConnections
	poolCfg.MinConns = cfg.DBMinConnections
	poolCfg.MaxConnLifetime = cfg.DBConnLifetime

	var pool *pgxpool.Pool

	for i := 0; i < connectAttempts; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &PostgresStore{pool: pool, embedder: embedder, logger: logger}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	return nil, fmt.Errorf("%w: connecting after %d attempts: %w", xerrors.ErrStoreUnavailable, connectAttempts, err)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate applies pending schema migrations under an advisory lock so
// concurrent starts do not race.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring migration connection: %w", xerrors.ErrStoreUnavailable, err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}

	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*s.pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(dbSQL, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Add implements Store.
func (s *PostgresStore) Add(ctx context.Context, rec Record) error {
	if !ValidNamespace(rec.Namespace) {
		return fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, rec.Namespace)
	}

	emb, err := s.embedder.GetEmbedding(ctx, rec.Body)
	if err != nil {
		return fmt.Errorf("embedding record %s/%s: %w", rec.Namespace, rec.ID, err)
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	start := time.Now()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO knowledge_records (namespace, id, body, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, id) DO UPDATE
		SET body = EXCLUDED.body,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata
	`, rec.Namespace, rec.ID, rec.Body, pgvector.NewVector(emb.Vector), metadata)

	observability.StoreQueryDuration.WithLabelValues("add").Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("%w: upserting %s/%s: %w", classifyWriteError(err), rec.Namespace, rec.ID, err)
	}

	return nil
}

// classifyWriteError separates out-of-resources conditions (SQLSTATE class
// 53: disk full, out of memory, too many connections) from plain
// unavailability. Resource exhaustion is fatal for the whole run.
func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
		return xerrors.ErrResourceExhausted
	}

	return xerrors.ErrStoreUnavailable
}

// Search implements Store.
func (s *PostgresStore) Search(ctx context.Context, namespace, query string, limit int, filter Filter) ([]Match, error) {
	if !ValidNamespace(namespace) {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, namespace)
	}

	if limit < 1 {
		return nil, fmt.Errorf("%w: search limit %d", xerrors.ErrInvalidInput, limit)
	}

	emb, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}

	sql, args, err := buildSearchQuery(namespace, pgvector.NewVector(emb.Vector), limit, filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	rows, err := s.pool.Query(ctx, sql, args...)

	observability.StoreQueryDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %w", xerrors.ErrStoreUnavailable, namespace, err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)

	for rows.Next() {
		var (
			m        Match
			metadata []byte
		)

		if err := rows.Scan(&m.ID, &m.Body, &metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %w", xerrors.ErrStoreUnavailable, err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %s: %w", m.ID, err)
			}
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading matches: %w", xerrors.ErrStoreUnavailable, err)
	}

	return matches, nil
}

// buildSearchQuery assembles the KNN query with optional metadata and
// time-range filters.
func buildSearchQuery(namespace string, vec pgvector.Vector, limit int, filter Filter) (string, []interface{}, error) {
	var sb strings.Builder

	args := []interface{}{namespace, vec}

	sb.WriteString(`
		SELECT id, body, metadata, embedding <=> $2::vector AS distance
		FROM knowledge_records
		WHERE namespace = $1`)

	if len(filter.Equals) > 0 {
		equals, err := json.Marshal(filter.Equals)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling metadata filter: %w", err)
		}

		args = append(args, equals)
		sb.WriteString(" AND metadata @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}

	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		sb.WriteString(" AND (metadata->>'score')::int >= $" + strconv.Itoa(len(args)))
	}

	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		sb.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}

	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		sb.WriteString(" AND created_at < $" + strconv.Itoa(len(args)))
	}

	args = append(args, limit)
	sb.WriteString(`
		ORDER BY embedding <=> $2::vector
		LIMIT $` + strconv.Itoa(len(args)))

	return sb.String(), args, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, namespace, id string) (Record, error) {
	if !ValidNamespace(namespace) {
		return Record{}, fmt.Errorf("%w: %q", xerrors.ErrInvalidNamespace, namespace)
	}

	start := time.Now()

	var (
		rec      Record
		metadata []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT namespace, id, body, metadata, created_at
		FROM knowledge_records
		WHERE namespace = $1 AND id = $2
	`, namespace, id).Scan(&rec.Namespace, &rec.ID, &rec.Body, &metadata, &rec.CreatedAt)

	observability.StoreQueryDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s/%s", xerrors.ErrNotFound, namespace, id)
		}

		return Record{}, fmt.Errorf("%w: fetching %s/%s: %w", xerrors.ErrStoreUnavailable, namespace, id, err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("unmarshaling metadata for %s: %w", id, err)
		}
	}

	return rec, nil
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)
