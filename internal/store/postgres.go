package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erp-cli/internal/db"
	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/geo"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// SQL built once from the registry so column order stays in lockstep with the
// scan and write helpers.
var (
	pgInsertErp      string
	pgUpdateErp      string
	pgGetErpByID     string
	pgGetErpBySlug   string
	pgUpsertAccess   string
	pgUpdateAccess   string
	pgGetAccess      string
	pgDedupeFirst    string
	pgDedupeNext     string
	pgSelectAllRates string
)

func init() {
	erpCols := strings.Join(erpColumns, ", ")
	insCols := strings.Join(erpInsertColumns, ", ")
	insPh := strings.Join(placeholders(len(erpInsertColumns), true), ", ")
	pgInsertErp = fmt.Sprintf("INSERT INTO erp (%s) VALUES (%s)", insCols, insPh)

	var set []string
	for i, col := range erpInsertColumns[1:] {
		set = append(set, fmt.Sprintf("%s = $%d", col, i+2))
	}
	pgUpdateErp = fmt.Sprintf("UPDATE erp SET %s WHERE id = $1", strings.Join(set, ", "))

	pgGetErpByID = fmt.Sprintf("SELECT %s FROM erp WHERE id = $1", erpCols)
	pgGetErpBySlug = fmt.Sprintf("SELECT %s FROM erp WHERE slug = $1", erpCols)

	aCols := accessColumns()
	aColList := strings.Join(aCols, ", ")
	aPh := strings.Join(placeholders(len(aCols), true), ", ")
	var aSet []string
	for _, col := range aCols[1:] {
		aSet = append(aSet, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	pgUpsertAccess = fmt.Sprintf(
		"INSERT INTO accessibilite (%s) VALUES (%s) ON CONFLICT (erp_id) DO UPDATE SET %s",
		aColList, aPh, strings.Join(aSet, ", "))

	var aUpd []string
	for i, col := range aCols[1:] {
		aUpd = append(aUpd, fmt.Sprintf("%s = $%d", col, i+2))
	}
	pgUpdateAccess = fmt.Sprintf("UPDATE accessibilite SET %s WHERE erp_id = $1", strings.Join(aUpd, ", "))

	pgGetAccess = fmt.Sprintf("SELECT %s FROM accessibilite WHERE erp_id = $1", aColList)

	joined := make([]string, 0, len(erpColumns)+len(aCols)-1)
	for _, c := range erpColumns {
		joined = append(joined, "e."+c)
	}
	for _, c := range aCols[1:] {
		joined = append(joined, "a."+c)
	}
	candCols := strings.Join(joined, ", ")
	pgDedupeFirst = fmt.Sprintf(
		`SELECT %s FROM erp e JOIN accessibilite a ON a.erp_id = e.id
		 WHERE e.published ORDER BY e.commune, e.nom_normalise, e.id LIMIT $1`, candCols)
	pgDedupeNext = fmt.Sprintf(
		`SELECT %s FROM erp e JOIN accessibilite a ON a.erp_id = e.id
		 WHERE e.published AND (e.commune, e.nom_normalise, e.id) > ($1, $2, $3)
		 ORDER BY e.commune, e.nom_normalise, e.id LIMIT $4`, candCols)

	pgSelectAllRates = fmt.Sprintf("SELECT %s FROM accessibilite", aColList)
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the hot lookups on each new connection.
	prepared := map[string]string{
		"get_erp_by_id":   pgGetErpByID,
		"get_erp_by_slug": pgGetErpBySlug,
		"get_access":      pgGetAccess,
	}
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range prepared {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

var postgresMigration = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS erp (
	id                 TEXT PRIMARY KEY,
	slug               TEXT NOT NULL UNIQUE,
	nom                TEXT NOT NULL,
	nom_normalise      TEXT NOT NULL,
	activite           TEXT NOT NULL DEFAULT '',
	numero             TEXT NOT NULL DEFAULT '',
	voie               TEXT NOT NULL DEFAULT '',
	commune            TEXT NOT NULL,
	code_postal        TEXT NOT NULL DEFAULT '',
	code_insee         TEXT NOT NULL DEFAULT '',
	latitude           DOUBLE PRECISION NOT NULL,
	longitude          DOUBLE PRECISION NOT NULL,
	geohash            TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL,
	source_id          TEXT NOT NULL DEFAULT '',
	user_id            TEXT NOT NULL DEFAULT '',
	business_owner     BOOLEAN NOT NULL DEFAULT false,
	administration     BOOLEAN NOT NULL DEFAULT false,
	published          BOOLEAN NOT NULL DEFAULT false,
	permanently_closed BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	geom               BYTEA
);

CREATE INDEX IF NOT EXISTS idx_erp_scan ON erp(commune, nom_normalise, id);
CREATE INDEX IF NOT EXISTS idx_erp_geohash ON erp(geohash);
CREATE INDEX IF NOT EXISTS idx_erp_source ON erp(source, source_id);

CREATE TABLE IF NOT EXISTS accessibilite (
	erp_id TEXT PRIMARY KEY REFERENCES erp(id) ON DELETE CASCADE,
%s	completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (completion_rate >= 0 AND completion_rate <= 100),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (sanitaires_adaptes IS NULL OR sanitaires_adaptes >= 0),
	CHECK (sanitaires_adaptes IS NULL OR sanitaires_presence IS TRUE),
	CHECK (stationnement_pmr IS NULL OR stationnement_presence IS TRUE)
);

CREATE TABLE IF NOT EXISTS subscription (
	id         TEXT PRIMARY KEY,
	erp_id     TEXT NOT NULL REFERENCES erp(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (erp_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_subscription_erp ON subscription(erp_id);
`, accessColumnDDL(false))

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// fillDerived maintains the computed establishment fields on every save.
func fillDerived(e *model.Erp) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Slug == "" {
		slug := model.Slugify(e.Nom)
		if slug == "" {
			slug = "erp"
		}
		// Caller-supplied ids can be shorter than the uuid prefix.
		suffix := e.ID
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		e.Slug = slug + "-" + suffix
	}
	e.NomNormalise = model.NormalizeName(e.Nom)
	e.Geohash = geo.Bucket(e.Latitude, e.Longitude)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

func (s *PostgresStore) CreateErp(ctx context.Context, e *model.Erp) error {
	fillDerived(e)
	args, err := erpWriteArgs(e)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, pgInsertErp, args...); err != nil {
		return eris.Wrapf(err, "postgres: insert erp %s", e.Slug)
	}
	return nil
}

func (s *PostgresStore) UpdateErp(ctx context.Context, e *model.Erp) error {
	if e.ID == "" {
		return eris.New("postgres: update erp: missing id")
	}
	fillDerived(e)
	args, err := erpWriteArgs(e)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, pgUpdateErp, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update erp %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetErpByID(ctx context.Context, id string) (*model.Erp, error) {
	return s.getErp(ctx, pgGetErpByID, id)
}

func (s *PostgresStore) GetErpBySlug(ctx context.Context, slug string) (*model.Erp, error) {
	return s.getErp(ctx, pgGetErpBySlug, slug)
}

func (s *PostgresStore) getErp(ctx context.Context, query, key string) (*model.Erp, error) {
	var e model.Erp
	err := s.pool.QueryRow(ctx, query, key).Scan(erpScanDests(&e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get erp %s", key)
	}
	return &e, nil
}

func (s *PostgresStore) CountPublished(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM erp WHERE published`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count published")
}

func (s *PostgresStore) SaveAccessibilite(ctx context.Context, a *model.Accessibilite) error {
	if verr := a.Validate(); verr != nil {
		return verr
	}
	a.CompletionRate = a.ComputeCompletionRate()
	a.UpdatedAt = time.Now().UTC()

	args, err := accessWriteArgs(a, false)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, pgUpsertAccess, args...); err != nil {
		return eris.Wrapf(err, "postgres: save accessibilite %s", a.ErpID)
	}
	return nil
}

// pgAccessDests returns scan destinations for accessColumns[1:]. String fields
// scan through a nullable intermediate; finish() copies them into the record.
func pgAccessDests(a *model.Accessibilite) (dests []any, finish func()) {
	var fixups []func()
	for _, name := range schema.FieldNames() {
		acc, _ := model.AccessorFor(name)
		switch acc.Kind {
		case schema.KindEnum, schema.KindText:
			p := new(*string)
			dests = append(dests, p)
			set := acc.Set
			fixups = append(fixups, func() {
				if *p != nil {
					set(a, **p)
				}
			})
		default:
			dests = append(dests, acc.Ptr(a))
		}
	}
	dests = append(dests, &a.CompletionRate, &a.UpdatedAt)
	return dests, func() {
		for _, f := range fixups {
			f()
		}
	}
}

func (s *PostgresStore) GetAccessibilite(ctx context.Context, erpID string) (*model.Accessibilite, error) {
	a := &model.Accessibilite{}
	dests, finish := pgAccessDests(a)
	scan := append([]any{&a.ErpID}, dests...)

	err := s.pool.QueryRow(ctx, pgGetAccess, erpID).Scan(scan...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get accessibilite %s", erpID)
	}
	finish()
	return a, nil
}

func (s *PostgresStore) RecomputeCompletionRates(ctx context.Context) (int, error) {
	rows, err := s.pool.Query(ctx, pgSelectAllRates)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: scan completion rates")
	}
	defer rows.Close()

	type update struct {
		erpID string
		rate  float64
	}
	var updates []update
	for rows.Next() {
		a := &model.Accessibilite{}
		dests, finish := pgAccessDests(a)
		scan := append([]any{&a.ErpID}, dests...)
		if err := rows.Scan(scan...); err != nil {
			return 0, eris.Wrap(err, "postgres: scan accessibilite")
		}
		finish()
		if rate := a.ComputeCompletionRate(); rate != a.CompletionRate {
			updates = append(updates, update{erpID: a.ErpID, rate: rate})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "postgres: iterate completion rates")
	}
	rows.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		_, err := s.pool.Exec(ctx,
			`UPDATE accessibilite SET completion_rate = $1, updated_at = $2 WHERE erp_id = $3`,
			u.rate, now, u.erpID,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: update completion rate %s", u.erpID)
		}
	}
	return len(updates), nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, erpID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscription (id, erp_id, user_id, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (erp_id, user_id) DO NOTHING`,
		uuid.New().String(), erpID, userID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: subscribe %s to %s", userID, erpID)
}

func (s *PostgresStore) Unsubscribe(ctx context.Context, erpID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM subscription WHERE erp_id = $1 AND user_id = $2`,
		erpID, userID,
	)
	return eris.Wrapf(err, "postgres: unsubscribe %s from %s", userID, erpID)
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context, erpID string) ([]model.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, erp_id, user_id, created_at FROM subscription WHERE erp_id = $1 ORDER BY created_at`,
		erpID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subscriptions")
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.ErpID, &sub.UserID, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscription")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list subscriptions iterate")
}

// UpsertBatch bulk-writes imported rows: a temp-table COPY upsert for the
// establishments, then one for their accessibility records.
func (s *PostgresStore) UpsertBatch(ctx context.Context, batch []dedupe.Candidate) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	erpRows := make([][]any, 0, len(batch))
	accessRows := make([][]any, 0, len(batch))
	for _, c := range batch {
		fillDerived(c.Erp)
		eArgs, err := erpWriteArgs(c.Erp)
		if err != nil {
			return 0, err
		}
		erpRows = append(erpRows, eArgs)

		c.Access.ErpID = c.Erp.ID
		c.Access.CompletionRate = c.Access.ComputeCompletionRate()
		c.Access.UpdatedAt = c.Erp.UpdatedAt
		aArgs, err := accessWriteArgs(c.Access, false)
		if err != nil {
			return 0, err
		}
		accessRows = append(accessRows, aArgs)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "erp",
		Columns:      erpInsertColumns,
		ConflictKeys: []string{"id"},
	}, erpRows)
	if err != nil {
		return 0, err
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "accessibilite",
		Columns:      accessColumns(),
		ConflictKeys: []string{"erp_id"},
	}, accessRows); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) NextDedupePage(ctx context.Context, cursor string, limit int) ([]dedupe.Candidate, string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor == "" {
		rows, err = s.pool.Query(ctx, pgDedupeFirst, limit)
	} else {
		commune, nom, id, ok := decodeCursor(cursor)
		if !ok {
			return nil, "", eris.Errorf("postgres: bad scan cursor %q", cursor)
		}
		rows, err = s.pool.Query(ctx, pgDedupeNext, commune, nom, id, limit)
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "postgres: dedupe page")
	}
	defer rows.Close()

	var out []dedupe.Candidate
	for rows.Next() {
		e := &model.Erp{}
		a := &model.Accessibilite{}
		dests, finish := pgAccessDests(a)
		scan := append(erpScanDests(e), dests...)
		if err := rows.Scan(scan...); err != nil {
			return nil, "", eris.Wrap(err, "postgres: scan candidate")
		}
		finish()
		a.ErpID = e.ID
		out = append(out, dedupe.Candidate{Erp: e, Access: a})
	}
	if err := rows.Err(); err != nil {
		return nil, "", eris.Wrap(err, "postgres: dedupe page iterate")
	}

	if len(out) < limit {
		return out, "", nil
	}
	return out, encodeCursor(out[len(out)-1].Erp), nil
}

// ApplyMerge updates the canonical accessibility record, re-points the
// duplicates' subscriptions and deletes the duplicates, all in one
// transaction.
func (s *PostgresStore) ApplyMerge(ctx context.Context, canonicalID string, duplicateIDs []string, merged *model.Accessibilite, accessChanged bool) (dedupe.MergeStats, error) {
	var stats dedupe.MergeStats
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: merge: begin tx")
	}
	defer tx.Rollback(ctx)

	if accessChanged {
		merged.ErpID = canonicalID
		merged.CompletionRate = merged.ComputeCompletionRate()
		merged.UpdatedAt = now
		args, err := accessWriteArgs(merged, false)
		if err != nil {
			return stats, err
		}
		if _, err := tx.Exec(ctx, pgUpdateAccess, args...); err != nil {
			return stats, eris.Wrapf(err, "postgres: merge: update accessibilite %s", canonicalID)
		}
	}

	// Move subscriptions, dropping ones the canonical establishment already
	// has for the same user. The copies need fresh ids: the source rows still
	// exist at this point and the (erp_id, user_id) arbiter does not cover a
	// primary key collision.
	tag, err := tx.Exec(ctx,
		`INSERT INTO subscription (id, erp_id, user_id, created_at)
		 SELECT gen_random_uuid()::text, $1, user_id, created_at
		 FROM subscription WHERE erp_id = ANY($2)
		 ON CONFLICT (erp_id, user_id) DO NOTHING`,
		canonicalID, duplicateIDs,
	)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: merge: move subscriptions")
	}
	stats.SubscriptionsMoved = int(tag.RowsAffected())

	if _, err := tx.Exec(ctx, `DELETE FROM subscription WHERE erp_id = ANY($1)`, duplicateIDs); err != nil {
		return stats, eris.Wrap(err, "postgres: merge: delete duplicate subscriptions")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accessibilite WHERE erp_id = ANY($1)`, duplicateIDs); err != nil {
		return stats, eris.Wrap(err, "postgres: merge: delete duplicate accessibilite")
	}

	tag, err = tx.Exec(ctx, `DELETE FROM erp WHERE id = ANY($1)`, duplicateIDs)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: merge: delete duplicates")
	}
	stats.Deleted = int(tag.RowsAffected())

	if _, err := tx.Exec(ctx, `UPDATE erp SET updated_at = $1 WHERE id = $2`, now, canonicalID); err != nil {
		return stats, eris.Wrapf(err, "postgres: merge: touch %s", canonicalID)
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, eris.Wrap(err, "postgres: merge: commit tx")
	}
	return stats, nil
}
