package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	sqInsertErp    string
	sqUpdateErp    string
	sqGetErpByID   string
	sqGetErpBySlug string
	sqUpsertAccess string
	sqUpdateAccess string
	sqGetAccess    string
	sqDedupeFirst  string
	sqDedupeNext   string
	sqAllRates     string
)

func init() {
	erpCols := strings.Join(erpColumns, ", ")
	insCols := strings.Join(erpInsertColumns, ", ")
	insPh := strings.Join(placeholders(len(erpInsertColumns), false), ", ")
	sqInsertErp = fmt.Sprintf("INSERT INTO erp (%s) VALUES (%s)", insCols, insPh)

	var set []string
	for _, col := range erpInsertColumns[1:] {
		set = append(set, col+" = ?")
	}
	sqUpdateErp = fmt.Sprintf("UPDATE erp SET %s WHERE id = ?", strings.Join(set, ", "))

	sqGetErpByID = fmt.Sprintf("SELECT %s FROM erp WHERE id = ?", erpCols)
	sqGetErpBySlug = fmt.Sprintf("SELECT %s FROM erp WHERE slug = ?", erpCols)

	aCols := accessColumns()
	aColList := strings.Join(aCols, ", ")
	aPh := strings.Join(placeholders(len(aCols), false), ", ")
	var aSet, aUpd []string
	for _, col := range aCols[1:] {
		aSet = append(aSet, fmt.Sprintf("%s = excluded.%s", col, col))
		aUpd = append(aUpd, col+" = ?")
	}
	sqUpsertAccess = fmt.Sprintf(
		"INSERT INTO accessibilite (%s) VALUES (%s) ON CONFLICT(erp_id) DO UPDATE SET %s",
		aColList, aPh, strings.Join(aSet, ", "))
	sqUpdateAccess = fmt.Sprintf("UPDATE accessibilite SET %s WHERE erp_id = ?", strings.Join(aUpd, ", "))
	sqGetAccess = fmt.Sprintf("SELECT %s FROM accessibilite WHERE erp_id = ?", aColList)

	joined := make([]string, 0, len(erpColumns)+len(aCols)-1)
	for _, c := range erpColumns {
		joined = append(joined, "e."+c)
	}
	for _, c := range aCols[1:] {
		joined = append(joined, "a."+c)
	}
	candCols := strings.Join(joined, ", ")
	sqDedupeFirst = fmt.Sprintf(
		`SELECT %s FROM erp e JOIN accessibilite a ON a.erp_id = e.id
		 WHERE e.published = 1 ORDER BY e.commune, e.nom_normalise, e.id LIMIT ?`, candCols)
	sqDedupeNext = fmt.Sprintf(
		`SELECT %s FROM erp e JOIN accessibilite a ON a.erp_id = e.id
		 WHERE e.published = 1 AND (e.commune > ? OR (e.commune = ? AND (e.nom_normalise > ? OR (e.nom_normalise = ? AND e.id > ?))))
		 ORDER BY e.commune, e.nom_normalise, e.id LIMIT ?`, candCols)

	sqAllRates = fmt.Sprintf("SELECT %s FROM accessibilite", aColList)
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

var sqliteMigration = fmt.Sprintf(`
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
	latitude           REAL NOT NULL,
	longitude          REAL NOT NULL,
	geohash            TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL,
	source_id          TEXT NOT NULL DEFAULT '',
	user_id            TEXT NOT NULL DEFAULT '',
	business_owner     INTEGER NOT NULL DEFAULT 0,
	administration     INTEGER NOT NULL DEFAULT 0,
	published          INTEGER NOT NULL DEFAULT 0,
	permanently_closed INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	geom               BLOB
);

CREATE INDEX IF NOT EXISTS idx_erp_scan ON erp(commune, nom_normalise, id);
CREATE INDEX IF NOT EXISTS idx_erp_geohash ON erp(geohash);
CREATE INDEX IF NOT EXISTS idx_erp_source ON erp(source, source_id);

CREATE TABLE IF NOT EXISTS accessibilite (
	erp_id TEXT PRIMARY KEY REFERENCES erp(id),
%s	completion_rate REAL NOT NULL DEFAULT 0 CHECK (completion_rate >= 0 AND completion_rate <= 100),
	updated_at      DATETIME NOT NULL,
	CHECK (sanitaires_adaptes IS NULL OR sanitaires_adaptes >= 0)
);

CREATE TABLE IF NOT EXISTS subscription (
	id         TEXT PRIMARY KEY,
	erp_id     TEXT NOT NULL REFERENCES erp(id),
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (erp_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_subscription_erp ON subscription(erp_id);
`, accessColumnDDL(true))

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateErp(ctx context.Context, e *model.Erp) error {
	fillDerived(e)
	args, err := erpWriteArgs(e)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqInsertErp, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert erp %s", e.Slug)
	}
	return nil
}

func (s *SQLiteStore) UpdateErp(ctx context.Context, e *model.Erp) error {
	if e.ID == "" {
		return eris.New("sqlite: update erp: missing id")
	}
	fillDerived(e)
	args, err := erpWriteArgs(e)
	if err != nil {
		return err
	}
	// id moves from first insert position to the trailing WHERE clause.
	args = append(args[1:], e.ID)
	res, err := s.db.ExecContext(ctx, sqUpdateErp, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update erp %s", e.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) GetErpByID(ctx context.Context, id string) (*model.Erp, error) {
	return s.getErp(ctx, sqGetErpByID, id)
}

func (s *SQLiteStore) GetErpBySlug(ctx context.Context, slug string) (*model.Erp, error) {
	return s.getErp(ctx, sqGetErpBySlug, slug)
}

func (s *SQLiteStore) getErp(ctx context.Context, query, key string) (*model.Erp, error) {
	var e model.Erp
	err := s.db.QueryRowContext(ctx, query, key).Scan(erpScanDests(&e)...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get erp %s", key)
	}
	return &e, nil
}

func (s *SQLiteStore) CountPublished(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM erp WHERE published = 1`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count published")
}

func (s *SQLiteStore) SaveAccessibilite(ctx context.Context, a *model.Accessibilite) error {
	if verr := a.Validate(); verr != nil {
		return verr
	}
	a.CompletionRate = a.ComputeCompletionRate()
	a.UpdatedAt = time.Now().UTC()

	args, err := accessWriteArgs(a, true)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqUpsertAccess, args...); err != nil {
		return eris.Wrapf(err, "sqlite: save accessibilite %s", a.ErpID)
	}
	return nil
}

// sqliteAccessDests returns scan destinations for accessColumns[1:] using
// nullable intermediates; finish() copies valid values into the record.
func sqliteAccessDests(a *model.Accessibilite) (dests []any, finish func() error) {
	var fixups []func() error
	for _, name := range schema.FieldNames() {
		acc, _ := model.AccessorFor(name)
		set := acc.Set
		switch acc.Kind {
		case schema.KindBool:
			p := new(sql.NullBool)
			dests = append(dests, p)
			fixups = append(fixups, func() error {
				if p.Valid {
					set(a, p.Bool)
				}
				return nil
			})
		case schema.KindNumber:
			p := new(sql.NullInt64)
			dests = append(dests, p)
			fixups = append(fixups, func() error {
				if p.Valid {
					set(a, int(p.Int64))
				}
				return nil
			})
		case schema.KindMulti:
			p := new(sql.NullString)
			dests = append(dests, p)
			field := name
			fixups = append(fixups, func() error {
				if !p.Valid {
					return nil
				}
				var vals []string
				if err := json.Unmarshal([]byte(p.String), &vals); err != nil {
					return eris.Wrapf(err, "sqlite: unmarshal %s", field)
				}
				set(a, vals)
				return nil
			})
		default:
			p := new(sql.NullString)
			dests = append(dests, p)
			fixups = append(fixups, func() error {
				if p.Valid {
					set(a, p.String)
				}
				return nil
			})
		}
	}
	dests = append(dests, &a.CompletionRate, &a.UpdatedAt)
	return dests, func() error {
		for _, f := range fixups {
			if err := f(); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *SQLiteStore) GetAccessibilite(ctx context.Context, erpID string) (*model.Accessibilite, error) {
	a := &model.Accessibilite{}
	dests, finish := sqliteAccessDests(a)
	scan := append([]any{&a.ErpID}, dests...)

	err := s.db.QueryRowContext(ctx, sqGetAccess, erpID).Scan(scan...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get accessibilite %s", erpID)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLiteStore) RecomputeCompletionRates(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, sqAllRates)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: scan completion rates")
	}
	defer rows.Close()

	type update struct {
		erpID string
		rate  float64
	}
	var updates []update
	for rows.Next() {
		a := &model.Accessibilite{}
		dests, finish := sqliteAccessDests(a)
		scan := append([]any{&a.ErpID}, dests...)
		if err := rows.Scan(scan...); err != nil {
			return 0, eris.Wrap(err, "sqlite: scan accessibilite")
		}
		if err := finish(); err != nil {
			return 0, err
		}
		if rate := a.ComputeCompletionRate(); rate != a.CompletionRate {
			updates = append(updates, update{erpID: a.ErpID, rate: rate})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: iterate completion rates")
	}
	rows.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		_, err := s.db.ExecContext(ctx,
			`UPDATE accessibilite SET completion_rate = ?, updated_at = ? WHERE erp_id = ?`,
			u.rate, now, u.erpID,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: update completion rate %s", u.erpID)
		}
	}
	return len(updates), nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, erpID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscription (id, erp_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), erpID, userID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: subscribe %s to %s", userID, erpID)
}

func (s *SQLiteStore) Unsubscribe(ctx context.Context, erpID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscription WHERE erp_id = ? AND user_id = ?`,
		erpID, userID,
	)
	return eris.Wrapf(err, "sqlite: unsubscribe %s from %s", userID, erpID)
}

func (s *SQLiteStore) ListSubscriptions(ctx context.Context, erpID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, erp_id, user_id, created_at FROM subscription WHERE erp_id = ? ORDER BY created_at`,
		erpID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subscriptions")
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.ErpID, &sub.UserID, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subscription")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list subscriptions iterate")
}

// UpsertBatch writes imported rows in one transaction, upserting each
// establishment and its accessibility record.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, batch []dedupe.Candidate) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert batch: begin tx")
	}
	defer tx.Rollback()

	upsertErp := sqInsertErp + " ON CONFLICT(id) DO UPDATE SET " + erpConflictSet()

	var n int64
	for _, c := range batch {
		fillDerived(c.Erp)
		eArgs, err := erpWriteArgs(c.Erp)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, upsertErp, eArgs...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert erp %s", c.Erp.Slug)
		}

		c.Access.ErpID = c.Erp.ID
		c.Access.CompletionRate = c.Access.ComputeCompletionRate()
		c.Access.UpdatedAt = c.Erp.UpdatedAt
		aArgs, err := accessWriteArgs(c.Access, true)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqUpsertAccess, aArgs...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert accessibilite %s", c.Erp.ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert batch: commit tx")
	}
	return n, nil
}

func erpConflictSet() string {
	var set []string
	for _, col := range erpInsertColumns[1:] {
		set = append(set, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return strings.Join(set, ", ")
}

func (s *SQLiteStore) NextDedupePage(ctx context.Context, cursor string, limit int) ([]dedupe.Candidate, string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor == "" {
		rows, err = s.db.QueryContext(ctx, sqDedupeFirst, limit)
	} else {
		commune, nom, id, ok := decodeCursor(cursor)
		if !ok {
			return nil, "", eris.Errorf("sqlite: bad scan cursor %q", cursor)
		}
		rows, err = s.db.QueryContext(ctx, sqDedupeNext, commune, commune, nom, nom, id, limit)
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "sqlite: dedupe page")
	}
	defer rows.Close()

	var out []dedupe.Candidate
	for rows.Next() {
		e := &model.Erp{}
		a := &model.Accessibilite{}
		dests, finish := sqliteAccessDests(a)
		scan := append(erpScanDests(e), dests...)
		if err := rows.Scan(scan...); err != nil {
			return nil, "", eris.Wrap(err, "sqlite: scan candidate")
		}
		if err := finish(); err != nil {
			return nil, "", err
		}
		a.ErpID = e.ID
		out = append(out, dedupe.Candidate{Erp: e, Access: a})
	}
	if err := rows.Err(); err != nil {
		return nil, "", eris.Wrap(err, "sqlite: dedupe page iterate")
	}

	if len(out) < limit {
		return out, "", nil
	}
	return out, encodeCursor(out[len(out)-1].Erp), nil
}

// ApplyMerge mirrors the postgres merge write in a single transaction.
func (s *SQLiteStore) ApplyMerge(ctx context.Context, canonicalID string, duplicateIDs []string, merged *model.Accessibilite, accessChanged bool) (dedupe.MergeStats, error) {
	var stats dedupe.MergeStats
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: begin tx")
	}
	defer tx.Rollback()

	if accessChanged {
		merged.ErpID = canonicalID
		merged.CompletionRate = merged.ComputeCompletionRate()
		merged.UpdatedAt = now
		args, err := accessWriteArgs(merged, true)
		if err != nil {
			return stats, err
		}
		args = append(args[1:], canonicalID)
		if _, err := tx.ExecContext(ctx, sqUpdateAccess, args...); err != nil {
			return stats, eris.Wrapf(err, "sqlite: merge: update accessibilite %s", canonicalID)
		}
	}

	in := strings.Join(placeholders(len(duplicateIDs), false), ", ")
	idArgs := make([]any, len(duplicateIDs))
	for i, id := range duplicateIDs {
		idArgs[i] = id
	}

	// Move subscriptions; a user already subscribed to the canonical record
	// keeps that one and the duplicate's row is dropped below.
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE OR IGNORE subscription SET erp_id = ? WHERE erp_id IN (%s)`, in),
		append([]any{canonicalID}, idArgs...)...,
	)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: move subscriptions")
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: rows affected")
	}
	stats.SubscriptionsMoved = int(moved)

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM subscription WHERE erp_id IN (%s)`, in), idArgs...); err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: delete duplicate subscriptions")
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM accessibilite WHERE erp_id IN (%s)`, in), idArgs...); err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: delete duplicate accessibilite")
	}

	res, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM erp WHERE id IN (%s)`, in), idArgs...)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: delete duplicates")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: rows affected")
	}
	stats.Deleted = int(deleted)

	if _, err := tx.ExecContext(ctx, `UPDATE erp SET updated_at = ? WHERE id = ?`, now, canonicalID); err != nil {
		return stats, eris.Wrapf(err, "sqlite: merge: touch %s", canonicalID)
	}

	if err := tx.Commit(); err != nil {
		return stats, eris.Wrap(err, "sqlite: merge: commit tx")
	}
	return stats, nil
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
