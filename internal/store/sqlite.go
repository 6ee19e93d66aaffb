package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rigforge/rigforge/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs single-node
// deployments and local development; the schema mirrors the Postgres one with
// JSON columns stored as TEXT.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS hardware (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	brand          TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL,
	price          REAL NOT NULL,
	previous_price REAL,
	status         TEXT NOT NULL DEFAULT 'active',
	sort_order     INTEGER NOT NULL DEFAULT 100,
	specs          TEXT NOT NULL DEFAULT '{}',
	image          TEXT NOT NULL DEFAULT '',
	is_discount    INTEGER NOT NULL DEFAULT 0,
	is_recommended INTEGER NOT NULL DEFAULT 0,
	is_new         INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hardware_category_status ON hardware(category, status);
CREATE INDEX IF NOT EXISTS idx_hardware_price ON hardware(price);

CREATE TABLE IF NOT EXISTS price_history (
	id             TEXT PRIMARY KEY,
	hardware_id    TEXT NOT NULL,
	hardware_name  TEXT NOT NULL,
	category       TEXT NOT NULL,
	old_price      REAL NOT NULL,
	new_price      REAL NOT NULL,
	change_amount  REAL NOT NULL,
	change_percent REAL NOT NULL,
	changed_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_hardware ON price_history(hardware_id, changed_at DESC);

CREATE TABLE IF NOT EXISTS builds (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL DEFAULT '',
	user_name      TEXT NOT NULL DEFAULT '',
	serial_number  TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	items          TEXT NOT NULL DEFAULT '{}',
	total_price    REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'draft',
	tags           TEXT NOT NULL DEFAULT '[]',
	is_recommended INTEGER NOT NULL DEFAULT 0,
	views          INTEGER NOT NULL DEFAULT 0,
	likes          INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
CREATE INDEX IF NOT EXISTS idx_builds_total_price ON builds(total_price);
CREATE INDEX IF NOT EXISTS idx_builds_user ON builds(user_id);

CREATE TABLE IF NOT EXISTS used_items (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL DEFAULT 'personal',
	seller_id      TEXT NOT NULL,
	seller_name    TEXT NOT NULL DEFAULT '',
	contact        TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL,
	brand          TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL,
	price          REAL NOT NULL,
	original_price REAL,
	condition      TEXT NOT NULL DEFAULT '',
	images         TEXT NOT NULL DEFAULT '[]',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL,
	sold_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_used_items_status ON used_items(status);
CREATE INDEX IF NOT EXISTS idx_used_items_seller ON used_items(seller_id);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	mobile        TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	status        TEXT NOT NULL DEFAULT 'active',
	last_login    DATETIME,
	invite_code   TEXT NOT NULL DEFAULT '',
	invited_by    TEXT NOT NULL DEFAULT '',
	invite_count  INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS invitation_codes (
	code       TEXT PRIMARY KEY,
	creator_id TEXT NOT NULL,
	max_uses   INTEGER NOT NULL DEFAULT 3,
	used_count INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_codes (
	id          TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	channel     TEXT NOT NULL,
	code        TEXT NOT NULL,
	expires_at  DATETIME NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verification_destination ON verification_codes(destination, channel, created_at DESC);

CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	plan_id    TEXT NOT NULL,
	amount     INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	pay_method TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	paid_at    DATETIME
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	user_name         TEXT NOT NULL DEFAULT '',
	last_message      TEXT NOT NULL DEFAULT '',
	last_message_time DATETIME NOT NULL,
	unread_count      INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id),
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'text',
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date           TEXT PRIMARY KEY,
	ai_generations INTEGER NOT NULL DEFAULT 0,
	new_builds     INTEGER NOT NULL DEFAULT 0,
	new_users      INTEGER NOT NULL DEFAULT 0
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanHardwareLite(sc scanner) (*model.HardwareItem, error) {
	var h model.HardwareItem
	var specsJSON string
	if err := sc.Scan(&h.ID, &h.Category, &h.Brand, &h.Model, &h.Price, &h.PreviousPrice,
		&h.Status, &h.SortOrder, &specsJSON, &h.Image, &h.IsDiscount, &h.IsRecommended,
		&h.IsNew, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specsJSON), &h.Specs); err != nil {
		return nil, eris.Wrapf(err, "sqlite: malformed specs for hardware %s", h.ID)
	}
	return &h, nil
}

func (s *SQLiteStore) CreateHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal specs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hardware (id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, string(specsJSON), item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, item.CreatedAt, item.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert hardware")
}

func (s *SQLiteStore) GetHardware(ctx context.Context, id string) (*model.HardwareItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+hardwareColumns+` FROM hardware WHERE id = ?`, id)
	h, err := scanHardwareLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get hardware %s", id)
	}
	return h, nil
}

func (s *SQLiteStore) UpdateHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal specs")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE hardware SET category = ?, brand = ?, model = ?, price = ?, previous_price = ?,
		 status = ?, sort_order = ?, specs = ?, image = ?, is_discount = ?,
		 is_recommended = ?, is_new = ?, updated_at = ? WHERE id = ?`,
		string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, string(specsJSON), item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update hardware %s", item.ID)
	}
	return checkRowsAffected(res, "hardware", item.ID)
}

func (s *SQLiteStore) DeleteHardware(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hardware WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete hardware %s", id)
}

func (s *SQLiteStore) ListHardware(ctx context.Context, filter HardwareFilter) ([]model.HardwareItem, error) {
	query := `SELECT ` + hardwareColumns + ` FROM hardware WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinPrice > 0 {
		query += ` AND price >= ?`
		args = append(args, filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		query += ` AND price <= ?`
		args = append(args, filter.MaxPrice)
	}
	query += ` ORDER BY sort_order ASC, price ASC, id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hardware")
	}
	defer rows.Close()

	var items []model.HardwareItem
	for rows.Next() {
		h, err := scanHardwareLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hardware")
		}
		items = append(items, *h)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list hardware iterate")
}

func (s *SQLiteStore) UpsertHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal specs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hardware (id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   category = excluded.category, brand = excluded.brand, model = excluded.model,
		   price = excluded.price, previous_price = excluded.previous_price,
		   status = excluded.status, sort_order = excluded.sort_order, specs = excluded.specs,
		   image = excluded.image, is_discount = excluded.is_discount,
		   is_recommended = excluded.is_recommended, is_new = excluded.is_new,
		   updated_at = excluded.updated_at`,
		item.ID, string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, string(specsJSON), item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, item.CreatedAt, item.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert hardware %s", item.ID)
}

func (s *SQLiteStore) LatestPriceChange(ctx context.Context, hardwareID string) (*model.PriceChange, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+priceChangeColumns+` FROM price_history WHERE hardware_id = ? ORDER BY changed_at DESC LIMIT 1`,
		hardwareID)
	pc, err := scanPriceChange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest price change %s", hardwareID)
	}
	return pc, nil
}

func (s *SQLiteStore) InsertPriceChange(ctx context.Context, pc *model.PriceChange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (id, hardware_id, hardware_name, category, old_price, new_price, change_amount, change_percent, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pc.ID, pc.HardwareID, pc.HardwareName, string(pc.Category),
		pc.OldPrice, pc.NewPrice, pc.ChangeAmount, pc.ChangePercent, pc.ChangedAt,
	)
	return eris.Wrap(err, "sqlite: insert price change")
}

func (s *SQLiteStore) UpdatePriceChange(ctx context.Context, pc *model.PriceChange) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE price_history SET new_price = ?, change_amount = ?, change_percent = ?, changed_at = ? WHERE id = ?`,
		pc.NewPrice, pc.ChangeAmount, pc.ChangePercent, pc.ChangedAt, pc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update price change %s", pc.ID)
	}
	return checkRowsAffected(res, "price change", pc.ID)
}

func (s *SQLiteStore) ListPriceChanges(ctx context.Context, hardwareID string, limit int) ([]model.PriceChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priceChangeColumns+` FROM price_history WHERE hardware_id = ? ORDER BY changed_at DESC LIMIT ?`,
		hardwareID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list price changes")
	}
	defer rows.Close()

	var changes []model.PriceChange
	for rows.Next() {
		pc, err := scanPriceChange(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price change")
		}
		changes = append(changes, *pc)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list price changes iterate")
}

func scanBuildLite(sc scanner) (*model.BuildConfig, error) {
	var b model.BuildConfig
	var itemsJSON, tagsJSON string
	if err := sc.Scan(&b.ID, &b.UserID, &b.UserName, &b.SerialNumber, &b.Title, &b.Description,
		&itemsJSON, &b.TotalPrice, &b.Status, &tagsJSON, &b.IsRecommended,
		&b.Views, &b.Likes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &b.Items); err != nil {
		return nil, eris.Wrapf(err, "sqlite: malformed items for build %s", b.ID)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
		return nil, eris.Wrapf(err, "sqlite: malformed tags for build %s", b.ID)
	}
	return &b, nil
}

func (s *SQLiteStore) CreateBuild(ctx context.Context, b *model.BuildConfig) error {
	itemsJSON, tagsJSON, err := marshalBuildBlobs(b)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO builds (id, user_id, user_name, serial_number, title, description, items, total_price, status, tags, is_recommended, views, likes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.UserName, b.SerialNumber, b.Title, b.Description, string(itemsJSON),
		b.TotalPrice, string(b.Status), string(tagsJSON), b.IsRecommended, b.Views, b.Likes,
		b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert build")
}

func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*model.BuildConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	b, err := scanBuildLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get build %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) UpdateBuild(ctx context.Context, b *model.BuildConfig) error {
	itemsJSON, tagsJSON, err := marshalBuildBlobs(b)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE builds SET title = ?, description = ?, items = ?, total_price = ?,
		 status = ?, tags = ?, is_recommended = ?, updated_at = ? WHERE id = ?`,
		b.Title, b.Description, string(itemsJSON), b.TotalPrice, string(b.Status),
		string(tagsJSON), b.IsRecommended, time.Now().UTC(), b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update build %s", b.ID)
	}
	return checkRowsAffected(res, "build", b.ID)
}

func (s *SQLiteStore) DeleteBuild(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete build %s", id)
}

func (s *SQLiteStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]model.BuildConfig, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list builds")
	}
	defer rows.Close()

	var builds []model.BuildConfig
	for rows.Next() {
		b, err := scanBuildLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan build")
		}
		builds = append(builds, *b)
	}
	return builds, eris.Wrap(rows.Err(), "sqlite: list builds iterate")
}

func (s *SQLiteStore) IncrementBuildViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE builds SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment build views %s", id)
	}
	return checkRowsAffected(res, "build", id)
}

func (s *SQLiteStore) IncrementBuildLikes(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE builds SET likes = likes + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment build likes %s", id)
	}
	return checkRowsAffected(res, "build", id)
}

func (s *SQLiteStore) ListReferenceBuilds(ctx context.Context, minPrice, maxPrice float64, limit int) ([]model.BuildConfig, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds
		 WHERE status = 'published' AND is_recommended = 1 AND total_price >= ? AND total_price <= ?
		 ORDER BY likes DESC LIMIT ?`,
		minPrice, maxPrice, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reference builds")
	}
	defer rows.Close()

	var builds []model.BuildConfig
	for rows.Next() {
		b, err := scanBuildLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reference build")
		}
		builds = append(builds, *b)
	}
	return builds, eris.Wrap(rows.Err(), "sqlite: list reference builds iterate")
}
