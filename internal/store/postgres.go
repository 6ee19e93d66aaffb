package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rigforge/rigforge/internal/db"
	"github.com/rigforge/rigforge/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for the
// hottest store operations (catalog reads dominate traffic).
var preparedStatements = map[string]string{
	"get_hardware":     `SELECT id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at FROM hardware WHERE id = $1`,
	"get_build":        `SELECT id, user_id, user_name, serial_number, title, description, items, total_price, status, tags, is_recommended, views, likes, created_at, updated_at FROM builds WHERE id = $1`,
	"get_setting":      `SELECT value FROM settings WHERE key = $1`,
	"inc_build_views":  `UPDATE builds SET views = views + 1 WHERE id = $1`,
	"inc_build_likes":  `UPDATE builds SET likes = likes + 1 WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
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
// query access (e.g., the bulk importer).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS hardware (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	brand          TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL,
	price          DOUBLE PRECISION NOT NULL,
	previous_price DOUBLE PRECISION,
	status         TEXT NOT NULL DEFAULT 'active',
	sort_order     INTEGER NOT NULL DEFAULT 100,
	specs          JSONB NOT NULL DEFAULT '{}',
	image          TEXT NOT NULL DEFAULT '',
	is_discount    BOOLEAN NOT NULL DEFAULT false,
	is_recommended BOOLEAN NOT NULL DEFAULT false,
	is_new         BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_hardware_category_status ON hardware(category, status);
CREATE INDEX IF NOT EXISTS idx_hardware_price ON hardware(price);

CREATE TABLE IF NOT EXISTS price_history (
	id             TEXT PRIMARY KEY,
	hardware_id    TEXT NOT NULL,
	hardware_name  TEXT NOT NULL,
	category       TEXT NOT NULL,
	old_price      DOUBLE PRECISION NOT NULL,
	new_price      DOUBLE PRECISION NOT NULL,
	change_amount  DOUBLE PRECISION NOT NULL,
	change_percent DOUBLE PRECISION NOT NULL,
	changed_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_price_history_hardware ON price_history(hardware_id, changed_at DESC);

CREATE TABLE IF NOT EXISTS builds (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL DEFAULT '',
	user_name      TEXT NOT NULL DEFAULT '',
	serial_number  TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	items          JSONB NOT NULL DEFAULT '{}',
	total_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'draft',
	tags           JSONB NOT NULL DEFAULT '[]',
	is_recommended BOOLEAN NOT NULL DEFAULT false,
	views          INTEGER NOT NULL DEFAULT 0,
	likes          INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
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
	price          DOUBLE PRECISION NOT NULL,
	original_price DOUBLE PRECISION,
	condition      TEXT NOT NULL DEFAULT '',
	images         JSONB NOT NULL DEFAULT '[]',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	sold_at        TIMESTAMPTZ
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
	last_login    TIMESTAMPTZ,
	invite_code   TEXT NOT NULL DEFAULT '',
	invited_by    TEXT NOT NULL DEFAULT '',
	invite_count  INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invitation_codes (
	code       TEXT PRIMARY KEY,
	creator_id TEXT NOT NULL,
	max_uses   INTEGER NOT NULL DEFAULT 3,
	used_count INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_codes (
	id          TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	channel     TEXT NOT NULL,
	code        TEXT NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_verification_destination ON verification_codes(destination, channel, created_at DESC);

CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	plan_id    TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	pay_method TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	paid_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	user_name         TEXT NOT NULL DEFAULT '',
	last_message      TEXT NOT NULL DEFAULT '',
	last_message_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	unread_count      INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id),
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'text',
	is_read    BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date           TEXT PRIMARY KEY,
	ai_generations INTEGER NOT NULL DEFAULT 0,
	new_builds     INTEGER NOT NULL DEFAULT 0,
	new_users      INTEGER NOT NULL DEFAULT 0
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const hardwareColumns = `id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at`

func scanHardware(sc scanner) (*model.HardwareItem, error) {
	var h model.HardwareItem
	var specsJSON []byte
	if err := sc.Scan(&h.ID, &h.Category, &h.Brand, &h.Model, &h.Price, &h.PreviousPrice,
		&h.Status, &h.SortOrder, &specsJSON, &h.Image, &h.IsDiscount, &h.IsRecommended,
		&h.IsNew, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(specsJSON, &h.Specs); err != nil {
		return nil, eris.Wrapf(err, "postgres: malformed specs for hardware %s", h.ID)
	}
	return &h, nil
}

func marshalSpecs(specs map[string]any) ([]byte, error) {
	if specs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(specs)
}

func (s *PostgresStore) CreateHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal specs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO hardware (id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		item.ID, string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, specsJSON, item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, item.CreatedAt, item.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert hardware")
}

// BulkInsertHardware loads brand-new items through the COPY protocol. Rows
// must not collide with existing ids; the price-list importer only routes
// items it has confirmed absent through this path.
func (s *PostgresStore) BulkInsertHardware(ctx context.Context, items []model.HardwareItem) (int64, error) {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		specsJSON, err := marshalSpecs(item.Specs)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal specs for hardware %s", item.ID)
		}
		rows = append(rows, []any{
			item.ID, string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
			string(item.Status), item.SortOrder, specsJSON, item.Image, item.IsDiscount,
			item.IsRecommended, item.IsNew, item.CreatedAt, item.UpdatedAt,
		})
	}
	columns := []string{
		"id", "category", "brand", "model", "price", "previous_price", "status", "sort_order",
		"specs", "image", "is_discount", "is_recommended", "is_new", "created_at", "updated_at",
	}
	return db.CopyFrom(ctx, s.pool, "hardware", columns, rows)
}

func (s *PostgresStore) GetHardware(ctx context.Context, id string) (*model.HardwareItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+hardwareColumns+` FROM hardware WHERE id = $1`, id)
	h, err := scanHardware(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get hardware %s", id)
	}
	return h, nil
}

func (s *PostgresStore) UpdateHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal specs")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE hardware SET category = $1, brand = $2, model = $3, price = $4, previous_price = $5,
		 status = $6, sort_order = $7, specs = $8, image = $9, is_discount = $10,
		 is_recommended = $11, is_new = $12, updated_at = $13 WHERE id = $14`,
		string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, specsJSON, item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update hardware %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("hardware not found: %s", item.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteHardware(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM hardware WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete hardware %s", id)
}

func (s *PostgresStore) ListHardware(ctx context.Context, filter HardwareFilter) ([]model.HardwareItem, error) {
	query := `SELECT ` + hardwareColumns + ` FROM hardware WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MinPrice > 0 {
		query += fmt.Sprintf(` AND price >= $%d`, argIdx)
		args = append(args, filter.MinPrice)
		argIdx++
	}
	if filter.MaxPrice > 0 {
		query += fmt.Sprintf(` AND price <= $%d`, argIdx)
		args = append(args, filter.MaxPrice)
		argIdx++
	}
	query += ` ORDER BY sort_order ASC, price ASC, id ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hardware")
	}
	defer rows.Close()

	var items []model.HardwareItem
	for rows.Next() {
		h, err := scanHardware(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan hardware")
		}
		items = append(items, *h)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list hardware iterate")
}

func (s *PostgresStore) UpsertHardware(ctx context.Context, item *model.HardwareItem) error {
	specsJSON, err := marshalSpecs(item.Specs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal specs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO hardware (id, category, brand, model, price, previous_price, status, sort_order, specs, image, is_discount, is_recommended, is_new, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
		   category = $2, brand = $3, model = $4, price = $5, previous_price = $6,
		   status = $7, sort_order = $8, specs = $9, image = $10, is_discount = $11,
		   is_recommended = $12, is_new = $13, updated_at = $15`,
		item.ID, string(item.Category), item.Brand, item.Model, item.Price, item.PreviousPrice,
		string(item.Status), item.SortOrder, specsJSON, item.Image, item.IsDiscount,
		item.IsRecommended, item.IsNew, item.CreatedAt, item.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert hardware %s", item.ID)
}

const priceChangeColumns = `id, hardware_id, hardware_name, category, old_price, new_price, change_amount, change_percent, changed_at`

func scanPriceChange(sc scanner) (*model.PriceChange, error) {
	var pc model.PriceChange
	if err := sc.Scan(&pc.ID, &pc.HardwareID, &pc.HardwareName, &pc.Category,
		&pc.OldPrice, &pc.NewPrice, &pc.ChangeAmount, &pc.ChangePercent, &pc.ChangedAt); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (s *PostgresStore) LatestPriceChange(ctx context.Context, hardwareID string) (*model.PriceChange, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+priceChangeColumns+` FROM price_history WHERE hardware_id = $1 ORDER BY changed_at DESC LIMIT 1`,
		hardwareID)
	pc, err := scanPriceChange(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest price change %s", hardwareID)
	}
	return pc, nil
}

func (s *PostgresStore) InsertPriceChange(ctx context.Context, pc *model.PriceChange) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (id, hardware_id, hardware_name, category, old_price, new_price, change_amount, change_percent, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pc.ID, pc.HardwareID, pc.HardwareName, string(pc.Category),
		pc.OldPrice, pc.NewPrice, pc.ChangeAmount, pc.ChangePercent, pc.ChangedAt,
	)
	return eris.Wrap(err, "postgres: insert price change")
}

func (s *PostgresStore) UpdatePriceChange(ctx context.Context, pc *model.PriceChange) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE price_history SET new_price = $1, change_amount = $2, change_percent = $3, changed_at = $4 WHERE id = $5`,
		pc.NewPrice, pc.ChangeAmount, pc.ChangePercent, pc.ChangedAt, pc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update price change %s", pc.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("price change not found: %s", pc.ID)
	}
	return nil
}

func (s *PostgresStore) ListPriceChanges(ctx context.Context, hardwareID string, limit int) ([]model.PriceChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceChangeColumns+` FROM price_history WHERE hardware_id = $1 ORDER BY changed_at DESC LIMIT $2`,
		hardwareID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list price changes")
	}
	defer rows.Close()

	var changes []model.PriceChange
	for rows.Next() {
		pc, err := scanPriceChange(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan price change")
		}
		changes = append(changes, *pc)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list price changes iterate")
}

const buildColumns = `id, user_id, user_name, serial_number, title, description, items, total_price, status, tags, is_recommended, views, likes, created_at, updated_at`

func scanBuild(sc scanner) (*model.BuildConfig, error) {
	var b model.BuildConfig
	var itemsJSON, tagsJSON []byte
	if err := sc.Scan(&b.ID, &b.UserID, &b.UserName, &b.SerialNumber, &b.Title, &b.Description,
		&itemsJSON, &b.TotalPrice, &b.Status, &tagsJSON, &b.IsRecommended,
		&b.Views, &b.Likes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &b.Items); err != nil {
		return nil, eris.Wrapf(err, "postgres: malformed items for build %s", b.ID)
	}
	if err := json.Unmarshal(tagsJSON, &b.Tags); err != nil {
		return nil, eris.Wrapf(err, "postgres: malformed tags for build %s", b.ID)
	}
	return &b, nil
}

func (s *PostgresStore) CreateBuild(ctx context.Context, b *model.BuildConfig) error {
	itemsJSON, tagsJSON, err := marshalBuildBlobs(b)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO builds (id, user_id, user_name, serial_number, title, description, items, total_price, status, tags, is_recommended, views, likes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		b.ID, b.UserID, b.UserName, b.SerialNumber, b.Title, b.Description, itemsJSON,
		b.TotalPrice, string(b.Status), tagsJSON, b.IsRecommended, b.Views, b.Likes,
		b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert build")
}

func marshalBuildBlobs(b *model.BuildConfig) ([]byte, []byte, error) {
	items := b.Items
	if items == nil {
		items = map[model.Category]string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: marshal build items")
	}
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: marshal build tags")
	}
	return itemsJSON, tagsJSON, nil
}

func (s *PostgresStore) GetBuild(ctx context.Context, id string) (*model.BuildConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = $1`, id)
	b, err := scanBuild(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get build %s", id)
	}
	return b, nil
}

// UpdateBuild replaces the full document; partial patches are not supported.
func (s *PostgresStore) UpdateBuild(ctx context.Context, b *model.BuildConfig) error {
	itemsJSON, tagsJSON, err := marshalBuildBlobs(b)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE builds SET title = $1, description = $2, items = $3, total_price = $4,
		 status = $5, tags = $6, is_recommended = $7, updated_at = $8 WHERE id = $9`,
		b.Title, b.Description, itemsJSON, b.TotalPrice, string(b.Status), tagsJSON,
		b.IsRecommended, time.Now().UTC(), b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update build %s", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("build not found: %s", b.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteBuild(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM builds WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete build %s", id)
}

func (s *PostgresStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]model.BuildConfig, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list builds")
	}
	defer rows.Close()

	var builds []model.BuildConfig
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan build")
		}
		builds = append(builds, *b)
	}
	return builds, eris.Wrap(rows.Err(), "postgres: list builds iterate")
}

func (s *PostgresStore) IncrementBuildViews(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE builds SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment build views %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("build not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) IncrementBuildLikes(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE builds SET likes = likes + 1 WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment build likes %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("build not found: %s", id)
	}
	return nil
}

// ListReferenceBuilds returns published, recommended builds whose total price
// falls inside [minPrice, maxPrice], most liked first.
func (s *PostgresStore) ListReferenceBuilds(ctx context.Context, minPrice, maxPrice float64, limit int) ([]model.BuildConfig, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+buildColumns+` FROM builds
		 WHERE status = 'published' AND is_recommended = true AND total_price >= $1 AND total_price <= $2
		 ORDER BY likes DESC LIMIT $3`,
		minPrice, maxPrice, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reference builds")
	}
	defer rows.Close()

	var builds []model.BuildConfig
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan reference build")
		}
		builds = append(builds, *b)
	}
	return builds, eris.Wrap(rows.Err(), "postgres: list reference builds iterate")
}
