package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/rigforge/rigforge/internal/model"
)

const usedItemColumns = `id, type, seller_id, seller_name, contact, category, brand, model, price, original_price, condition, images, description, status, created_at, sold_at`

func scanUsedItem(sc scanner) (*model.UsedItem, error) {
	var u model.UsedItem
	var imagesJSON []byte
	if err := sc.Scan(&u.ID, &u.Type, &u.SellerID, &u.SellerName, &u.Contact, &u.Category,
		&u.Brand, &u.Model, &u.Price, &u.OriginalPrice, &u.Condition, &imagesJSON,
		&u.Description, &u.Status, &u.CreatedAt, &u.SoldAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(imagesJSON, &u.Images); err != nil {
		return nil, eris.Wrapf(err, "postgres: malformed images for used item %s", u.ID)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUsedItem(ctx context.Context, u *model.UsedItem) error {
	images := u.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal used item images")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO used_items (id, type, seller_id, seller_name, contact, category, brand, model, price, original_price, condition, images, description, status, created_at, sold_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.Type, u.SellerID, u.SellerName, u.Contact, string(u.Category), u.Brand,
		u.Model, u.Price, u.OriginalPrice, u.Condition, imagesJSON, u.Description,
		string(u.Status), u.CreatedAt, u.SoldAt,
	)
	return eris.Wrap(err, "postgres: insert used item")
}

func (s *PostgresStore) GetUsedItem(ctx context.Context, id string) (*model.UsedItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+usedItemColumns+` FROM used_items WHERE id = $1`, id)
	u, err := scanUsedItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get used item %s", id)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUsedItem(ctx context.Context, u *model.UsedItem) error {
	images := u.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal used item images")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE used_items SET contact = $1, brand = $2, model = $3, price = $4,
		 original_price = $5, condition = $6, images = $7, description = $8,
		 status = $9, sold_at = $10 WHERE id = $11`,
		u.Contact, u.Brand, u.Model, u.Price, u.OriginalPrice, u.Condition, imagesJSON,
		u.Description, string(u.Status), u.SoldAt, u.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update used item %s", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("used item not found: %s", u.ID)
	}
	return nil
}

func (s *PostgresStore) ListUsedItems(ctx context.Context, filter UsedFilter) ([]model.UsedItem, error) {
	query := `SELECT ` + usedItemColumns + ` FROM used_items WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.SellerID != "" {
		query += fmt.Sprintf(` AND seller_id = $%d`, argIdx)
		args = append(args, filter.SellerID)
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
		return nil, eris.Wrap(err, "postgres: list used items")
	}
	defer rows.Close()

	var items []model.UsedItem
	for rows.Next() {
		u, err := scanUsedItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan used item")
		}
		items = append(items, *u)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list used items iterate")
}

const userColumns = `id, username, mobile, email, password_hash, role, status, last_login, invite_code, invited_by, invite_count, created_at`

func scanUser(sc scanner) (*model.User, error) {
	var u model.User
	if err := sc.Scan(&u.ID, &u.Username, &u.Mobile, &u.Email, &u.PasswordHash, &u.Role,
		&u.Status, &u.LastLogin, &u.InviteCode, &u.InvitedBy, &u.InviteCount, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, mobile, email, password_hash, role, status, last_login, invite_code, invited_by, invite_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Username, u.Mobile, u.Email, u.PasswordHash, u.Role, u.Status,
		u.LastLogin, u.InviteCode, u.InvitedBy, u.InviteCount, u.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user %s", id)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user by username %s", username)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByMobile(ctx context.Context, mobile string) (*model.User, error) {
	if mobile == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user by mobile %s", mobile)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUserLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return eris.Wrapf(err, "postgres: update user login %s", id)
}

func (s *PostgresStore) IncrementInviteCount(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET invite_count = invite_count + 1 WHERE id = $1`, userID)
	return eris.Wrapf(err, "postgres: increment invite count %s", userID)
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *model.InvitationCode) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO invitation_codes (code, creator_id, max_uses, used_count, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.Code, inv.CreatorID, inv.MaxUses, inv.UsedCount, inv.Status, inv.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert invitation")
}

func (s *PostgresStore) GetInvitation(ctx context.Context, code string) (*model.InvitationCode, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT code, creator_id, max_uses, used_count, status, created_at FROM invitation_codes WHERE code = $1`,
		code)
	var inv model.InvitationCode
	err := row.Scan(&inv.Code, &inv.CreatorID, &inv.MaxUses, &inv.UsedCount, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get invitation %s", code)
	}
	return &inv, nil
}

// ConsumeInvitation atomically burns one use of an invitation code. Failing
// when the code is exhausted or revoked guards against redemption races.
func (s *PostgresStore) ConsumeInvitation(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invitation_codes SET used_count = used_count + 1
		 WHERE code = $1 AND status = 'active' AND used_count < max_uses`,
		code)
	if err != nil {
		return eris.Wrapf(err, "postgres: consume invitation %s", code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("invitation not usable: %s", code)
	}
	return nil
}

func (s *PostgresStore) InsertVerificationCode(ctx context.Context, vc *model.VerificationCode) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO verification_codes (id, destination, channel, code, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		vc.ID, vc.Destination, string(vc.Channel), vc.Code, vc.ExpiresAt, vc.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert verification code")
}

func (s *PostgresStore) LatestVerificationCode(ctx context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, destination, channel, code, expires_at, created_at FROM verification_codes
		 WHERE destination = $1 AND channel = $2 ORDER BY created_at DESC LIMIT 1`,
		destination, string(channel))
	var vc model.VerificationCode
	err := row.Scan(&vc.ID, &vc.Destination, &vc.Channel, &vc.Code, &vc.ExpiresAt, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest verification code")
	}
	return &vc, nil
}

func (s *PostgresStore) DeleteVerificationCodes(ctx context.Context, destination string, channel model.VerificationChannel) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM verification_codes WHERE destination = $1 AND channel = $2`,
		destination, string(channel))
	return eris.Wrap(err, "postgres: delete verification codes")
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, plan_id, amount, status, pay_method, created_at, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, o.PlanID, o.Amount, string(o.Status), o.PayMethod, o.CreatedAt, o.PaidAt,
	)
	return eris.Wrap(err, "postgres: insert order")
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, plan_id, amount, status, pay_method, created_at, paid_at FROM orders WHERE id = $1`,
		id)
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.PlanID, &o.Amount, &o.Status, &o.PayMethod, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get order %s", id)
	}
	return &o, nil
}

func (s *PostgresStore) MarkOrderPaid(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = 'paid', paid_at = $1 WHERE id = $2 AND status = 'pending'`,
		at, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark order paid %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("order not pending: %s", id)
	}
	return nil
}

const chatSessionColumns = `id, user_id, user_name, last_message, last_message_time, unread_count, status, created_at, updated_at`

func scanChatSession(sc scanner) (*model.ChatSession, error) {
	var cs model.ChatSession
	if err := sc.Scan(&cs.ID, &cs.UserID, &cs.UserName, &cs.LastMessage, &cs.LastMessageTime,
		&cs.UnreadCount, &cs.Status, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *PostgresStore) UpsertChatSession(ctx context.Context, cs *model.ChatSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, user_name, last_message, last_message_time, unread_count, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   last_message = $4, last_message_time = $5, unread_count = $6, status = $7, updated_at = $9`,
		cs.ID, cs.UserID, cs.UserName, cs.LastMessage, cs.LastMessageTime,
		cs.UnreadCount, cs.Status, cs.CreatedAt, cs.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert chat session %s", cs.ID)
}

func (s *PostgresStore) GetChatSession(ctx context.Context, id string) (*model.ChatSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	cs, err := scanChatSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get chat session %s", id)
	}
	return cs, nil
}

func (s *PostgresStore) ListChatSessions(ctx context.Context, status string, limit int) ([]model.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY last_message_time DESC LIMIT $2`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY last_message_time DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list chat sessions")
	}
	defer rows.Close()

	var sessions []model.ChatSession
	for rows.Next() {
		cs, err := scanChatSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan chat session")
		}
		sessions = append(sessions, *cs)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list chat sessions iterate")
}

func (s *PostgresStore) InsertChatMessage(ctx context.Context, m *model.ChatMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, content, type, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SessionID, m.Sender, m.Content, m.Type, m.IsRead, m.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert chat message")
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, sender, content, type, is_read, created_at FROM chat_messages
		 WHERE session_id = $1 ORDER BY created_at ASC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list chat messages")
	}
	defer rows.Close()

	var msgs []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.Type, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chat message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list chat messages iterate")
}

func (s *PostgresStore) MarkSessionRead(ctx context.Context, sessionID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin mark session read")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE chat_messages SET is_read = true WHERE session_id = $1 AND is_read = false`,
		sessionID); err != nil {
		return eris.Wrapf(err, "postgres: mark messages read %s", sessionID)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE chat_sessions SET unread_count = 0 WHERE id = $1`,
		sessionID); err != nil {
		return eris.Wrapf(err, "postgres: reset unread count %s", sessionID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit mark session read")
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2`,
		key, value)
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

// BumpDailyStat increments one counter on the row for the given date, creating
// the row if needed. field is one of the StatField constants, never user input.
func (s *PostgresStore) BumpDailyStat(ctx context.Context, date string, field StatField) error {
	switch field {
	case StatAIGenerations, StatNewBuilds, StatNewUsers:
	default:
		return eris.Errorf("unknown stat field: %s", field)
	}
	query := fmt.Sprintf(
		`INSERT INTO daily_stats (date, %[1]s) VALUES ($1, 1)
		 ON CONFLICT (date) DO UPDATE SET %[1]s = daily_stats.%[1]s + 1`, field)
	_, err := s.pool.Exec(ctx, query, date)
	return eris.Wrapf(err, "postgres: bump daily stat %s", field)
}

func (s *PostgresStore) GetDailyStats(ctx context.Context, from, to string) ([]model.DailyStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, ai_generations, new_builds, new_users FROM daily_stats
		 WHERE date >= $1 AND date <= $2 ORDER BY date ASC`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get daily stats")
	}
	defer rows.Close()

	var stats []model.DailyStat
	for rows.Next() {
		var d model.DailyStat
		if err := rows.Scan(&d.Date, &d.AIGenerations, &d.NewBuilds, &d.NewUsers); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily stat")
		}
		stats = append(stats, d)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: get daily stats iterate")
}
