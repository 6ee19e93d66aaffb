package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rigforge/rigforge/internal/model"
)

func scanUsedItemLite(sc scanner) (*model.UsedItem, error) {
	var u model.UsedItem
	var imagesJSON string
	if err := sc.Scan(&u.ID, &u.Type, &u.SellerID, &u.SellerName, &u.Contact, &u.Category,
		&u.Brand, &u.Model, &u.Price, &u.OriginalPrice, &u.Condition, &imagesJSON,
		&u.Description, &u.Status, &u.CreatedAt, &u.SoldAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(imagesJSON), &u.Images); err != nil {
		return nil, eris.Wrapf(err, "sqlite: malformed images for used item %s", u.ID)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUsedItem(ctx context.Context, u *model.UsedItem) error {
	images := u.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal used item images")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO used_items (id, type, seller_id, seller_name, contact, category, brand, model, price, original_price, condition, images, description, status, created_at, sold_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Type, u.SellerID, u.SellerName, u.Contact, string(u.Category), u.Brand,
		u.Model, u.Price, u.OriginalPrice, u.Condition, string(imagesJSON), u.Description,
		string(u.Status), u.CreatedAt, u.SoldAt,
	)
	return eris.Wrap(err, "sqlite: insert used item")
}

func (s *SQLiteStore) GetUsedItem(ctx context.Context, id string) (*model.UsedItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+usedItemColumns+` FROM used_items WHERE id = ?`, id)
	u, err := scanUsedItemLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get used item %s", id)
	}
	return u, nil
}

func (s *SQLiteStore) UpdateUsedItem(ctx context.Context, u *model.UsedItem) error {
	images := u.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal used item images")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE used_items SET contact = ?, brand = ?, model = ?, price = ?,
		 original_price = ?, condition = ?, images = ?, description = ?,
		 status = ?, sold_at = ? WHERE id = ?`,
		u.Contact, u.Brand, u.Model, u.Price, u.OriginalPrice, u.Condition, string(imagesJSON),
		u.Description, string(u.Status), u.SoldAt, u.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update used item %s", u.ID)
	}
	return checkRowsAffected(res, "used item", u.ID)
}

func (s *SQLiteStore) ListUsedItems(ctx context.Context, filter UsedFilter) ([]model.UsedItem, error) {
	query := `SELECT ` + usedItemColumns + ` FROM used_items WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
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
		return nil, eris.Wrap(err, "sqlite: list used items")
	}
	defer rows.Close()

	var items []model.UsedItem
	for rows.Next() {
		u, err := scanUsedItemLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan used item")
		}
		items = append(items, *u)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list used items iterate")
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, mobile, email, password_hash, role, status, last_login, invite_code, invited_by, invite_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Mobile, u.Email, u.PasswordHash, u.Role, u.Status,
		u.LastLogin, u.InviteCode, u.InvitedBy, u.InviteCount, u.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert user")
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get user %s", id)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get user by username %s", username)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByMobile(ctx context.Context, mobile string) (*model.User, error) {
	if mobile == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = ?`, mobile)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get user by mobile %s", mobile)
	}
	return u, nil
}

func (s *SQLiteStore) UpdateUserLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at, id)
	return eris.Wrapf(err, "sqlite: update user login %s", id)
}

func (s *SQLiteStore) IncrementInviteCount(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET invite_count = invite_count + 1 WHERE id = ?`, userID)
	return eris.Wrapf(err, "sqlite: increment invite count %s", userID)
}

func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *model.InvitationCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitation_codes (code, creator_id, max_uses, used_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inv.Code, inv.CreatorID, inv.MaxUses, inv.UsedCount, inv.Status, inv.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert invitation")
}

func (s *SQLiteStore) GetInvitation(ctx context.Context, code string) (*model.InvitationCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, creator_id, max_uses, used_count, status, created_at FROM invitation_codes WHERE code = ?`,
		code)
	var inv model.InvitationCode
	err := row.Scan(&inv.Code, &inv.CreatorID, &inv.MaxUses, &inv.UsedCount, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get invitation %s", code)
	}
	return &inv, nil
}

func (s *SQLiteStore) ConsumeInvitation(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitation_codes SET used_count = used_count + 1
		 WHERE code = ? AND status = 'active' AND used_count < max_uses`,
		code)
	if err != nil {
		return eris.Wrapf(err, "sqlite: consume invitation %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("invitation not usable: %s", code)
	}
	return nil
}

func (s *SQLiteStore) InsertVerificationCode(ctx context.Context, vc *model.VerificationCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_codes (id, destination, channel, code, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		vc.ID, vc.Destination, string(vc.Channel), vc.Code, vc.ExpiresAt, vc.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert verification code")
}

func (s *SQLiteStore) LatestVerificationCode(ctx context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, destination, channel, code, expires_at, created_at FROM verification_codes
		 WHERE destination = ? AND channel = ? ORDER BY created_at DESC LIMIT 1`,
		destination, string(channel))
	var vc model.VerificationCode
	err := row.Scan(&vc.ID, &vc.Destination, &vc.Channel, &vc.Code, &vc.ExpiresAt, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest verification code")
	}
	return &vc, nil
}

func (s *SQLiteStore) DeleteVerificationCodes(ctx context.Context, destination string, channel model.VerificationChannel) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE destination = ? AND channel = ?`,
		destination, string(channel))
	return eris.Wrap(err, "sqlite: delete verification codes")
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, plan_id, amount, status, pay_method, created_at, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.PlanID, o.Amount, string(o.Status), o.PayMethod, o.CreatedAt, o.PaidAt,
	)
	return eris.Wrap(err, "sqlite: insert order")
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan_id, amount, status, pay_method, created_at, paid_at FROM orders WHERE id = ?`,
		id)
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.PlanID, &o.Amount, &o.Status, &o.PayMethod, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get order %s", id)
	}
	return &o, nil
}

func (s *SQLiteStore) MarkOrderPaid(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = 'paid', paid_at = ? WHERE id = ? AND status = 'pending'`,
		at, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark order paid %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("order not pending: %s", id)
	}
	return nil
}

func (s *SQLiteStore) UpsertChatSession(ctx context.Context, cs *model.ChatSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, user_name, last_message, last_message_time, unread_count, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   last_message = excluded.last_message, last_message_time = excluded.last_message_time,
		   unread_count = excluded.unread_count, status = excluded.status, updated_at = excluded.updated_at`,
		cs.ID, cs.UserID, cs.UserName, cs.LastMessage, cs.LastMessageTime,
		cs.UnreadCount, cs.Status, cs.CreatedAt, cs.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert chat session %s", cs.ID)
}

func (s *SQLiteStore) GetChatSession(ctx context.Context, id string) (*model.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = ?`, id)
	cs, err := scanChatSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get chat session %s", id)
	}
	return cs, nil
}

func (s *SQLiteStore) ListChatSessions(ctx context.Context, status string, limit int) ([]model.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY last_message_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list chat sessions")
	}
	defer rows.Close()

	var sessions []model.ChatSession
	for rows.Next() {
		cs, err := scanChatSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat session")
		}
		sessions = append(sessions, *cs)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list chat sessions iterate")
}

func (s *SQLiteStore) InsertChatMessage(ctx context.Context, m *model.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, content, type, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Sender, m.Content, m.Type, m.IsRead, m.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert chat message")
}

func (s *SQLiteStore) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sender, content, type, is_read, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY created_at ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list chat messages")
	}
	defer rows.Close()

	var msgs []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.Type, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list chat messages iterate")
}

func (s *SQLiteStore) MarkSessionRead(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin mark session read")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_messages SET is_read = 1 WHERE session_id = ? AND is_read = 0`,
		sessionID); err != nil {
		return eris.Wrapf(err, "sqlite: mark messages read %s", sessionID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET unread_count = 0 WHERE id = ?`,
		sessionID); err != nil {
		return eris.Wrapf(err, "sqlite: reset unread count %s", sessionID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit mark session read")
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, string(value))
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

func (s *SQLiteStore) BumpDailyStat(ctx context.Context, date string, field StatField) error {
	switch field {
	case StatAIGenerations, StatNewBuilds, StatNewUsers:
	default:
		return eris.Errorf("unknown stat field: %s", field)
	}
	query := fmt.Sprintf(
		`INSERT INTO daily_stats (date, %[1]s) VALUES (?, 1)
		 ON CONFLICT (date) DO UPDATE SET %[1]s = %[1]s + 1`, field)
	_, err := s.db.ExecContext(ctx, query, date)
	return eris.Wrapf(err, "sqlite: bump daily stat %s", field)
}

func (s *SQLiteStore) GetDailyStats(ctx context.Context, from, to string) ([]model.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, ai_generations, new_builds, new_users FROM daily_stats
		 WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get daily stats")
	}
	defer rows.Close()

	var stats []model.DailyStat
	for rows.Next() {
		var d model.DailyStat
		if err := rows.Scan(&d.Date, &d.AIGenerations, &d.NewBuilds, &d.NewUsers); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan daily stat")
		}
		stats = append(stats, d)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: get daily stats iterate")
}
