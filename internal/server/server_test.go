package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rigforge/rigforge/internal/auth"
	"github.com/rigforge/rigforge/internal/builder"
	"github.com/rigforge/rigforge/internal/catalog"
	"github.com/rigforge/rigforge/internal/config"
	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

// memStore is an in-memory store.Store used by handler tests.
type memStore struct {
	hardware map[string]*model.HardwareItem
	changes  []*model.PriceChange
	builds   map[string]*model.BuildConfig
	used     map[string]*model.UsedItem
	users    map[string]*model.User
	invites  map[string]*model.InvitationCode
	codes    []*model.VerificationCode
	orders   map[string]*model.Order
	sessions map[string]*model.ChatSession
	messages []*model.ChatMessage
	settings map[string][]byte
	stats    map[string]map[store.StatField]int
}

func newMemStore() *memStore {
	return &memStore{
		hardware: map[string]*model.HardwareItem{},
		builds:   map[string]*model.BuildConfig{},
		used:     map[string]*model.UsedItem{},
		users:    map[string]*model.User{},
		invites:  map[string]*model.InvitationCode{},
		orders:   map[string]*model.Order{},
		sessions: map[string]*model.ChatSession{},
		settings: map[string][]byte{},
		stats:    map[string]map[store.StatField]int{},
	}
}

func (m *memStore) CreateHardware(_ context.Context, item *model.HardwareItem) error {
	cp := *item
	m.hardware[item.ID] = &cp
	return nil
}

func (m *memStore) GetHardware(_ context.Context, id string) (*model.HardwareItem, error) {
	if it, ok := m.hardware[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpdateHardware(_ context.Context, item *model.HardwareItem) error {
	if _, ok := m.hardware[item.ID]; !ok {
		return eris.Errorf("hardware not found: %s", item.ID)
	}
	cp := *item
	m.hardware[item.ID] = &cp
	return nil
}

func (m *memStore) DeleteHardware(_ context.Context, id string) error {
	delete(m.hardware, id)
	return nil
}

func (m *memStore) ListHardware(_ context.Context, filter store.HardwareFilter) ([]model.HardwareItem, error) {
	var out []model.HardwareItem
	for _, it := range m.hardware {
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpsertHardware(_ context.Context, item *model.HardwareItem) error {
	cp := *item
	m.hardware[item.ID] = &cp
	return nil
}

func (m *memStore) LatestPriceChange(_ context.Context, hardwareID string) (*model.PriceChange, error) {
	var latest *model.PriceChange
	for _, pc := range m.changes {
		if pc.HardwareID != hardwareID {
			continue
		}
		if latest == nil || pc.ChangedAt.After(latest.ChangedAt) {
			latest = pc
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) InsertPriceChange(_ context.Context, pc *model.PriceChange) error {
	cp := *pc
	m.changes = append(m.changes, &cp)
	return nil
}

func (m *memStore) UpdatePriceChange(_ context.Context, pc *model.PriceChange) error {
	for i, existing := range m.changes {
		if existing.ID == pc.ID {
			cp := *pc
			m.changes[i] = &cp
		}
	}
	return nil
}

func (m *memStore) ListPriceChanges(_ context.Context, hardwareID string, _ int) ([]model.PriceChange, error) {
	var out []model.PriceChange
	for _, pc := range m.changes {
		if hardwareID == "" || pc.HardwareID == hardwareID {
			out = append(out, *pc)
		}
	}
	return out, nil
}

func (m *memStore) CreateBuild(_ context.Context, b *model.BuildConfig) error {
	cp := *b
	m.builds[b.ID] = &cp
	return nil
}

func (m *memStore) GetBuild(_ context.Context, id string) (*model.BuildConfig, error) {
	if b, ok := m.builds[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpdateBuild(_ context.Context, b *model.BuildConfig) error {
	if _, ok := m.builds[b.ID]; !ok {
		return eris.Errorf("build not found: %s", b.ID)
	}
	cp := *b
	m.builds[b.ID] = &cp
	return nil
}

func (m *memStore) DeleteBuild(_ context.Context, id string) error {
	delete(m.builds, id)
	return nil
}

func (m *memStore) ListBuilds(_ context.Context, filter store.BuildFilter) ([]model.BuildConfig, error) {
	var out []model.BuildConfig
	for _, b := range m.builds {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) IncrementBuildViews(_ context.Context, id string) error {
	b, ok := m.builds[id]
	if !ok {
		return eris.Errorf("build not found: %s", id)
	}
	b.Views++
	return nil
}

func (m *memStore) IncrementBuildLikes(_ context.Context, id string) error {
	b, ok := m.builds[id]
	if !ok {
		return eris.Errorf("build not found: %s", id)
	}
	b.Likes++
	return nil
}

func (m *memStore) ListReferenceBuilds(_ context.Context, minPrice, maxPrice float64, limit int) ([]model.BuildConfig, error) {
	var out []model.BuildConfig
	for _, b := range m.builds {
		if b.Status == model.BuildPublished && b.IsRecommended &&
			b.TotalPrice >= minPrice && b.TotalPrice <= maxPrice {
			out = append(out, *b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CreateUsedItem(_ context.Context, u *model.UsedItem) error {
	cp := *u
	m.used[u.ID] = &cp
	return nil
}

func (m *memStore) GetUsedItem(_ context.Context, id string) (*model.UsedItem, error) {
	if u, ok := m.used[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpdateUsedItem(_ context.Context, u *model.UsedItem) error {
	cp := *u
	m.used[u.ID] = &cp
	return nil
}

func (m *memStore) ListUsedItems(_ context.Context, filter store.UsedFilter) ([]model.UsedItem, error) {
	var out []model.UsedItem
	for _, u := range m.used {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByMobile(_ context.Context, mobile string) (*model.User, error) {
	if mobile == "" {
		return nil, nil
	}
	for _, u := range m.users {
		if u.Mobile == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateUserLogin(_ context.Context, id string, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (m *memStore) IncrementInviteCount(_ context.Context, userID string) error {
	if u, ok := m.users[userID]; ok {
		u.InviteCount++
	}
	return nil
}

func (m *memStore) CreateInvitation(_ context.Context, inv *model.InvitationCode) error {
	cp := *inv
	m.invites[inv.Code] = &cp
	return nil
}

func (m *memStore) GetInvitation(_ context.Context, code string) (*model.InvitationCode, error) {
	if inv, ok := m.invites[code]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ConsumeInvitation(_ context.Context, code string) error {
	inv, ok := m.invites[code]
	if !ok || !inv.Usable() {
		return eris.Errorf("invitation not usable: %s", code)
	}
	inv.UsedCount++
	return nil
}

func (m *memStore) InsertVerificationCode(_ context.Context, vc *model.VerificationCode) error {
	cp := *vc
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *memStore) LatestVerificationCode(_ context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error) {
	var latest *model.VerificationCode
	for _, vc := range m.codes {
		if vc.Destination != destination || vc.Channel != channel {
			continue
		}
		if latest == nil || vc.CreatedAt.After(latest.CreatedAt) {
			latest = vc
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) DeleteVerificationCodes(_ context.Context, destination string, channel model.VerificationChannel) error {
	var kept []*model.VerificationCode
	for _, vc := range m.codes {
		if vc.Destination != destination || vc.Channel != channel {
			kept = append(kept, vc)
		}
	}
	m.codes = kept
	return nil
}

func (m *memStore) CreateOrder(_ context.Context, o *model.Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) MarkOrderPaid(_ context.Context, id string, at time.Time) error {
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderPending {
		return eris.Errorf("order not pending: %s", id)
	}
	o.Status = model.OrderPaid
	o.PaidAt = &at
	return nil
}

func (m *memStore) UpsertChatSession(_ context.Context, s *model.ChatSession) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetChatSession(_ context.Context, id string) (*model.ChatSession, error) {
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListChatSessions(_ context.Context, status string, _ int) ([]model.ChatSession, error) {
	var out []model.ChatSession
	for _, s := range m.sessions {
		if status == "" || s.Status == status {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) InsertChatMessage(_ context.Context, msg *model.ChatMessage) error {
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memStore) ListChatMessages(_ context.Context, sessionID string, _ int) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memStore) MarkSessionRead(_ context.Context, sessionID string) error {
	if s, ok := m.sessions[sessionID]; ok {
		s.UnreadCount = 0
	}
	return nil
}

func (m *memStore) GetSetting(_ context.Context, key string) ([]byte, error) {
	return m.settings[key], nil
}

func (m *memStore) SetSetting(_ context.Context, key string, value []byte) error {
	m.settings[key] = value
	return nil
}

func (m *memStore) BumpDailyStat(_ context.Context, date string, field store.StatField) error {
	if m.stats[date] == nil {
		m.stats[date] = map[store.StatField]int{}
	}
	m.stats[date][field]++
	return nil
}

func (m *memStore) GetDailyStats(_ context.Context, from, to string) ([]model.DailyStat, error) {
	var out []model.DailyStat
	for date, fields := range m.stats {
		if date < from || date > to {
			continue
		}
		out = append(out, model.DailyStat{
			Date:          date,
			AIGenerations: fields[store.StatAIGenerations],
			NewBuilds:     fields[store.StatNewBuilds],
			NewUsers:      fields[store.StatNewUsers],
		})
	}
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Ping(context.Context) error    { return nil }
func (m *memStore) Close() error                  { return nil }

// testServer assembles a Server over memStore with a deterministic generator.
func testServer(t *testing.T, st *memStore, gen GenerateFunc) *Server {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	srv := New(
		st,
		catalog.New(st),
		auth.New(st, tokens, nil, auth.Options{}),
		tokens,
		builder.Options{},
		config.ServerConfig{Port: 0},
		config.AIConfig{},
	)
	if gen != nil {
		srv.generate = gen
	}
	return srv
}

func issueToken(t *testing.T, st *memStore, id, username, role string) string {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	st.users[id] = &model.User{ID: id, Username: username, PasswordHash: string(hash), Role: role}
	tokens, _ := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Issue(id, username, role)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerate_NotConfigured(t *testing.T) {
	srv := testServer(t, newMemStore(), func(context.Context, model.AISettings, builder.GenerateRequest) (*model.GeneratedBuild, error) {
		return nil, builder.ErrNotConfigured
	})
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/generate", "", map[string]string{"prompt": "6000元游戏主机"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "administrator")
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	srv := testServer(t, newMemStore(), func(context.Context, model.AISettings, builder.GenerateRequest) (*model.GeneratedBuild, error) {
		return nil, eris.New("completion timed out")
	})
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/generate", "", map[string]string{"prompt": "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerate_SuccessBumpsStat(t *testing.T) {
	st := newMemStore()
	want := &model.GeneratedBuild{
		Items:      map[model.Category]*model.HardwareItem{model.CategoryCPU: {ID: "cpu-1", Price: 1200}},
		TotalPrice: 1200,
	}
	var gotSettings model.AISettings
	st.settings[model.SettingsKeyAI] = []byte(`{"enabled":true,"apiKey":"sk-test","model":"m"}`)
	srv := testServer(t, st, func(_ context.Context, settings model.AISettings, _ builder.GenerateRequest) (*model.GeneratedBuild, error) {
		gotSettings = settings
		return want, nil
	})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/generate", "", map[string]string{"prompt": "6000元游戏主机"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.GeneratedBuild
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1200.0, got.TotalPrice)

	// Stored settings flowed through, and the counter moved.
	assert.Equal(t, "sk-test", gotSettings.APIKey)
	date := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, 1, st.stats[date][store.StatAIGenerations])
}

func TestHardware_AdminGate(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()

	body := map[string]any{"category": "cpu", "brand": "Intel", "model": "i5-14600K", "price": 1500}

	rec := doJSON(t, h, http.MethodPost, "/api/hardware/", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken := issueToken(t, st, "u1", "alice", model.RoleUser)
	rec = doJSON(t, h, http.MethodPost, "/api/hardware/", userToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)
	rec = doJSON(t, h, http.MethodPost, "/api/hardware/", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.HardwareItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.HardwareActive, created.Status)
}

func TestHardware_PriceUpdateRecordsHistory(t *testing.T) {
	st := newMemStore()
	st.hardware["hw-1"] = &model.HardwareItem{
		ID: "hw-1", Category: model.CategoryGPU, Brand: "NVIDIA", Model: "RTX 4070",
		Price: 4500, Status: model.HardwareActive,
	}
	srv := testServer(t, st, nil)
	h := srv.Router()
	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)

	rec := doJSON(t, h, http.MethodPut, "/api/hardware/hw-1/price", adminToken, map[string]float64{"price": 4200})
	require.Equal(t, http.StatusOK, rec.Code)

	var item model.HardwareItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.True(t, item.IsDiscount)
	require.NotNil(t, item.PreviousPrice)
	assert.Equal(t, 4500.0, *item.PreviousPrice)

	rec = doJSON(t, h, http.MethodGet, "/api/price-history?hardwareId=hw-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var changes []model.PriceChange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, 4500.0, changes[0].OldPrice)
	assert.Equal(t, 4200.0, changes[0].NewPrice)
}

func TestBuilds_CreateLikeView(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()
	token := issueToken(t, st, "u1", "alice", model.RoleUser)

	rec := doJSON(t, h, http.MethodPost, "/api/builds/", token, map[string]any{
		"title": "Budget gaming rig",
		"items": map[string]string{"cpu": "cpu-1", "gpu": "gpu-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var build model.BuildConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &build))
	assert.Equal(t, "u1", build.UserID)
	assert.NotEmpty(t, build.SerialNumber)
	assert.Equal(t, model.BuildDraft, build.Status)

	rec = doJSON(t, h, http.MethodPost, "/api/builds/"+build.ID+"/like", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/builds/"+build.ID+"/view", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, st.builds[build.ID].Likes)
	assert.Equal(t, 1, st.builds[build.ID].Views)

	date := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, 1, st.stats[date][store.StatNewBuilds])
}

func TestBuilds_UpdateOwnership(t *testing.T) {
	st := newMemStore()
	st.builds["b1"] = &model.BuildConfig{ID: "b1", UserID: "u1", Title: "Mine"}
	srv := testServer(t, st, nil)
	h := srv.Router()

	otherToken := issueToken(t, st, "u2", "bob", model.RoleUser)
	rec := doJSON(t, h, http.MethodPut, "/api/builds/b1", otherToken, map[string]string{"title": "Stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)
	rec = doJSON(t, h, http.MethodPut, "/api/builds/b1", adminToken, map[string]string{"title": "Moderated"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Moderated", st.builds["b1"].Title)
	assert.Equal(t, "u1", st.builds["b1"].UserID, "owner preserved on admin edit")
}

func TestUsed_ModerationFlow(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()
	sellerToken := issueToken(t, st, "u1", "alice", model.RoleUser)

	rec := doJSON(t, h, http.MethodPost, "/api/used/", sellerToken, map[string]any{
		"category": "gpu", "brand": "NVIDIA", "model": "RTX 3080",
		"price": 2500, "condition": "9成新",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var item model.UsedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, model.UsedPending, item.Status)

	// The seller cannot approve their own listing.
	rec = doJSON(t, h, http.MethodPut, "/api/used/"+item.ID, sellerToken, map[string]string{"status": "listed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)
	rec = doJSON(t, h, http.MethodPut, "/api/used/"+item.ID, adminToken, map[string]string{"status": "listed"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Sold is a seller move, and stamps SoldAt.
	rec = doJSON(t, h, http.MethodPut, "/api/used/"+item.ID, sellerToken, map[string]string{"status": "sold"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, st.used[item.ID].SoldAt)

	// No way back from sold.
	rec = doJSON(t, h, http.MethodPut, "/api/used/"+item.ID, sellerToken, map[string]string{"status": "listed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	st := newMemStore()
	st.invites["WELCOME1"] = &model.InvitationCode{Code: "WELCOME1", MaxUses: 3, Status: "active"}
	srv := testServer(t, st, nil)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "hunter22", "inviteCode": "WELCOME1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = doJSON(t, h, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)

	date := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, 1, st.stats[date][store.StatNewUsers])
}

func TestAuth_RegisterBadInvite(t *testing.T) {
	srv := testServer(t, newMemStore(), nil)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "hunter22", "inviteCode": "NOPE",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrders_Flow(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()
	userToken := issueToken(t, st, "u1", "alice", model.RoleUser)
	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)

	rec := doJSON(t, h, http.MethodPost, "/api/orders/", userToken, map[string]any{
		"planId": "pro-monthly", "amount": 2900, "payMethod": "wechat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, model.OrderPending, order.Status)

	// Another user cannot read it; the owner and an admin can.
	otherToken := issueToken(t, st, "u2", "bob", model.RoleUser)
	rec = doJSON(t, h, http.MethodGet, "/api/orders/"+order.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/orders/"+order.ID, userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Marking paid is admin-only and idempotence is rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/orders/"+order.ID+"/paid", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/orders/"+order.ID+"/paid", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/orders/"+order.ID+"/paid", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChat_GuestSessionAndUnread(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/chat/sessions/sess-1/messages", "", map[string]string{
		"sender": "user", "content": "显卡什么时候降价?",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, st.sessions["sess-1"])
	assert.Equal(t, 1, st.sessions["sess-1"].UnreadCount)
	assert.Equal(t, "guest", st.sessions["sess-1"].UserName)

	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)

	// Posting as admin without an admin token is refused.
	rec = doJSON(t, h, http.MethodPost, "/api/chat/sessions/sess-1/messages", "", map[string]string{
		"sender": "admin", "content": "spoofed",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A real admin reply does not bump the unread counter.
	rec = doJSON(t, h, http.MethodPost, "/api/chat/sessions/sess-1/messages", adminToken, map[string]string{
		"sender": "admin", "content": "关注价格历史页面",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, st.sessions["sess-1"].UnreadCount)
	rec = doJSON(t, h, http.MethodPost, "/api/chat/sessions/sess-1/read", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, st.sessions["sess-1"].UnreadCount)

	rec = doJSON(t, h, http.MethodGet, "/api/chat/sessions/sess-1/messages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []model.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	assert.Len(t, messages, 2)
}

func TestSettings_ValidatesAIDocument(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, st, nil)
	h := srv.Router()
	adminToken := issueToken(t, st, "a1", "admin", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodPut, "/api/settings/ai", bytes.NewBufferString(`{"enabled":true}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "enabled without key rejected")

	req = httptest.NewRequest(http.MethodPut, "/api/settings/ai", bytes.NewBufferString(`{"enabled":true,"apiKey":"sk-1","model":"m"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true,"apiKey":"sk-1","model":"m"}`, string(st.settings["ai"]))
}

func TestHealth(t *testing.T) {
	srv := testServer(t, newMemStore(), nil)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
