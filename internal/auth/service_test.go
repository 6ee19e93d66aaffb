package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/rigforge/rigforge/internal/model"
)

// fakeAuthStore is an in-memory Store for auth tests.
type fakeAuthStore struct {
	users   map[string]*model.User // by username
	invites map[string]*model.InvitationCode
	codes   []*model.VerificationCode
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:   map[string]*model.User{},
		invites: map[string]*model.InvitationCode{},
	}
}

func (f *fakeAuthStore) CreateUser(_ context.Context, u *model.User) error {
	cp := *u
	f.users[u.Username] = &cp
	return nil
}

func (f *fakeAuthStore) GetUser(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAuthStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if u, ok := f.users[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAuthStore) GetUserByMobile(_ context.Context, mobile string) (*model.User, error) {
	if mobile == "" {
		return nil, nil
	}
	for _, u := range f.users {
		if u.Mobile == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAuthStore) UpdateUserLogin(_ context.Context, id string, at time.Time) error {
	for _, u := range f.users {
		if u.ID == id {
			u.LastLogin = &at
		}
	}
	return nil
}

func (f *fakeAuthStore) IncrementInviteCount(_ context.Context, userID string) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.InviteCount++
		}
	}
	return nil
}

func (f *fakeAuthStore) CreateInvitation(_ context.Context, inv *model.InvitationCode) error {
	cp := *inv
	f.invites[inv.Code] = &cp
	return nil
}

func (f *fakeAuthStore) GetInvitation(_ context.Context, code string) (*model.InvitationCode, error) {
	if inv, ok := f.invites[code]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAuthStore) ConsumeInvitation(_ context.Context, code string) error {
	inv, ok := f.invites[code]
	if !ok || !inv.Usable() {
		return ErrInviteInvalid
	}
	inv.UsedCount++
	return nil
}

func (f *fakeAuthStore) InsertVerificationCode(_ context.Context, vc *model.VerificationCode) error {
	cp := *vc
	f.codes = append(f.codes, &cp)
	return nil
}

func (f *fakeAuthStore) LatestVerificationCode(_ context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error) {
	var latest *model.VerificationCode
	for _, vc := range f.codes {
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

func (f *fakeAuthStore) DeleteVerificationCodes(_ context.Context, destination string, channel model.VerificationChannel) error {
	var kept []*model.VerificationCode
	for _, vc := range f.codes {
		if vc.Destination != destination || vc.Channel != channel {
			kept = append(kept, vc)
		}
	}
	f.codes = kept
	return nil
}

type recordingSender struct {
	sent []string
}

func (r *recordingSender) Send(_ context.Context, destination string, _ model.VerificationChannel, code string) error {
	r.sent = append(r.sent, destination+":"+code)
	return nil
}

func newTestService(t *testing.T, st Store) *Service {
	t.Helper()
	tm, err := NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	return New(st, tm, nil, Options{})
}

func seedInvite(f *fakeAuthStore, code, creator string, maxUses int) {
	f.invites[code] = &model.InvitationCode{
		Code: code, CreatorID: creator, MaxUses: maxUses, Status: "active",
	}
}

func TestRegister_HappyPath(t *testing.T) {
	f := newFakeAuthStore()
	seedInvite(f, "WELCOME1", "admin-1", 3)
	f.users["admin"] = &model.User{ID: "admin-1", Username: "admin"}
	s := newTestService(t, f)

	user, err := s.Register(context.Background(), RegisterRequest{
		Username:   "alice",
		Password:   "hunter22",
		InviteCode: "WELCOME1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "admin-1", user.InvitedBy)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	assert.Equal(t, 1, f.invites["WELCOME1"].UsedCount)
	assert.Equal(t, 1, f.users["admin"].InviteCount)
}

func TestRegister_BadInvite(t *testing.T) {
	f := newFakeAuthStore()
	s := newTestService(t, f)

	_, err := s.Register(context.Background(), RegisterRequest{
		Username: "alice", Password: "hunter22", InviteCode: "NOPE",
	})
	require.ErrorIs(t, err, ErrInviteInvalid)
}

func TestRegister_ExhaustedInvite(t *testing.T) {
	f := newFakeAuthStore()
	seedInvite(f, "FULL", "", 1)
	f.invites["FULL"].UsedCount = 1
	s := newTestService(t, f)

	_, err := s.Register(context.Background(), RegisterRequest{
		Username: "bob", Password: "hunter22", InviteCode: "FULL",
	})
	require.ErrorIs(t, err, ErrInviteInvalid)
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newFakeAuthStore()
	seedInvite(f, "OK", "", 3)
	f.users["alice"] = &model.User{ID: "u1", Username: "alice"}
	s := newTestService(t, f)

	_, err := s.Register(context.Background(), RegisterRequest{
		Username: "alice", Password: "hunter22", InviteCode: "OK",
	})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin_RoundTrip(t *testing.T) {
	f := newFakeAuthStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	f.users["alice"] = &model.User{
		ID: "u1", Username: "alice", PasswordHash: string(hash), Role: model.RoleUser,
	}
	s := newTestService(t, f)

	token, user, err := s.Login(context.Background(), "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, f.users["alice"].LastLogin)

	tm, _ := NewTokenManager("test-secret", time.Hour)
	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestLogin_ByMobile(t *testing.T) {
	f := newFakeAuthStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	f.users["alice"] = &model.User{
		ID: "u1", Username: "alice", Mobile: "13800001111",
		PasswordHash: string(hash), Role: model.RoleUser,
	}
	s := newTestService(t, f)

	_, user, err := s.Login(context.Background(), "13800001111", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, _, err = s.Login(context.Background(), "13800009999", "hunter22")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFakeAuthStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	f.users["alice"] = &model.User{ID: "u1", Username: "alice", PasswordHash: string(hash)}
	s := newTestService(t, f)

	_, _, err := s.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = s.Login(context.Background(), "nobody", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerificationCode_Flow(t *testing.T) {
	f := newFakeAuthStore()
	sender := &recordingSender{}
	tm, _ := NewTokenManager("test-secret", time.Hour)
	s := New(f, tm, sender, Options{SendRate: rate.Inf})

	require.NoError(t, s.SendVerificationCode(context.Background(), "13800001111", model.ChannelSMS))
	require.Len(t, f.codes, 1)
	require.Len(t, sender.sent, 1)

	code := f.codes[0].Code
	require.NoError(t, s.VerifyCode(context.Background(), "13800001111", model.ChannelSMS, code))
	assert.Empty(t, f.codes, "codes consumed after verification")

	// Second verify must fail: already consumed.
	err := s.VerifyCode(context.Background(), "13800001111", model.ChannelSMS, code)
	require.ErrorIs(t, err, ErrCodeMismatch)
}

func TestVerificationCode_RateLimited(t *testing.T) {
	f := newFakeAuthStore()
	tm, _ := NewTokenManager("test-secret", time.Hour)
	s := New(f, tm, nil, Options{SendRate: rate.Every(time.Hour), SendBurst: 1})

	require.NoError(t, s.SendVerificationCode(context.Background(), "a@b.c", model.ChannelEmail))
	err := s.SendVerificationCode(context.Background(), "a@b.c", model.ChannelEmail)
	require.ErrorIs(t, err, ErrRateLimited)

	// A different destination has its own limiter.
	require.NoError(t, s.SendVerificationCode(context.Background(), "x@y.z", model.ChannelEmail))
}

func TestVerifyCode_Expired(t *testing.T) {
	f := newFakeAuthStore()
	f.codes = append(f.codes, &model.VerificationCode{
		Destination: "a@b.c",
		Channel:     model.ChannelEmail,
		Code:        "123456",
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
	})
	s := newTestService(t, f)

	err := s.VerifyCode(context.Background(), "a@b.c", model.ChannelEmail, "123456")
	require.ErrorIs(t, err, ErrCodeMismatch)
}

func TestTokenManager_RejectsTampering(t *testing.T) {
	tm, err := NewTokenManager("secret-a", time.Hour)
	require.NoError(t, err)
	token, err := tm.Issue("u1", "alice", model.RoleAdmin)
	require.NoError(t, err)

	other, _ := NewTokenManager("secret-b", time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)

	_, err = tm.Verify(token + "x")
	require.Error(t, err)
}
