package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/rigforge/rigforge/internal/model"
)

// Sentinel errors callers map to HTTP statuses.
var (
	ErrInvalidCredentials = eris.New("auth: invalid credentials")
	ErrUsernameTaken      = eris.New("auth: username already taken")
	ErrInviteInvalid      = eris.New("auth: invitation code invalid or exhausted")
	ErrCodeMismatch       = eris.New("auth: verification code mismatch or expired")
	ErrRateLimited        = eris.New("auth: verification code requested too frequently")
)

// Store is the slice of persistence the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*model.User, error)
	UpdateUserLogin(ctx context.Context, id string, at time.Time) error
	IncrementInviteCount(ctx context.Context, userID string) error

	CreateInvitation(ctx context.Context, inv *model.InvitationCode) error
	GetInvitation(ctx context.Context, code string) (*model.InvitationCode, error)
	ConsumeInvitation(ctx context.Context, code string) error

	InsertVerificationCode(ctx context.Context, vc *model.VerificationCode) error
	LatestVerificationCode(ctx context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error)
	DeleteVerificationCodes(ctx context.Context, destination string, channel model.VerificationChannel) error
}

// Sender delivers verification codes over SMS or email. Implementations are
// provider-specific; tests use a recording fake.
type Sender interface {
	Send(ctx context.Context, destination string, channel model.VerificationChannel, code string) error
}

// Options tunes verification-code issuance.
type Options struct {
	CodeTTL      time.Duration // default 10m
	SendRate     rate.Limit    // per destination, default 1/min
	SendBurst    int           // default 3
	InviteMaxUse int           // default 3
}

func (o Options) withDefaults() Options {
	if o.CodeTTL <= 0 {
		o.CodeTTL = 10 * time.Minute
	}
	if o.SendRate <= 0 {
		o.SendRate = rate.Every(time.Minute)
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 3
	}
	if o.InviteMaxUse <= 0 {
		o.InviteMaxUse = 3
	}
	return o
}

// Service implements registration, login and verification flows.
type Service struct {
	store  Store
	tokens *TokenManager
	sender Sender
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an auth Service. sender may be nil when code delivery is
// disabled (codes are then only logged, useful in development).
func New(st Store, tokens *TokenManager, sender Sender, opts Options) *Service {
	return &Service{
		store:    st,
		tokens:   tokens,
		sender:   sender,
		opts:     opts.withDefaults(),
		limiters: map[string]*rate.Limiter{},
	}
}

// RegisterRequest carries a registration attempt.
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Mobile     string `json:"mobile,omitempty"`
	Email      string `json:"email,omitempty"`
	InviteCode string `json:"inviteCode"`
}

// Register creates an account gated by an invitation code.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 {
		return nil, eris.New("auth: username must be at least 3 characters")
	}
	if len(req.Password) < 6 {
		return nil, eris.New("auth: password must be at least 6 characters")
	}

	inv, err := s.store.GetInvitation(ctx, req.InviteCode)
	if err != nil {
		return nil, err
	}
	if inv == nil || !inv.Usable() {
		return nil, ErrInviteInvalid
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, eris.Wrap(err, "auth: hash password")
	}

	// Burn the invite first; the update is atomic and fails when the code
	// was exhausted by a concurrent registration.
	if err := s.store.ConsumeInvitation(ctx, req.InviteCode); err != nil {
		return nil, ErrInviteInvalid
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Mobile:       req.Mobile,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		Status:       "active",
		InvitedBy:    inv.CreatorID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if inv.CreatorID != "" {
		if err := s.store.IncrementInviteCount(ctx, inv.CreatorID); err != nil {
			zap.L().Warn("increment invite count failed",
				zap.String("creator_id", inv.CreatorID), zap.Error(err))
		}
	}
	return user, nil
}

// Login verifies credentials and issues a session token. The account may be
// identified by username or by registered mobile number.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, *model.User, error) {
	identifier = strings.TrimSpace(identifier)
	user, err := s.store.GetUserByUsername(ctx, identifier)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		user, err = s.store.GetUserByMobile(ctx, identifier)
		if err != nil {
			return "", nil, err
		}
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.UpdateUserLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		zap.L().Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return token, user, nil
}

// CreateInvitation mints a new invitation code owned by creatorID.
func (s *Service) CreateInvitation(ctx context.Context, creatorID string) (*model.InvitationCode, error) {
	inv := &model.InvitationCode{
		Code:      randomCode(8),
		CreatorID: creatorID,
		MaxUses:   s.opts.InviteMaxUse,
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SendVerificationCode issues a 6-digit code to the destination, rate-limited
// per destination to stop SMS/email flooding.
func (s *Service) SendVerificationCode(ctx context.Context, destination string, channel model.VerificationChannel) error {
	if destination == "" {
		return eris.New("auth: destination must not be empty")
	}
	if !s.limiter(string(channel) + ":" + destination).Allow() {
		return ErrRateLimited
	}

	code := fmt.Sprintf("%06d", randomInt(1000000))
	vc := &model.VerificationCode{
		ID:          uuid.New().String(),
		Destination: destination,
		Channel:     channel,
		Code:        code,
		ExpiresAt:   time.Now().UTC().Add(s.opts.CodeTTL),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertVerificationCode(ctx, vc); err != nil {
		return err
	}

	if s.sender == nil {
		zap.L().Info("verification code issued (no sender configured)",
			zap.String("destination", destination), zap.String("channel", string(channel)))
		return nil
	}
	return s.sender.Send(ctx, destination, channel, code)
}

// VerifyCode checks the latest code for a destination and consumes it.
func (s *Service) VerifyCode(ctx context.Context, destination string, channel model.VerificationChannel, code string) error {
	vc, err := s.store.LatestVerificationCode(ctx, destination, channel)
	if err != nil {
		return err
	}
	if vc == nil || vc.Expired(time.Now().UTC()) || vc.Code != code {
		return ErrCodeMismatch
	}
	return s.store.DeleteVerificationCodes(ctx, destination, channel)
}

func (s *Service) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.opts.SendRate, s.opts.SendBurst)
		s.limiters[key] = l
	}
	return l
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[randomInt(len(codeAlphabet))]
	}
	return string(b)
}

func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand failure means the platform entropy source is broken.
		panic(err)
	}
	return int(n.Int64())
}
