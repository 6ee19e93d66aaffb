package model

import "time"

// User is a registered account. PasswordHash is a bcrypt digest and never
// serialized to API responses.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Mobile       string     `json:"mobile,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	InviteCode   string     `json:"inviteCode,omitempty"`
	InvitedBy    string     `json:"invitedBy,omitempty"`
	InviteCount  int        `json:"inviteCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// InvitationCode gates registration. A code is consumable while active and
// under its use cap.
type InvitationCode struct {
	Code      string    `json:"code"`
	CreatorID string    `json:"creatorId"`
	MaxUses   int       `json:"maxUses"`
	UsedCount int       `json:"usedCount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Usable reports whether the code can still be redeemed.
func (c InvitationCode) Usable() bool {
	return c.Status == "active" && c.UsedCount < c.MaxUses
}

// VerificationChannel distinguishes SMS from email verification codes.
type VerificationChannel string

const (
	ChannelSMS   VerificationChannel = "sms"
	ChannelEmail VerificationChannel = "email"
)

// VerificationCode is a short-lived one-time code sent to a mobile number or
// email address during registration or login.
type VerificationCode struct {
	ID          string              `json:"id"`
	Destination string              `json:"destination"`
	Channel     VerificationChannel `json:"channel"`
	Code        string              `json:"code"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// Expired reports whether the code is past its TTL at the given instant.
func (v VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
