package model

import "time"

// ChatSession is one support conversation between a user (or guest) and the
// admin side. UnreadCount tracks messages the admin has not yet read.
type ChatSession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId,omitempty"`
	UserName        string    `json:"userName"`
	LastMessage     string    `json:"lastMessage,omitempty"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
	Status          string    `json:"status"` // active | closed
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ChatMessage is one message within a session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"` // user | admin | system
	Content   string    `json:"content"`
	Type      string    `json:"type"` // text | image | product | order
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyStat aggregates per-day platform counters, keyed by YYYY-MM-DD.
type DailyStat struct {
	Date          string `json:"date"`
	AIGenerations int    `json:"aiGenerations"`
	NewBuilds     int    `json:"newBuilds"`
	NewUsers      int    `json:"newUsers"`
}
