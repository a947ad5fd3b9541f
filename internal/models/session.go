package models

import "time"

const (
	SessionScheduled = "scheduled"
	SessionActive    = "active"
	SessionEnded     = "ended"
)

const (
	RoleCoach       = "coach"
	RoleParticipant = "participant"
)

type Session struct {
	ID        string    `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Participant struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Muted     bool      `json:"muted"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Message struct {
	SessionID string    `json:"session_id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// ChannelConfig is the video-channel handle returned by the provisioner.
type ChannelConfig struct {
	ChannelID string `json:"channel_id"`
	JoinURL   string `json:"join_url"`
	Token     string `json:"token,omitempty"`
}

type SessionDetail struct {
	Session
	PaymentLink  *string        `json:"payment_link,omitempty"`
	Channel      *ChannelConfig `json:"channel,omitempty"`
	Participants []Participant  `json:"participants,omitempty"`
}
