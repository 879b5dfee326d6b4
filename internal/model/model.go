package model

import "time"

// MaxPhotos is how many photos a participant may submit.
const MaxPhotos = 3

// Photo is one captured image owned by a participant.
type Photo struct {
	ID        string    `json:"id"`
	ImageData string    `json:"imageData"` // data URL or hosted image URL
	Timestamp time.Time `json:"timestamp"`
}

// Participant is a registered attendee.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Photos    []Photo   `json:"photos"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PhotoCount returns the number of captured photos.
func (p Participant) PhotoCount() int { return len(p.Photos) }

// IsCompleted reports whether the participant has used every photo slot.
func (p Participant) IsCompleted() bool { return len(p.Photos) >= MaxPhotos }

// Quote is a caption paired with yearbook entries.
type Quote struct {
	ID   int64  `json:"id,omitempty"`
	Text string `json:"text"`
}

// Settings is the event-wide admin state.
type Settings struct {
	AcceptingSubmissions bool       `json:"acceptingSubmissions"`
	ClosedAt             *time.Time `json:"closedAt,omitempty"`
	YearbookGenerated    bool       `json:"yearbookGenerated"`
	YearbookGeneratedAt  *time.Time `json:"yearbookGeneratedAt,omitempty"`
}

// DefaultSettings is used before an admin has saved anything.
func DefaultSettings() Settings {
	return Settings{AcceptingSubmissions: true}
}

// Stats summarises submissions for the admin dashboard.
type Stats struct {
	TotalUsers           int `json:"totalUsers"`
	TotalPhotos          int `json:"totalPhotos"`
	CompletedSubmissions int `json:"completedSubmissions"`
}
