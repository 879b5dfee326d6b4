package snapbook

import (
	"context"

	"snapbook/internal/model"
)

// Store is the document store behind the service.
type Store interface {
	CreateParticipant(ctx context.Context, p model.Participant) error
	GetParticipant(ctx context.Context, id string) (model.Participant, error)
	// ListParticipants returns participants in registration order.
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	// AppendPhoto atomically appends photo unless the participant already
	// holds limit photos.
	AppendPhoto(ctx context.Context, participantID string, photo model.Photo, limit int) (model.Participant, error)

	ListQuotes(ctx context.Context) ([]model.Quote, error)
	AddQuote(ctx context.Context, text string) (model.Quote, error)

	GetSettings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, fn func(*model.Settings)) (model.Settings, error)
}

// ImageStore persists captured image data and returns what to keep as the
// photo's image data.
type ImageStore interface {
	Put(ctx context.Context, participantID, dataURL string) (string, error)
}

// InlineImages keeps data URLs as the stored image data.
type InlineImages struct{}

// Put returns dataURL unchanged.
func (InlineImages) Put(_ context.Context, _ string, dataURL string) (string, error) {
	return dataURL, nil
}
