package snapbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"snapbook/internal/metrics"
	"snapbook/internal/model"
	"snapbook/internal/queue"
	"snapbook/internal/yearbook"
)

// Deps wires a Service. Store is required; the rest have in-process defaults.
type Deps struct {
	Store   Store
	Images  ImageStore
	Cache   yearbook.Cache
	Queue   queue.Queue
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service implements registration, capture, admin controls and the yearbook.
type Service struct {
	store    Store
	images   ImageStore
	cache    yearbook.Cache
	queue    queue.Queue
	metrics  *metrics.Metrics
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service from its dependencies.
func NewService(d Deps) *Service {
	if d.Images == nil {
		d.Images = InlineImages{}
	}
	if d.Cache == nil {
		d.Cache = yearbook.NewMemoryCache()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:    d.Store,
		images:   d.Images,
		cache:    d.Cache,
		queue:    d.Queue,
		metrics:  d.Metrics,
		log:      d.Logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type registerInput struct {
	Name string `validate:"required,max=80"`
}

type photoInput struct {
	Data string `validate:"required,datauri"`
}

type quoteInput struct {
	Text string `validate:"required,max=280"`
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidInput, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Register creates a participant with no photos.
func (s *Service) Register(ctx context.Context, name string) (model.Participant, error) {
	in := registerInput{Name: strings.TrimSpace(name)}
	if err := s.check(in); err != nil {
		return model.Participant{}, err
	}
	if err := s.requireOpen(ctx); err != nil {
		return model.Participant{}, err
	}

	now := s.now()
	p := model.Participant{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Photos:    []model.Photo{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return model.Participant{}, err
	}
	s.metrics.Registration()
	s.log.InfoContext(ctx, "participant registered", "participant_id", p.ID)
	return p, nil
}

// Participant returns one participant.
func (s *Service) Participant(ctx context.Context, id string) (model.Participant, error) {
	return s.store.GetParticipant(ctx, id)
}

// Participants returns all participants in registration order.
func (s *Service) Participants(ctx context.Context) ([]model.Participant, error) {
	return s.store.ListParticipants(ctx)
}

// RemoveParticipant deletes a participant and their photos.
func (s *Service) RemoveParticipant(ctx context.Context, id string) error {
	if err := s.store.DeleteParticipant(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "participant removed", "participant_id", id)
	s.requestRebuild(ctx, id)
	return nil
}

// CapturePhoto stores a captured photo and appends it to the participant.
func (s *Service) CapturePhoto(ctx context.Context, participantID, dataURL string) (model.Participant, error) {
	if err := s.check(photoInput{Data: dataURL}); err != nil {
		return model.Participant{}, err
	}
	if err := s.requireOpen(ctx); err != nil {
		return model.Participant{}, err
	}
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return model.Participant{}, err
	}
	// checked again under lock by AppendPhoto; this avoids a wasted upload
	if p.IsCompleted() {
		return model.Participant{}, ErrPhotoLimit
	}

	imageData, err := s.images.Put(ctx, participantID, dataURL)
	if err != nil {
		return model.Participant{}, fmt.Errorf("store image: %w", err)
	}
	photo := model.Photo{ID: uuid.NewString(), ImageData: imageData, Timestamp: s.now()}
	updated, err := s.store.AppendPhoto(ctx, participantID, photo, model.MaxPhotos)
	if err != nil {
		return model.Participant{}, err
	}
	s.metrics.PhotoCaptured()
	s.log.InfoContext(ctx, "photo captured",
		"participant_id", participantID, "photo_count", updated.PhotoCount(), "completed", updated.IsCompleted())
	s.requestRebuild(ctx, participantID)
	return updated, nil
}

// PhotoWall returns participants that have at least one photo.
func (s *Service) PhotoWall(ctx context.Context) ([]model.Participant, error) {
	all, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Participant, 0, len(all))
	for _, p := range all {
		if len(p.Photos) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// Stats summarises submissions.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	all, err := s.store.ListParticipants(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	st := model.Stats{TotalUsers: len(all)}
	for _, p := range all {
		st.TotalPhotos += p.PhotoCount()
		if p.IsCompleted() {
			st.CompletedSubmissions++
		}
	}
	return st, nil
}

// Settings returns the current admin settings.
func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	return s.store.GetSettings(ctx)
}

// ToggleSubmissions opens or closes submissions.
func (s *Service) ToggleSubmissions(ctx context.Context) (model.Settings, error) {
	now := s.now()
	st, err := s.store.UpdateSettings(ctx, func(st *model.Settings) {
		st.AcceptingSubmissions = !st.AcceptingSubmissions
		if st.AcceptingSubmissions {
			st.ClosedAt = nil
		} else {
			st.ClosedAt = &now
		}
	})
	if err != nil {
		return model.Settings{}, err
	}
	s.log.InfoContext(ctx, "submissions toggled", "accepting", st.AcceptingSubmissions)
	return st, nil
}

// GenerateYearbook publishes the yearbook and warms the cache.
func (s *Service) GenerateYearbook(ctx context.Context) (model.Settings, error) {
	now := s.now()
	st, err := s.store.UpdateSettings(ctx, func(st *model.Settings) {
		st.YearbookGenerated = true
		st.YearbookGeneratedAt = &now
	})
	if err != nil {
		return model.Settings{}, err
	}
	if _, err := s.RebuildYearbook(ctx); err != nil {
		s.log.WarnContext(ctx, "yearbook warmup failed", "error", err)
	}
	s.log.InfoContext(ctx, "yearbook generated")
	return st, nil
}

// ResetYearbook withdraws the yearbook and drops cached entries.
func (s *Service) ResetYearbook(ctx context.Context) (model.Settings, error) {
	st, err := s.store.UpdateSettings(ctx, func(st *model.Settings) {
		st.YearbookGenerated = false
		st.YearbookGeneratedAt = nil
	})
	if err != nil {
		return model.Settings{}, err
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WarnContext(ctx, "yearbook cache invalidate failed", "error", err)
	}
	s.log.InfoContext(ctx, "yearbook reset")
	return st, nil
}

// Quotes returns the quote pool.
func (s *Service) Quotes(ctx context.Context) ([]model.Quote, error) {
	return s.store.ListQuotes(ctx)
}

// AddQuote adds a quote to the pool.
func (s *Service) AddQuote(ctx context.Context, text string) (model.Quote, error) {
	in := quoteInput{Text: strings.TrimSpace(text)}
	if err := s.check(in); err != nil {
		return model.Quote{}, err
	}
	q, err := s.store.AddQuote(ctx, in.Text)
	if err != nil {
		return model.Quote{}, err
	}
	s.requestRebuild(ctx, "")
	return q, nil
}

// Yearbook returns the entries of the generated yearbook.
func (s *Service) Yearbook(ctx context.Context) ([]yearbook.Entry, error) {
	if err := s.requireGenerated(ctx); err != nil {
		return nil, err
	}
	participants, quotes, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fp := yearbook.Fingerprint(participants, quotes)
	entries, ok, err := s.cache.Get(ctx, fp)
	if err != nil {
		s.log.WarnContext(ctx, "yearbook cache get failed", "error", err)
	}
	s.metrics.CacheLookup(ok)
	if ok {
		if entries == nil {
			entries = []yearbook.Entry{}
		}
		return entries, nil
	}
	return s.build(ctx, fp, participants, quotes), nil
}

// Slideshow returns one slide per submitted photo.
func (s *Service) Slideshow(ctx context.Context) ([]yearbook.Slide, error) {
	if err := s.requireGenerated(ctx); err != nil {
		return nil, err
	}
	participants, quotes, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return yearbook.Slides(participants, quotes), nil
}

// RebuildYearbook drops cached derivations and caches the current one.
func (s *Service) RebuildYearbook(ctx context.Context) ([]yearbook.Entry, error) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WarnContext(ctx, "yearbook cache invalidate failed", "error", err)
	}
	participants, quotes, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fp := yearbook.Fingerprint(participants, quotes)
	return s.build(ctx, fp, participants, quotes), nil
}

func (s *Service) build(ctx context.Context, fp string, participants []model.Participant, quotes []model.Quote) []yearbook.Entry {
	entries := yearbook.DeriveEntries(participants, quotes)
	s.metrics.YearbookBuilt()
	if err := s.cache.Put(ctx, fp, entries); err != nil {
		s.log.WarnContext(ctx, "yearbook cache put failed", "error", err)
	}
	return entries
}

func (s *Service) snapshot(ctx context.Context) ([]model.Participant, []model.Quote, error) {
	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, nil, err
	}
	quotes, err := s.store.ListQuotes(ctx)
	if err != nil {
		return nil, nil, err
	}
	return participants, quotes, nil
}

func (s *Service) requireOpen(ctx context.Context) error {
	st, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !st.AcceptingSubmissions {
		return ErrSubmissionsClosed
	}
	return nil
}

func (s *Service) requireGenerated(ctx context.Context) error {
	st, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !st.YearbookGenerated {
		return ErrYearbookNotReady
	}
	return nil
}

// requestRebuild asks the worker to refresh the cached yearbook.
func (s *Service) requestRebuild(ctx context.Context, participantID string) {
	if s.queue == nil {
		return
	}
	msg := queue.Message{Type: queue.TypeYearbookRebuild, Body: []byte(participantID)}
	if err := s.queue.Publish(ctx, msg); err != nil {
		s.log.WarnContext(ctx, "queue publish failed", "type", msg.Type, "error", err)
	}
}
