package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(testLogger())
	os.Exit(m.Run())
}

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard, ServiceName: "pinfeed-test"})
}

func vecPtr(values ...float32) *domain.Vector {
	v := domain.Vector(values)
	return &v
}

// memPinStore is an in-memory PinStore. Insertion order doubles as creation order.
type memPinStore struct {
	mu      sync.Mutex
	pins    map[string]*domain.Pin
	order   []string
	popular []string

	findErr    error
	catalogErr error
	lookups    []string
}

func newMemPinStore(pins ...domain.Pin) *memPinStore {
	s := &memPinStore{pins: map[string]*domain.Pin{}}
	for i := range pins {
		p := pins[i]
		s.pins[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *memPinStore) FindByID(_ context.Context, id string) (*domain.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, id)
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.pins[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memPinStore) FindCandidateCatalog(_ context.Context, excludeUserID string) ([]domain.Pin, error) {
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	return s.filter(func(p *domain.Pin) bool {
		return p.HasEmbedding() && p.UserID != excludeUserID
	}), nil
}

func (s *memPinStore) FindEmbeddedExcept(_ context.Context, excludePinID string) ([]domain.Pin, error) {
	return s.filter(func(p *domain.Pin) bool {
		return p.HasEmbedding() && p.ID != excludePinID
	}), nil
}

func (s *memPinStore) filter(keep func(*domain.Pin) bool) []domain.Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Pin{}
	for _, id := range s.order {
		if p := s.pins[id]; keep(p) {
			out = append(out, *p)
		}
	}
	return out
}

func (s *memPinStore) ListPopularIDs(_ context.Context, limit, offset int) ([]string, error) {
	if offset >= len(s.popular) {
		return []string{}, nil
	}
	end := offset + limit
	if end > len(s.popular) {
		end = len(s.popular)
	}
	return append([]string{}, s.popular[offset:end]...), nil
}

func (s *memPinStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pins)), nil
}

func (s *memPinStore) Create(_ context.Context, pin *domain.Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pins[pin.ID]; ok {
		return errors.New("duplicate pin")
	}
	cp := *pin
	s.pins[pin.ID] = &cp
	s.order = append(s.order, pin.ID)
	return nil
}

func (s *memPinStore) Update(_ context.Context, pin *domain.Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pins[pin.ID]; !ok {
		return errors.New("record not found")
	}
	cp := *pin
	s.pins[pin.ID] = &cp
	return nil
}

func (s *memPinStore) GetByIDs(_ context.Context, ids []string) ([]domain.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Pin{}
	for _, id := range ids {
		if p, ok := s.pins[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memPinStore) SetEmbedding(_ context.Context, id string, embedding domain.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[id]
	if !ok {
		return errors.New("record not found")
	}
	v := embedding.Clone()
	p.Embedding = &v
	return nil
}

func (s *memPinStore) ListMissingEmbedding(_ context.Context, limit, offset int) ([]domain.Pin, error) {
	return page(s.filter(func(p *domain.Pin) bool {
		return !p.HasEmbedding() && p.StorageKey != ""
	}), limit, offset), nil
}

func (s *memPinStore) ListEmbedded(_ context.Context, limit, offset int) ([]domain.Pin, error) {
	return page(s.filter(func(p *domain.Pin) bool { return p.HasEmbedding() }), limit, offset), nil
}

func page(pins []domain.Pin, limit, offset int) []domain.Pin {
	if offset >= len(pins) {
		return []domain.Pin{}
	}
	end := offset + limit
	if end > len(pins) {
		end = len(pins)
	}
	return pins[offset:end]
}

// remove deletes a pin, simulating a concurrent delete.
func (s *memPinStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pins, id)
}

type memInteractionStore struct {
	mu       sync.Mutex
	records  []domain.Interaction
	findErr  error
	findHits int
	// missNext makes the next FindByUserAndPin report no record, as if a
	// concurrent writer had not committed yet.
	missNext bool
}

func newMemInteractionStore(records ...domain.Interaction) *memInteractionStore {
	return &memInteractionStore{records: records}
}

func (s *memInteractionStore) FindByUser(_ context.Context, userID string) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findHits++
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := []domain.Interaction{}
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memInteractionStore) FindByUserAndPin(_ context.Context, userID, pinID string) (*domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missNext {
		s.missNext = false
		return nil, nil
	}
	for _, r := range s.records {
		if r.UserID == userID && r.PinID == pinID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memInteractionStore) Create(_ context.Context, rec *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == rec.UserID && r.PinID == rec.PinID {
			return domain.ErrInteractionExists
		}
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *memInteractionStore) UpdateKinds(_ context.Context, rec *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i].Kinds = rec.Kinds
			s.records[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.New("record not found")
}

// like builds an interaction record for tests.
func like(userID, pinID string) domain.Interaction {
	return domain.Interaction{
		ID:     userID + ":" + pinID,
		UserID: userID,
		PinID:  pinID,
		Kinds:  domain.InteractionKinds{domain.InteractionLike},
	}
}

type fakePopular struct {
	ids   []string
	calls int
}

func (f *fakePopular) GetPopular(context.Context, int, int) ([]string, error) {
	f.calls++
	return f.ids, nil
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	deletes   int
	uploadErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.uploads++
	return nil
}

func (s *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) GetURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deletes++
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

type fakeEmbedder struct {
	vector domain.Vector
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, []byte, string) (domain.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector.Clone(), nil
}

type fakeIndex struct {
	mu        sync.Mutex
	upserted  map[string]domain.Vector
	deleted   []string
	upsertErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserted: map[string]domain.Vector{}}
}

func (f *fakeIndex) Upsert(_ context.Context, pin *domain.Pin) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[pin.ID] = pin.EmbeddingVector().Clone()
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.upserted, id)
	return nil
}
