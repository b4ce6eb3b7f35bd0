package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
)

// memStore backs every fake repository; the transactor snapshots it to emulate rollback
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	sessions  map[uint]models.Session
	cards     map[uint][]models.SessionCard
	outcomes  []models.DailyOutcome
	templates []models.CardTemplate
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uint]models.Session),
		cards:    make(map[uint][]models.SessionCard),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	nextID   uint
	sessions map[uint]models.Session
	cards    map[uint][]models.SessionCard
	outcomes []models.DailyOutcome
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextID:   s.nextID,
		sessions: make(map[uint]models.Session, len(s.sessions)),
		cards:    make(map[uint][]models.SessionCard, len(s.cards)),
		outcomes: append([]models.DailyOutcome(nil), s.outcomes...),
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	for k, v := range s.cards {
		snap.cards[k] = append([]models.SessionCard(nil), v...)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.sessions = snap.sessions
	s.cards = snap.cards
	s.outcomes = snap.outcomes
}

type memTransactor struct{ store *memStore }

func (t memTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// sessions

type fakeSessionRepo struct{ store *memStore }

func (r *fakeSessionRepo) ByID(_ context.Context, id uint) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSessionRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.UUID == id {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) matching(filter models.SessionFilter) []*models.Session {
	var out []*models.Session
	for _, s := range r.store.sessions {
		if filter.OwnerKey != nil && s.OwnerKey != *filter.OwnerKey {
			continue
		}
		if filter.IsFinalized != nil && (s.FinalizedAt != nil) != *filter.IsFinalized {
			continue
		}
		if filter.IsOfficialDaily != nil && s.IsOfficialDaily != *filter.IsOfficialDaily {
			continue
		}
		cp := s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].FinalizedAt, out[j].FinalizedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeSessionRepo) ByFilter(_ context.Context, filter models.SessionFilter, _ string, limit, offset int) ([]*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows := r.matching(filter)
	if offset >= len(rows) {
		return []*models.Session{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, s *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s.ID = r.store.id()
	r.store.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) SaveBatch(ctx context.Context, entities []*models.Session) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSessionRepo) Count(_ context.Context, filter models.SessionFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *fakeSessionRepo) Exists(ctx context.Context, filter models.SessionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *fakeSessionRepo) UpdateStatus(_ context.Context, id uint, status models.SessionStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[id]
	if !ok || s.FinalizedAt != nil {
		return repository.ErrSessionAlreadyFinalized
	}
	s.Status = status
	r.store.sessions[id] = s
	return nil
}

func (r *fakeSessionRepo) MarkFinalized(_ context.Context, id uint, fin models.SessionFinalization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[id]
	if !ok || s.FinalizedAt != nil {
		return repository.ErrSessionAlreadyFinalized
	}
	applyFinalization(&s, fin)
	r.store.sessions[id] = s
	return nil
}

// session cards

type fakeCardRepo struct{ store *memStore }

func (r *fakeCardRepo) ByID(_ context.Context, id uint) (*models.SessionCard, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, cards := range r.store.cards {
		for _, c := range cards {
			if c.ID == id {
				out := c
				return &out, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeCardRepo) ByFilter(_ context.Context, filter models.SessionCardFilter, _ string, _, _ int) ([]*models.SessionCard, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.SessionCard
	for sid, cards := range r.store.cards {
		if filter.SessionID != nil && sid != *filter.SessionID {
			continue
		}
		for _, c := range cards {
			cp := c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCardRepo) Save(_ context.Context, c *models.SessionCard) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.cards[c.SessionID] {
		if existing.Index == c.Index {
			return repository.ErrSessionCardIndexTaken
		}
	}
	c.ID = r.store.id()
	r.store.cards[c.SessionID] = append(r.store.cards[c.SessionID], *c)
	return nil
}

func (r *fakeCardRepo) SaveBatch(ctx context.Context, entities []*models.SessionCard) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCardRepo) Count(ctx context.Context, filter models.SessionCardFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCardRepo) Exists(ctx context.Context, filter models.SessionCardFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *fakeCardRepo) CountBySession(_ context.Context, sessionID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.cards[sessionID])), nil
}

func (r *fakeCardRepo) ListBySession(_ context.Context, sessionID uint) ([]*models.SessionCard, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.SessionCard, 0, len(r.store.cards[sessionID]))
	for _, c := range r.store.cards[sessionID] {
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// daily outcomes

type fakeDailyRepo struct {
	store *memStore
	// hideExisting makes ByOwnerAndDate miss so a racing insert reaches the unique check
	hideExisting bool
}

func (r *fakeDailyRepo) ByID(_ context.Context, id uint) (*models.DailyOutcome, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, o := range r.store.outcomes {
		if o.ID == id {
			out := o
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeDailyRepo) ByFilter(_ context.Context, filter models.DailyOutcomeFilter, _ string, _, _ int) ([]*models.DailyOutcome, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.DailyOutcome
	for _, o := range r.store.outcomes {
		if filter.OwnerKey != nil && o.OwnerKey != *filter.OwnerKey {
			continue
		}
		if filter.Date != nil && !o.Date.Equal(utils.StartOfUTCDay(*filter.Date)) {
			continue
		}
		if filter.SessionID != nil && o.SessionID != *filter.SessionID {
			continue
		}
		cp := o
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeDailyRepo) Save(_ context.Context, o *models.DailyOutcome) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o.Date = utils.StartOfUTCDay(o.Date)
	for _, existing := range r.store.outcomes {
		if existing.OwnerKey == o.OwnerKey && existing.Date.Equal(o.Date) {
			return repository.ErrDailyOutcomeExists
		}
	}
	o.ID = r.store.id()
	r.store.outcomes = append(r.store.outcomes, *o)
	return nil
}

func (r *fakeDailyRepo) SaveBatch(ctx context.Context, entities []*models.DailyOutcome) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeDailyRepo) Count(ctx context.Context, filter models.DailyOutcomeFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeDailyRepo) Exists(ctx context.Context, filter models.DailyOutcomeFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *fakeDailyRepo) ByOwnerAndDate(ctx context.Context, ownerKey string, date time.Time) (*models.DailyOutcome, error) {
	if r.hideExisting {
		return nil, nil
	}
	rows, _ := r.ByFilter(ctx, models.DailyOutcomeFilter{OwnerKey: &ownerKey, Date: &date}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeDailyRepo) BySessionID(ctx context.Context, sessionID uint) (*models.DailyOutcome, error) {
	rows, _ := r.ByFilter(ctx, models.DailyOutcomeFilter{SessionID: &sessionID}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeDailyRepo) ListDatesByOwner(ctx context.Context, ownerKey string) ([]time.Time, error) {
	rows, _ := r.ByFilter(ctx, models.DailyOutcomeFilter{OwnerKey: &ownerKey}, "", 0, 0)
	dates := make([]time.Time, 0, len(rows))
	for _, o := range rows {
		dates = append(dates, o.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func (r *fakeDailyRepo) CountByOwner(ctx context.Context, ownerKey string) (int64, error) {
	return r.Count(ctx, models.DailyOutcomeFilter{OwnerKey: &ownerKey})
}

// card templates

type fakeTemplateRepo struct {
	store    *memStore
	listHits int
	tags     []repository.TagCount
	tagsErr  error
}

func (r *fakeTemplateRepo) ByID(_ context.Context, id uint) (*models.CardTemplate, error) {
	for _, t := range r.store.templates {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) ByFilter(_ context.Context, filter models.CardTemplateFilter, _ string, _, _ int) ([]*models.CardTemplate, error) {
	var out []*models.CardTemplate
	for _, t := range r.store.templates {
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		if filter.IsActive != nil && utils.IsTrue(t.IsActive) != *filter.IsActive {
			continue
		}
		cp := t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTemplateRepo) Save(_ context.Context, t *models.CardTemplate) error {
	t.ID = r.store.id()
	r.store.templates = append(r.store.templates, *t)
	return nil
}

func (r *fakeTemplateRepo) SaveBatch(ctx context.Context, entities []*models.CardTemplate) error {
	for _, e := range entities {
		_ = r.Save(ctx, e)
	}
	return nil
}

func (r *fakeTemplateRepo) Count(ctx context.Context, filter models.CardTemplateFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeTemplateRepo) Exists(ctx context.Context, filter models.CardTemplateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *fakeTemplateRepo) ListActiveByType(ctx context.Context, cardType models.CardType) ([]*models.CardTemplate, error) {
	r.listHits++
	return r.ByFilter(ctx, models.CardTemplateFilter{Type: &cardType, IsActive: utils.ToPtr(true)}, "", 0, 0)
}

func (r *fakeTemplateRepo) Upsert(ctx context.Context, templates []*models.CardTemplate) (int64, error) {
	_ = r.SaveBatch(ctx, templates)
	return int64(len(templates)), nil
}

func (r *fakeTemplateRepo) TopTagsByOwner(_ context.Context, _ string, limit int) ([]repository.TagCount, error) {
	if r.tagsErr != nil {
		return nil, r.tagsErr
	}
	if len(r.tags) > limit {
		return r.tags[:limit], nil
	}
	return r.tags, nil
}

// randomness and time

// seqRandom replays fixed sequences, cycling when exhausted
type seqRandom struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *seqRandom) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *seqRandom) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[s.ii%len(s.ints)] % n
	s.ii++
	return v
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

var errBoom = errors.New("boom")
