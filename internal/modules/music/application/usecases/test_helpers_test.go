package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sanozu/groovebot/internal/modules/music/application/ports"
	"github.com/sanozu/groovebot/internal/modules/music/domain"
)

var errNoSuchTrack = errors.New("no such track")

// mockRoomRepo is an in-memory RoomStateRepository for tests.
type mockRoomRepo struct {
	mu     sync.Mutex
	states map[snowflake.ID]*domain.RoomState
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{states: make(map[snowflake.ID]*domain.RoomState)}
}

func (r *mockRoomRepo) Get(roomID snowflake.ID) *domain.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[roomID]
}

func (r *mockRoomRepo) GetOrCreate(roomID snowflake.ID) *domain.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[roomID]
	if !ok {
		state = domain.NewRoomState(roomID)
		r.states[roomID] = state
	}
	return state
}

func (r *mockRoomRepo) Delete(roomID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, roomID)
}

// mockSelectionRepo is an in-memory SelectionRepository for tests.
type mockSelectionRepo struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*domain.SelectionSession
}

func newMockSelectionRepo() *mockSelectionRepo {
	return &mockSelectionRepo{sessions: make(map[snowflake.ID]*domain.SelectionSession)}
}

func (r *mockSelectionRepo) Get(messageID snowflake.ID) *domain.SelectionSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[messageID]
}

func (r *mockSelectionRepo) Save(session *domain.SelectionSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.MessageID] = session
}

func (r *mockSelectionRepo) Delete(messageID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, messageID)
}

func (r *mockSelectionRepo) DeleteByRoom(roomID snowflake.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, sess := range r.sessions {
		if sess.RoomID == roomID {
			delete(r.sessions, id)
			count++
		}
	}
	return count
}

func (r *mockSelectionRepo) DeleteOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, sess := range r.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count
}

// fakeVoiceSession records playback calls and lets tests fire the
// completion callbacks explicitly, which is how the real backends
// behave: completion is always asynchronous.
type fakeVoiceSession struct {
	mu sync.Mutex

	connectErr error
	playErr    error
	stopErr    error
	volumeErr  error

	connectedTo  []snowflake.ID
	plays        []domain.StreamRef
	completions  []ports.CompletionFunc
	stopCalls    int
	disconnects  int
	volume       float64
	volumeCalled bool
}

func (s *fakeVoiceSession) Connect(_ context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connectedTo = append(s.connectedTo, channelID)
	return nil
}

func (s *fakeVoiceSession) Play(_ context.Context, ref domain.StreamRef, onComplete ports.CompletionFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.plays = append(s.plays, ref)
	s.completions = append(s.completions, onComplete)
	return nil
}

func (s *fakeVoiceSession) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return s.stopErr
}

func (s *fakeVoiceSession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

func (s *fakeVoiceSession) IsPlaying() bool { return false }
func (s *fakeVoiceSession) IsPaused() bool  { return false }

func (s *fakeVoiceSession) SetVolume(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumeErr != nil {
		return s.volumeErr
	}
	s.volume = fraction
	s.volumeCalled = true
	return nil
}

// complete fires the completion registered for the nth play attempt.
func (s *fakeVoiceSession) complete(n int, err error) {
	s.mu.Lock()
	fn := s.completions[n]
	s.mu.Unlock()
	fn(err)
}

func (s *fakeVoiceSession) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

// fakeVoiceProvider hands out one fakeVoiceSession per room.
type fakeVoiceProvider struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*fakeVoiceSession
}

func newFakeVoiceProvider() *fakeVoiceProvider {
	return &fakeVoiceProvider{sessions: make(map[snowflake.ID]*fakeVoiceSession)}
}

func (p *fakeVoiceProvider) Session(roomID snowflake.ID) ports.VoiceSession {
	return p.session(roomID)
}

func (p *fakeVoiceProvider) session(roomID snowflake.ID) *fakeVoiceSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[roomID]
	if !ok {
		sess = &fakeVoiceSession{}
		p.sessions[roomID] = sess
	}
	return sess
}

// fakeVoiceState maps users to voice channels.
type fakeVoiceState struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func (v *fakeVoiceState) UserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	if v.err != nil {
		return 0, v.err
	}
	return v.channels[userID], nil
}

// fakeResolver resolves from a fixed map and searches from a fixed slice.
type fakeResolver struct {
	mu sync.Mutex

	tracks     map[string]*domain.Track
	resolveErr error

	searchResults []domain.Candidate
	searchErr     error

	resolved []string
}

func (r *fakeResolver) Resolve(_ context.Context, input string) (*domain.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, input)
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	track, ok := r.tracks[input]
	if !ok {
		return nil, errNoSuchTrack
	}
	// Return a copy so each resolution yields a distinct instance, as
	// real resolvers do.
	c := *track
	return &c, nil
}

func (r *fakeResolver) Search(_ context.Context, _ string, limit int) ([]domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	results := r.searchResults
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu sync.Mutex

	enqueued []domain.TrackEnqueuedEvent
	started  []domain.PlaybackStartedEvent
	failed   []domain.PlaybackFailedEvent
	drained  []domain.QueueDrainedEvent
}

func (p *mockPublisher) PublishTrackEnqueued(e domain.TrackEnqueuedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueued = append(p.enqueued, e)
}

func (p *mockPublisher) PublishPlaybackStarted(e domain.PlaybackStartedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, e)
}

func (p *mockPublisher) PublishPlaybackFailed(e domain.PlaybackFailedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
}

func (p *mockPublisher) PublishQueueDrained(e domain.QueueDrainedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drained = append(p.drained, e)
}

func (p *mockPublisher) startedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.started)
}

func (p *mockPublisher) failedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failed)
}

func (p *mockPublisher) drainedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.drained)
}

func mockTrack(ref string) *domain.Track {
	return domain.NewTrack(domain.StreamRef(ref), "title-"+ref, "https://example.com/"+ref, 0, 0)
}
