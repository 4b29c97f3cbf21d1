package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

// fire runs a timer the way time.AfterFunc would, even if it was stopped late.
func (s *fakeScheduler) fire(i int) {
	s.all()[i].f()
}

type fakePlayer struct {
	mu      sync.Mutex
	plays   [][]byte
	stopped int
	cb      func(from, to interfaces.PlaybackStatus)
}

func (p *fakePlayer) Play(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, pcm)
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
}

func (p *fakePlayer) OnStateChange(fn func(from, to interfaces.PlaybackStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = fn
}

func (p *fakePlayer) emit(from, to interfaces.PlaybackStatus) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb != nil {
		cb(from, to)
	}
}

func (p *fakePlayer) played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.plays...)
}

type fakeConn struct {
	mu           sync.Mutex
	speaking     func(userID string)
	subs         map[string]chan interfaces.SpeakerEvent
	subCount     int
	silence      time.Duration
	destroyed    int
	player       *fakePlayer
	subscribeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string]chan interfaces.SpeakerEvent), player: &fakePlayer{}}
}

func (c *fakeConn) OnSpeakingStart(fn func(userID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = fn
}

func (c *fakeConn) Subscribe(userID string, silence time.Duration) (<-chan interfaces.SpeakerEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	ch := make(chan interfaces.SpeakerEvent, 16)
	c.subs[userID] = ch
	c.subCount++
	c.silence = silence
	return ch, nil
}

func (c *fakeConn) Player() interfaces.Player { return c.player }

func (c *fakeConn) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
	return nil
}

func (c *fakeConn) speak(userID string) {
	c.mu.Lock()
	fn := c.speaking
	c.mu.Unlock()
	if fn != nil {
		fn(userID)
	}
}

func (c *fakeConn) stream(userID string) chan interfaces.SpeakerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[userID]
}

func (c *fakeConn) subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subCount
}

func (c *fakeConn) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

type fakeJoiner struct {
	conn  *fakeConn
	err   error
	block bool
	// hold makes Join ignore ctx and return conn only once hold is closed,
	// like a discordgo join that cannot be cancelled.
	hold  chan struct{}
	calls int
	mu    sync.Mutex
}

func (j *fakeJoiner) Join(ctx context.Context, _, _ string) (interfaces.VoiceConnection, error) {
	j.mu.Lock()
	j.calls++
	block, hold, err, conn := j.block, j.hold, j.err, j.conn
	j.mu.Unlock()
	if hold != nil {
		<-hold
		return conn, nil
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (j *fakeJoiner) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func (j *fakeJoiner) setHold(hold chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.hold = hold
}

type fakeAI struct {
	mu        sync.Mutex
	sent      []realtime.ClientEvent
	events    chan realtime.ServerEvent
	err       error
	closed    int
	closeOnce sync.Once
}

func newFakeAI() *fakeAI {
	return &fakeAI{events: make(chan realtime.ServerEvent, 16)}
}

func (a *fakeAI) Send(ev realtime.ClientEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, ev)
	return nil
}

func (a *fakeAI) Events() <-chan realtime.ServerEvent { return a.events }

func (a *fakeAI) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *fakeAI) Close() error {
	a.mu.Lock()
	a.closed++
	a.mu.Unlock()
	a.closeOnce.Do(func() { close(a.events) })
	return nil
}

// fail simulates the remote side dropping the connection.
func (a *fakeAI) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
	a.closeOnce.Do(func() { close(a.events) })
}

func (a *fakeAI) sentEvents() []realtime.ClientEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]realtime.ClientEvent(nil), a.sent...)
}

func (a *fakeAI) closeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type fakeTransport struct {
	ai    *fakeAI
	err   error
	calls int
	key   string
	mu    sync.Mutex
}

func (t *fakeTransport) Connect(_ context.Context, apiKey string) (interfaces.AIConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.key = apiKey
	if t.err != nil {
		return nil, t.err
	}
	return t.ai, nil
}

type memoryStore struct {
	mu    sync.Mutex
	saves map[string][]notes.Note
}

func (m *memoryStore) SaveNotes(guildID string, n []notes.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saves == nil {
		m.saves = make(map[string][]notes.Note)
	}
	m.saves[guildID] = n
	return nil
}

type transitionLog struct {
	mu  sync.Mutex
	log []string
}

func (l *transitionLog) record(guildID string, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, guildID+":"+from.String()+"->"+to.String())
}

func (l *transitionLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.log...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	registry    *Registry
	joiner      *fakeJoiner
	conn        *fakeConn
	transport   *fakeTransport
	ai          *fakeAI
	scheduler   *fakeScheduler
	store       *memoryStore
	transitions *transitionLog
	logs        *syncBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := newFakeConn()
	ai := newFakeAI()
	h := &harness{
		joiner:      &fakeJoiner{conn: conn},
		conn:        conn,
		transport:   &fakeTransport{ai: ai},
		ai:          ai,
		scheduler:   &fakeScheduler{},
		store:       &memoryStore{},
		transitions: &transitionLog{},
		logs:        &syncBuffer{},
	}
	h.registry = NewRegistry(Config{APIKey: "sk-test"}, Deps{
		Voice:         h.joiner,
		AI:            h.transport,
		Notes:         h.store,
		Logger:        logger.New(h.logs),
		Scheduler:     h.scheduler,
		Now:           func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		OnStateChange: h.transitions.record,
	})
	return h
}

func (h *harness) start(t *testing.T, guildID string) *Session {
	t.Helper()
	s, err := h.registry.Start(context.Background(), guildID, StartOptions{ChannelID: "voice-1"})
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State())
	return s
}

func audioDelta(pcm []byte) realtime.ServerEvent {
	return realtime.ServerEvent{Kind: realtime.EventAudioDelta, Type: realtime.TypeAudioDelta, Delta: base64.StdEncoding.EncodeToString(pcm)}
}

func responseDone() realtime.ServerEvent {
	return realtime.ServerEvent{Kind: realtime.EventResponseDone, Type: realtime.TypeResponseDone}
}

func callStarted(callID, name string) realtime.ServerEvent {
	return realtime.ServerEvent{
		Kind: realtime.EventFunctionCallStarted,
		Type: realtime.TypeOutputItemAdded,
		Item: &realtime.Item{Type: "function_call", CallID: callID, Name: name},
	}
}

func callDelta(callID, delta string) realtime.ServerEvent {
	return realtime.ServerEvent{Kind: realtime.EventFunctionCallArgumentsDelta, Type: realtime.TypeFunctionArgumentsDelta, CallID: callID, Delta: delta}
}

func callDone(callID, arguments string) realtime.ServerEvent {
	return realtime.ServerEvent{Kind: realtime.EventFunctionCallArgumentsDone, Type: realtime.TypeFunctionArgumentsDone, CallID: callID, Arguments: arguments}
}

func callDoneNamed(callID, name, arguments string) realtime.ServerEvent {
	ev := callDone(callID, arguments)
	ev.Name = name
	return ev
}

// callFunction runs a complete call through the session and returns the decoded output.
func callFunction(t *testing.T, h *harness, s *Session, callID, name, arguments string) map[string]any {
	t.Helper()
	s.handleServerEvent(callStarted(callID, name))
	s.handleServerEvent(callDelta(callID, arguments))
	s.handleServerEvent(callDone(callID, arguments))
	return lastOutput(t, h.ai, callID)
}

func lastOutput(t *testing.T, ai *fakeAI, callID string) map[string]any {
	t.Helper()
	sent := ai.sentEvents()
	require.NotEmpty(t, sent)
	ev := sent[len(sent)-1]
	require.Equal(t, "conversation.item.create", ev.Type)
	require.NotNil(t, ev.Item)
	require.Equal(t, callID, ev.Item.CallID)
	require.Equal(t, "function_call_output", ev.Item.Type)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.Item.Output), &out))
	return out
}
