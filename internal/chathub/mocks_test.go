package chathub_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockClient is a test double for the chathub.Client interface.
type MockClient struct {
	mock.Mock
	userID    models.ParticipantID
	send      chan models.ChatMessage
	closeOnce sync.Once
}

func newMockClient(id models.ParticipantID) *MockClient {
	return newMockClientWithOutbox(id, 32) // Buffered to prevent blocking in tests
}

func newMockClientWithOutbox(id models.ParticipantID, size int) *MockClient {
	c := &MockClient{
		userID: id,
		send:   make(chan models.ChatMessage, size),
	}
	c.On("Close").Return().Maybe()
	return c
}

// expectMessage reads from the client's outbox until a message of msgType arrives.
func (c *MockClient) expectMessage(t *testing.T, msgType string) models.ChatMessage {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				t.Fatalf("outbox of %s closed while waiting for %s", c.userID, msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on %s", msgType, c.userID)
		}
	}
}

func (c *MockClient) GetUserID() models.ParticipantID {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- models.ChatMessage {
	return c.send
}

func (c *MockClient) Run() {
	c.Called()
}

func (c *MockClient) Close() {
	c.Called()
	c.closeOnce.Do(func() { close(c.send) })
}

// DrainMessages returns whatever is buffered without blocking.
func (c *MockClient) DrainMessages() []models.ChatMessage {
	var messages []models.ChatMessage
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return messages
			}
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

// recordingNotifier captures everything the engine sends, per recipient.
type recordingNotifier struct {
	inbox       map[models.ParticipantID][]models.ChatMessage
	unreachable map[models.ParticipantID]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		inbox:       make(map[models.ParticipantID][]models.ChatMessage),
		unreachable: make(map[models.ParticipantID]bool),
	}
}

func (n *recordingNotifier) Notify(to models.ParticipantID, msg models.ChatMessage) bool {
	if n.unreachable[to] {
		return false
	}
	n.inbox[to] = append(n.inbox[to], msg)
	return true
}

// types lists the message types id received, in order.
func (n *recordingNotifier) types(id models.ParticipantID) []string {
	var types []string
	for _, msg := range n.inbox[id] {
		types = append(types, msg.Type)
	}
	return types
}

// last returns the most recent message of msgType sent to id.
func (n *recordingNotifier) last(id models.ParticipantID, msgType string) (models.ChatMessage, bool) {
	msgs := n.inbox[id]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i], true
		}
	}
	return models.ChatMessage{}, false
}

func (n *recordingNotifier) reset() {
	n.inbox = make(map[models.ParticipantID][]models.ChatMessage)
}

// recordingSink captures lifecycle events.
type recordingSink struct {
	events []models.LifecycleEvent
}

func (s *recordingSink) Emit(event models.LifecycleEvent) {
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []string {
	var kinds []string
	for _, e := range s.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// sequentialTokens yields room-1, room-2, ...
func sequentialTokens() chathub.TokenGenerator {
	n := 0
	return func() models.RoomToken {
		n++
		return models.RoomToken(fmt.Sprintf("room-%d", n))
	}
}

type engineFixture struct {
	engine   *chathub.Engine
	notifier *recordingNotifier
	sink     *recordingSink
	clock    *fakeClock
}

func newEngineFixture(opts chathub.EngineOptions) *engineFixture {
	f := &engineFixture{
		notifier: newRecordingNotifier(),
		sink:     &recordingSink{},
		clock:    newFakeClock(),
	}
	opts.Now = f.clock.Now
	opts.NewToken = sequentialTokens()
	opts.Events = f.sink
	f.engine = chathub.NewEngine(f.notifier, opts)
	return f
}

// connect registers every id with the engine.
func (f *engineFixture) connect(ids ...models.ParticipantID) {
	for _, id := range ids {
		f.engine.Connect(id)
	}
}

// gatedSealer checks passwords like PlainPasswords, but Verify waits for release.
type gatedSealer struct {
	chathub.PlainPasswords
	entered chan struct{}
	release chan struct{}
}

func newGatedSealer() *gatedSealer {
	return &gatedSealer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *gatedSealer) Verify(sealed, candidate string) bool {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.PlainPasswords.Verify(sealed, candidate)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
