package live

import "sync"

type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Text   string
	Sender Sender
}

type MessageHandler func(Message)

// Session tracks the lifecycle of one streaming conversation with a remote
// model. It performs no I/O; the transport opens and closes the network
// session and feeds inbound messages through Deliver.
type Session struct {
	mu      sync.Mutex
	state   State
	active  bool
	handler MessageHandler
}

func NewSession() *Session {
	return &Session{}
}

// Connect marks the session connected and raises the activity flag so audio
// capture may begin. Calling it again has no further effect.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConnected
	s.active = true
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.active = false
}

// RegisterMessageHandler replaces the single inbound message receiver.
func (s *Session) RegisterMessageHandler(fn MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Deliver hands msg to the registered handler. Without a handler the message
// is dropped and Deliver reports false; nothing is buffered.
func (s *Session) Deliver(msg Message) bool {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(msg)
	return true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Active reports whether audio capture may flow.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
