package live

import (
	"sync"
	"testing"
)

func TestSession_InitialState(t *testing.T) {
	s := NewSession()
	if s.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	if s.Active() {
		t.Fatal("expected activity flag to be false")
	}
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession()

	s.Connect()
	if !s.Connected() || !s.Active() {
		t.Fatalf("expected connected and active, got state=%s active=%v", s.State(), s.Active())
	}

	s.Disconnect()
	if s.Connected() || s.Active() {
		t.Fatalf("expected disconnected and inactive, got state=%s active=%v", s.State(), s.Active())
	}
}

func TestSession_RepeatedTransitionsAreNoOps(t *testing.T) {
	s := NewSession()

	s.Disconnect()
	if s.State() != StateDisconnected || s.Active() {
		t.Fatal("disconnect on a fresh session must leave it disconnected")
	}

	s.Connect()
	s.Connect()
	if s.State() != StateConnected || !s.Active() {
		t.Fatal("second connect must leave session connected")
	}

	s.Disconnect()
	s.Disconnect()
	if s.State() != StateDisconnected || s.Active() {
		t.Fatal("second disconnect must leave session disconnected")
	}
}

func TestSession_HandlerOverwrite(t *testing.T) {
	s := NewSession()
	var gotA, gotB []Message
	s.RegisterMessageHandler(func(m Message) { gotA = append(gotA, m) })
	s.RegisterMessageHandler(func(m Message) { gotB = append(gotB, m) })

	msg := Message{Text: "hola", Sender: SenderBot}
	if !s.Deliver(msg) {
		t.Fatal("expected message to be delivered")
	}
	if len(gotA) != 0 {
		t.Fatalf("replaced handler received %d messages", len(gotA))
	}
	if len(gotB) != 1 || gotB[0] != msg {
		t.Fatalf("expected handler B to receive %+v, got %+v", msg, gotB)
	}
}

func TestSession_DeliverWithoutHandlerDrops(t *testing.T) {
	s := NewSession()
	s.Connect()
	if s.Deliver(Message{Text: "lost", Sender: SenderUser}) {
		t.Fatal("expected message to be dropped without a handler")
	}

	var got []Message
	s.RegisterMessageHandler(func(m Message) { got = append(got, m) })
	if len(got) != 0 {
		t.Fatalf("dropped message must not be replayed, got %+v", got)
	}
}

func TestSession_HandlerMayReenterSession(t *testing.T) {
	s := NewSession()
	s.Connect()
	s.RegisterMessageHandler(func(m Message) {
		if m.Text == "adios" {
			s.Disconnect()
		}
	})
	s.Deliver(Message{Text: "adios", Sender: SenderUser})
	if s.Connected() {
		t.Fatal("expected handler to disconnect the session")
	}
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := NewSession()
	s.RegisterMessageHandler(func(Message) {})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Connect()
			} else {
				s.Disconnect()
			}
			s.Deliver(Message{Text: "x", Sender: SenderBot})
			_ = s.Active()
		}(i)
	}
	wg.Wait()
	if s.Connected() != s.Active() {
		t.Fatal("state and activity flag diverged")
	}
}
