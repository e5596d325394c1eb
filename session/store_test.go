package session_test

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

func TestStoreGetReturnsSameSessionPerUser(t *testing.T) {
	store := session.NewStore()
	a := store.Get("U1")
	b := store.Get("U1")
	if a != b {
		t.Fatal("Get must return the same session for one user")
	}
	if store.Get("U2") == a {
		t.Fatal("different users must not share a session")
	}
}

func TestSessionClearResetsStateAndPayload(t *testing.T) {
	store := session.NewStore()
	sess := store.Get("U1")
	sess.SetState("add_awaiting_name")
	sess.SetPayload(42)

	sess.Clear()
	if sess.State() != "" {
		t.Errorf("state = %q after Clear", sess.State())
	}
	if sess.Payload() != nil {
		t.Errorf("payload = %v after Clear", sess.Payload())
	}
}

func TestSerializeOrdersEventsPerUser(t *testing.T) {
	store := session.NewStore()
	const n = 100

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Serialize("U1", func() {
				counter++
			})
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("counter = %d, want %d (increments must not race)", counter, n)
	}
}

func TestSerializeDoesNotBlockAcrossUsers(t *testing.T) {
	store := session.NewStore()

	release := make(chan struct{})
	holding := make(chan struct{})
	go store.Serialize("U1", func() {
		close(holding)
		<-release
	})
	<-holding

	done := make(chan struct{})
	go store.Serialize("U2", func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serialize for U2 blocked on U1's lock")
	}
	close(release)
}
