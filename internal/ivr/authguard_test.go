package ivr

import (
	"context"
	"testing"

	"golang.org/x/time/rate"
)

func testGuard(burst int) *AuthGuard {
	cfg := DefaultAuthGuardConfig()
	cfg.Burst = burst
	cfg.FailureRate = rate.Limit(1e-9) // effectively no refill during a test
	return NewAuthGuard(cfg, testLogger())
}

func TestAuthGuardAllowsUnknownMailbox(t *testing.T) {
	g := testGuard(3)
	defer g.Stop()

	if !g.Allow("1001") {
		t.Error("fresh mailbox should be allowed")
	}
}

func TestAuthGuardBlocksAfterBurst(t *testing.T) {
	g := testGuard(3)
	defer g.Stop()

	for i := 0; i < 2; i++ {
		g.RecordFailure("1001")
		if !g.Allow("1001") {
			t.Fatalf("blocked after %d failures, want block only after 3", i+1)
		}
	}

	g.RecordFailure("1001")
	if g.Allow("1001") {
		t.Error("mailbox still allowed after exhausting failure budget")
	}

	// Other mailboxes are unaffected.
	if !g.Allow("1002") {
		t.Error("unrelated mailbox blocked")
	}
}

func TestAuthGuardSuccessClearsHistory(t *testing.T) {
	g := testGuard(3)
	defer g.Stop()

	for i := 0; i < 3; i++ {
		g.RecordFailure("1001")
	}
	if g.Allow("1001") {
		t.Fatal("expected mailbox to be blocked")
	}

	g.RecordSuccess("1001")
	if !g.Allow("1001") {
		t.Error("mailbox still blocked after successful login")
	}
}

func TestAuthGuardSpansSessions(t *testing.T) {
	// Redialing must not reset the failure budget: failures from earlier
	// sessions keep counting against the mailbox.
	g := testGuard(4)
	defer g.Stop()

	box := &fakeBox{extension: "1001", pin: "1234"}

	for i := 0; i < 2; i++ {
		s := NewSession(context.Background(), box, testLogger(), WithAuthGuard(g))
		s.HandleDTMF('*')
		feed(s, "0000#")
		feed(s, "0000#")
	}

	// Budget exhausted; even the correct PIN is rejected until it refills.
	s := NewSession(context.Background(), box, testLogger(), WithAuthGuard(g))
	s.HandleDTMF('*')
	feed(s, "1234#")
	if s.State() == StateMainMenu {
		t.Error("login succeeded while mailbox was blocked by attempt guard")
	}
}

func TestAuthGuardCleanupEvictsStaleEntries(t *testing.T) {
	g := testGuard(2)
	defer g.Stop()

	g.RecordFailure("1001")
	g.mu.Lock()
	g.entries["1001"].lastSeen = g.entries["1001"].lastSeen.Add(-2 * g.cfg.MaxAge)
	g.mu.Unlock()

	g.cleanup()

	g.mu.Lock()
	_, ok := g.entries["1001"]
	g.mu.Unlock()
	if ok {
		t.Error("stale entry survived cleanup")
	}
}
