package storage

import (
	"context"
	"testing"
	"time"

	"github.com/flowpbx/voicemail/internal/mailbox"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testMsg(id, callerID string, ts time.Time) *mailbox.Message {
	return &mailbox.Message{
		ID:        id,
		CallerID:  callerID,
		Timestamp: ts,
		Duration:  30,
		FilePath:  "/data/voicemail/box_1001/" + id + ".wav",
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	// Re-opening must not re-run applied migrations.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}

func TestMessageInsertAndList(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	// Insert out of timestamp order; List must return oldest first.
	if err := repo.Insert(ctx, "1001", testMsg("b_20260828_110000", "5559876", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, "1001", testMsg("a_20260828_100000", "5551234", base)); err != nil {
		t.Fatal(err)
	}
	// A different mailbox stays isolated.
	if err := repo.Insert(ctx, "1002", testMsg("c_20260828_100000", "5550000", base)); err != nil {
		t.Fatal(err)
	}

	msgs, err := repo.List(ctx, "1001", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].CallerID != "5551234" || msgs[1].CallerID != "5559876" {
		t.Errorf("order = %s, %s; want oldest first", msgs[0].CallerID, msgs[1].CallerID)
	}
	if msgs[0].Listened {
		t.Error("fresh message reports listened")
	}
}

func TestMessageDuplicateIDOverwrites(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if err := repo.Insert(ctx, "1001", testMsg("x_20260828_100000", "5551234", ts)); err != nil {
		t.Fatal(err)
	}
	dup := testMsg("x_20260828_100000", "5551234", ts)
	dup.Duration = 45
	if err := repo.Insert(ctx, "1001", dup); err != nil {
		t.Fatal(err)
	}

	msgs, err := repo.List(ctx, "1001", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (duplicate must overwrite)", len(msgs))
	}
	if msgs[0].Duration != 45 {
		t.Errorf("Duration = %d, want 45 (latest row)", msgs[0].Duration)
	}
}

func TestMarkListenedFiltersUnread(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if err := repo.Insert(ctx, "1001", testMsg("a_20260828_100000", "5551234", ts)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, "1001", testMsg("b_20260828_100001", "5559876", ts.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkListened(ctx, "1001", "a_20260828_100000"); err != nil {
		t.Fatalf("MarkListened: %v", err)
	}

	unread, err := repo.List(ctx, "1001", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].ID != "b_20260828_100001" {
		t.Errorf("unread = %+v, want only b_20260828_100001", unread)
	}

	all, err := repo.List(ctx, "1001", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d total messages, want 2", len(all))
	}
	if !all[0].Listened {
		t.Error("listened flag not persisted")
	}
}

func TestMessageDelete(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	msg := testMsg("a_20260828_100000", "5551234", ts)
	if err := repo.Insert(ctx, "1001", msg); err != nil {
		t.Fatal(err)
	}

	path, found, err := repo.Delete(ctx, "1001", msg.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !found || path != msg.FilePath {
		t.Errorf("got (%q, %v), want (%q, true)", path, found, msg.FilePath)
	}

	// Second delete of the same ID finds nothing.
	_, found, err = repo.Delete(ctx, "1001", msg.ID)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if found {
		t.Error("second delete reported a row")
	}
}

func TestDeleteExpired(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if err := repo.Insert(ctx, "1001", testMsg("old_20260101_000000", "5551234", now.AddDate(0, 0, -100))); err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, "1002", testMsg("old2_20260201_000000", "5550000", now.AddDate(0, 0, -95))); err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, "1001", testMsg("new_20260828_100000", "5559876", now)); err != nil {
		t.Fatal(err)
	}

	paths, err := repo.DeleteExpired(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d expired paths, want 2", len(paths))
	}

	msgs, err := repo.List(ctx, "1001", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "new_20260828_100000" {
		t.Errorf("surviving messages = %+v", msgs)
	}
}

func TestCredentialLookupAndStore(t *testing.T) {
	db := testDB(t)
	repo := NewCredentialRepository(db)
	ctx := context.Background()

	// Unknown extension resolves to an unset credential, not an error.
	cred, err := repo.Lookup(ctx, "1001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cred.IsSet() {
		t.Error("unknown extension returned a set credential")
	}

	hash, salt, err := mailbox.HashPIN("1234")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Store(ctx, "1001", hash, salt); err != nil {
		t.Fatalf("Store: %v", err)
	}

	cred, err = repo.Lookup(ctx, "1001")
	if err != nil {
		t.Fatal(err)
	}
	if !cred.Verify("1234") {
		t.Error("stored credential rejects its own pin")
	}
	if cred.Verify("4321") {
		t.Error("stored credential accepts a wrong pin")
	}

	// Storing again replaces the credential.
	hash2, salt2, err := mailbox.HashPIN("5678")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Store(ctx, "1001", hash2, salt2); err != nil {
		t.Fatal(err)
	}
	cred, err = repo.Lookup(ctx, "1001")
	if err != nil {
		t.Fatal(err)
	}
	if !cred.Verify("5678") || cred.Verify("1234") {
		t.Error("credential not replaced by second store")
	}
}
