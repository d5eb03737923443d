package store

import (
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice")
	ss := NewSessionStore(db)

	sess, err := ss.Create(u.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected non-empty token")
	}
	if sess.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", sess.UserID, u.ID)
	}
	if !sess.ExpiresAt.After(time.Now().UTC().Add(4 * time.Minute)) {
		t.Errorf("expires_at = %v, want ~5m out", sess.ExpiresAt)
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice")
	ss := NewSessionStore(db)

	created, _ := ss.Create(u.ID, 5*time.Minute)
	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}
}

func TestSessionGetByTokenNotFound(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t))

	sess, err := ss.GetByToken("nonexistent")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent token")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice")
	ss := NewSessionStore(db)

	created, _ := ss.Create(u.ID, -time.Minute)
	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice")
	ss := NewSessionStore(db)

	created, _ := ss.Create(u.ID, 5*time.Minute)
	if err := ss.Delete(created.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sess, _ := ss.GetByToken(created.Token)
	if sess != nil {
		t.Error("expected session to be gone")
	}
}

func TestSessionDeleteByUser(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice")
	ss := NewSessionStore(db)

	a, _ := ss.Create(u.ID, 5*time.Minute)
	b, _ := ss.Create(u.ID, 5*time.Minute)

	if err := ss.DeleteByUser(u.ID); err != nil {
		t.Fatalf("delete by user: %v", err)
	}
	for _, tok := range []string{a.Token, b.Token} {
		if sess, _ := ss.GetByToken(tok); sess != nil {
			t.Errorf("expected session %q to be gone", tok)
		}
	}
}
