package stores_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	sw "github.com/panyam/secretsweb"
	"github.com/panyam/secretsweb/stores"
)

func newTestStore(t *testing.T) *stores.FSUserStore {
	tmpDir, err := os.MkdirTemp("", "secretsweb-store-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return stores.NewFSUserStore(tmpDir)
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &sw.User{
		ID:           sw.NewUserID(),
		Username:     "alice",
		PasswordHash: "hashed",
	}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Username != "alice" || got.PasswordHash != "hashed" {
		t.Errorf("Unexpected user: %+v", got)
	}

	got, err = store.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected id %s, got %s", user.ID, got.ID)
	}

	// Username lookups are case insensitive
	got, err = store.GetByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("GetByUsername uppercase failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected id %s, got %s", user.ID, got.ID)
	}
}

func TestCreateRejectsNoAuthMethod(t *testing.T) {
	store := newTestStore(t)

	err := store.Create(context.Background(), &sw.User{ID: sw.NewUserID()})
	if !errors.Is(err, sw.ErrNoAuthMethod) {
		t.Errorf("Expected ErrNoAuthMethod, got %v", err)
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &sw.User{ID: sw.NewUserID(), Username: "bob", PasswordHash: "h1"}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &sw.User{ID: sw.NewUserID(), Username: "bob", PasswordHash: "h2"}
	if err := store.Create(ctx, dup); !errors.Is(err, sw.ErrUsernameTaken) {
		t.Errorf("Expected ErrUsernameTaken, got %v", err)
	}

	// Case only differences still collide
	dup2 := &sw.User{ID: sw.NewUserID(), Username: "BOB", PasswordHash: "h3"}
	if err := store.Create(ctx, dup2); !errors.Is(err, sw.ErrUsernameTaken) {
		t.Errorf("Expected ErrUsernameTaken for case variant, got %v", err)
	}
}

func TestCreateDuplicateGoogleID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &sw.User{ID: sw.NewUserID(), GoogleID: "gid-claimed"}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &sw.User{ID: sw.NewUserID(), GoogleID: "gid-claimed"}
	if err := store.Create(ctx, dup); !errors.Is(err, sw.ErrGoogleIDTaken) {
		t.Errorf("Expected ErrGoogleIDTaken, got %v", err)
	}

	// The claim still points at the original owner
	user, created, err := store.FindOrCreateByGoogleID(ctx, "gid-claimed")
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	if created || user.ID != first.ID {
		t.Errorf("Expected original owner %s, got %s (created=%v)", first.ID, user.ID, created)
	}
}

func TestGetMissingUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, sw.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.GetByUsername(ctx, "nobody"); !errors.Is(err, sw.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestFindOrCreateByGoogleID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, created, err := store.FindOrCreateByGoogleID(ctx, "gid-1")
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	if !created {
		t.Error("Expected created=true on first call")
	}
	if user.GoogleID != "gid-1" {
		t.Errorf("Expected google id gid-1, got %s", user.GoogleID)
	}

	again, created, err := store.FindOrCreateByGoogleID(ctx, "gid-1")
	if err != nil {
		t.Fatalf("Second FindOrCreate failed: %v", err)
	}
	if created {
		t.Error("Expected created=false on second call")
	}
	if again.ID != user.ID {
		t.Errorf("Expected same user %s, got %s", user.ID, again.ID)
	}
}

// TestFindOrCreateConcurrent hammers find-or-create with the same subject ID
// from many goroutines; exactly one user may come out of it.
func TestFindOrCreateConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 20
	ids := make([]string, workers)
	createdCount := 0

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user, created, err := store.FindOrCreateByGoogleID(ctx, "gid-race")
			if err != nil {
				t.Errorf("FindOrCreate failed: %v", err)
				return
			}
			mu.Lock()
			ids[n] = user.ID
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("Expected exactly 1 creation, got %d", createdCount)
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Errorf("Divergent user ids: %s vs %s", ids[0], id)
		}
	}
}

func TestSetSecretAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u1 := &sw.User{ID: sw.NewUserID(), Username: "u1", PasswordHash: "h"}
	u2 := &sw.User{ID: sw.NewUserID(), Username: "u2", PasswordHash: "h"}
	for _, u := range []*sw.User{u1, u2} {
		if err := store.Create(ctx, u); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Empty board before anyone shares
	secrets, err := store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets failed: %v", err)
	}
	if len(secrets) != 0 {
		t.Errorf("Expected no secrets, got %v", secrets)
	}

	if err := store.SetSecret(ctx, u1.ID, "u1 secret"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	secrets, err = store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets failed: %v", err)
	}
	if len(secrets) != 1 || secrets[0] != "u1 secret" {
		t.Errorf("Expected [u1 secret], got %v", secrets)
	}

	// Overwrite replaces, never appends
	if err := store.SetSecret(ctx, u1.ID, "replacement"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	secrets, _ = store.ListSecrets(ctx)
	if len(secrets) != 1 || secrets[0] != "replacement" {
		t.Errorf("Expected [replacement], got %v", secrets)
	}

	// Unknown user
	if err := store.SetSecret(ctx, "missing", "x"); !errors.Is(err, sw.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestListSecretsEmptyStore(t *testing.T) {
	store := newTestStore(t)

	secrets, err := store.ListSecrets(context.Background())
	if err != nil {
		t.Fatalf("ListSecrets failed: %v", err)
	}
	if len(secrets) != 0 {
		t.Errorf("Expected no secrets, got %v", secrets)
	}
}
