package roster

import "testing"

// TestUpsertReportsJoin verifies that only the first record for an id counts
// as a join; later upserts are plain updates.
func TestUpsertReportsJoin(t *testing.T) {
	r := New()
	u := *NewUser("ada")

	if !r.Upsert(u) {
		t.Fatal("first upsert not reported as join")
	}

	u.Live.SelectedBuildingCode = "belt"
	if r.Upsert(u) {
		t.Fatal("second upsert reported as join")
	}

	got, ok := r.Get(u.ID)
	if !ok {
		t.Fatal("user missing after upsert")
	}
	if got.Live.SelectedBuildingCode != "belt" {
		t.Fatalf("live state not replaced: %q", got.Live.SelectedBuildingCode)
	}
}

// TestRemoveExactlyOnce verifies that a double leave removes at most once, so
// leave notifications cannot double-fire.
func TestRemoveExactlyOnce(t *testing.T) {
	r := New()
	u := *NewUser("grace")
	r.Upsert(u)

	left, ok := r.Remove(u.ID)
	if !ok || left.Username != "grace" {
		t.Fatalf("remove = %+v, %v", left, ok)
	}
	if _, ok := r.Remove(u.ID); ok {
		t.Fatal("second remove matched")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

// TestListDeterministic verifies the id-sorted listing.
func TestListDeterministic(t *testing.T) {
	r := New()
	r.Upsert(User{ID: "b", Username: "second"})
	r.Upsert(User{ID: "a", Username: "first"})
	r.Upsert(User{ID: "c", Username: "third"})

	users := r.List()
	if len(users) != 3 {
		t.Fatalf("List len = %d, want 3", len(users))
	}
	for i, want := range []string{"a", "b", "c"} {
		if users[i].ID != want {
			t.Fatalf("List[%d].ID = %q, want %q", i, users[i].ID, want)
		}
	}
}

// TestNewUserIDsUnique verifies session-lifetime ids are distinct even for
// identical usernames.
func TestNewUserIDsUnique(t *testing.T) {
	a, b := NewUser("same"), NewUser("same")
	if a.ID == b.ID {
		t.Fatal("two users minted with the same id")
	}
}
