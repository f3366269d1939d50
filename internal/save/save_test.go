package save

import (
	"path/filepath"
	"testing"

	"github.com/1ureka/factorysync/internal/sim"
	"github.com/1ureka/factorysync/internal/world"
)

func populatedWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New(world.DefaultCatalog())
	if _, err := w.PlaceBuilding(sim.PlacementDesc{Origin: sim.Origin{X: 1, Y: 2}, Code: "belt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.PlaceBuilding(sim.PlacementDesc{Origin: sim.Origin{X: 5, Y: 5}, Code: "miner"}); err != nil {
		t.Fatal(err)
	}
	w.UnlockUpgrade("tier2_belts")
	return w
}

// TestSnapshotRoundTrip verifies package → encode → decode → restore against
// a fresh world.
func TestSnapshotRoundTrip(t *testing.T) {
	src := populatedWorld(t)

	snap, err := Package(src, []string{"mod-a@1.2"})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if snap.Version != src.SchemaVersion() {
		t.Fatalf("snapshot version = %q, want %q", snap.Version, src.SchemaVersion())
	}
	if snap.Stats["entities"] != 2 {
		t.Fatalf("snapshot stats = %v", snap.Stats)
	}

	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(decoded.Mods) != 1 || decoded.Mods[0] != "mod-a@1.2" {
		t.Fatalf("mods = %v", decoded.Mods)
	}

	dst := world.New(world.DefaultCatalog())
	if err := decoded.Restore(dst); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if dst.EntityCount() != 2 || !dst.UpgradeUnlocked("tier2_belts") {
		t.Fatalf("restored world: %d entities, upgrade=%v",
			dst.EntityCount(), dst.UpgradeUnlocked("tier2_belts"))
	}
}

// TestRestoreRejectsSchemaMismatch verifies the version gate fires before
// any state is touched.
func TestRestoreRejectsSchemaMismatch(t *testing.T) {
	src := populatedWorld(t)
	snap, err := Package(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap.Version = "0.0-ancient"

	dst := world.New(world.DefaultCatalog())
	if err := snap.Restore(dst); err == nil {
		t.Fatal("schema mismatch accepted")
	}
	if dst.EntityCount() != 0 {
		t.Fatal("rejected restore mutated the world")
	}
}

// TestStorePutGet verifies bbolt persistence across reopen, keyed by session
// id, newest snapshot winning.
func TestStorePutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first, err := Package(world.New(world.DefaultCatalog()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put("room-42", first); err != nil {
		t.Fatalf("Put: %v", err)
	}

	second, err := Package(populatedWorld(t), []string{"mod-b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put("room-42", second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, ok, err := store.Get("room-42")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Stats["entities"] != 2 || len(got.Mods) != 1 {
		t.Fatalf("stored snapshot is not the newest: %+v", got)
	}

	if _, ok, err := store.Get("unknown-session"); err != nil || ok {
		t.Fatalf("Get(unknown) = %v, %v, want miss", ok, err)
	}
}
