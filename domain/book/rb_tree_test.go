package book

import (
	"math/rand"
	"sort"
	"testing"
)

func TestTreeUpsertFindDelete(t *testing.T) {
	tr := newPriceTree()
	for _, p := range []int64{50, 20, 80, 10, 30} {
		tr.upsert(p)
	}
	if tr.len() != 5 {
		t.Fatalf("expected 5 levels, got %d", tr.len())
	}
	if tr.find(30) == nil {
		t.Error("find(30) should hit")
	}
	if tr.find(31) != nil {
		t.Error("find(31) should miss")
	}
	// upsert on an existing key returns the same queue
	q := tr.upsert(30)
	_ = q.append(1, 1)
	if got := tr.find(30); got == nil || got.len() != 1 {
		t.Error("upsert must return the resident queue")
	}
	if tr.len() != 5 {
		t.Errorf("duplicate upsert must not grow the tree: %d", tr.len())
	}

	if !tr.delete(20) {
		t.Error("delete(20) should report true")
	}
	if tr.delete(20) {
		t.Error("second delete(20) should report false")
	}
	if tr.find(20) != nil {
		t.Error("20 still findable after delete")
	}
	if tr.len() != 4 {
		t.Errorf("expected 4 levels, got %d", tr.len())
	}
}

func TestTreeMinMaxNeighbors(t *testing.T) {
	tr := newPriceTree()
	if _, _, ok := tr.min(); ok {
		t.Error("min of empty tree should miss")
	}
	if _, _, ok := tr.max(); ok {
		t.Error("max of empty tree should miss")
	}
	for _, p := range []int64{40, 10, 70, 25} {
		tr.upsert(p)
	}
	if p, _, _ := tr.min(); p != 10 {
		t.Errorf("min: got %d", p)
	}
	if p, _, _ := tr.max(); p != 70 {
		t.Errorf("max: got %d", p)
	}
	if p, ok := tr.above(25); !ok || p != 40 {
		t.Errorf("above(25): got %d %v", p, ok)
	}
	if p, ok := tr.above(26); !ok || p != 40 {
		t.Errorf("above(26): got %d %v", p, ok)
	}
	if _, ok := tr.above(70); ok {
		t.Error("above(max) should miss")
	}
	if p, ok := tr.below(40); !ok || p != 25 {
		t.Errorf("below(40): got %d %v", p, ok)
	}
	if _, ok := tr.below(10); ok {
		t.Error("below(min) should miss")
	}
}

func TestTreeOrderedIterationRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := newPriceTree()
	seen := map[int64]bool{}
	for i := 0; i < 500; i++ {
		p := int64(rng.Intn(10_000))
		tr.upsert(p)
		seen[p] = true
	}
	var want []int64
	for p := range seen {
		want = append(want, p)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var asc []int64
	tr.ascend(func(p int64, _ *levelQueue) bool {
		asc = append(asc, p)
		return true
	})
	if len(asc) != len(want) {
		t.Fatalf("ascend visited %d of %d keys", len(asc), len(want))
	}
	for i := range want {
		if asc[i] != want[i] {
			t.Fatalf("ascend order broken at %d: %d != %d", i, asc[i], want[i])
		}
	}

	var desc []int64
	tr.descend(func(p int64, _ *levelQueue) bool {
		desc = append(desc, p)
		return true
	})
	for i := range want {
		if desc[len(desc)-1-i] != want[i] {
			t.Fatal("descend is not the reverse of ascend")
		}
	}

	// random deletion keeps order intact
	for _, p := range want[:len(want)/2] {
		if !tr.delete(p) {
			t.Fatalf("delete(%d) missing", p)
		}
	}
	prev := int64(-1)
	tr.ascend(func(p int64, _ *levelQueue) bool {
		if p <= prev {
			t.Fatalf("order violated after deletes: %d after %d", p, prev)
		}
		prev = p
		return true
	})
	if tr.len() != len(want)-len(want)/2 {
		t.Errorf("size mismatch after deletes: %d", tr.len())
	}
}
