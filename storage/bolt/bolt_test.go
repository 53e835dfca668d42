package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Comcast/calflow/core"
)

func open(t *testing.T) *Storage {
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestState(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	bs, err := s.GetState(ctx, "c", "m")
	if err != nil {
		t.Fatal(err)
	}
	if bs != nil {
		t.Fatal(bs)
	}

	if err = s.WriteState(ctx, "c", "m", core.Bindings{"n": 3, "s": "x"}); err != nil {
		t.Fatal(err)
	}
	if bs, err = s.GetState(ctx, "c", "m"); err != nil {
		t.Fatal(err)
	}
	if bs["n"] != 3.0 || bs["s"] != "x" {
		t.Fatal(bs)
	}

	if err = s.WriteState(ctx, "c", "m", core.Bindings{"n": 4}); err != nil {
		t.Fatal(err)
	}
	if bs, _ = s.GetState(ctx, "c", "m"); len(bs) != 1 || bs["n"] != 4.0 {
		t.Fatal(bs)
	}

	if err = s.RemCrew(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if bs, _ = s.GetState(ctx, "c", "m"); bs != nil {
		t.Fatal(bs)
	}
	if err = s.RemCrew(ctx, "c"); err != nil {
		t.Fatal(err)
	}
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	for i := 0; i < 12; i++ {
		r := &core.FiringRecord{
			Actor:    "a",
			Policy:   "SDF",
			Action:   i,
			Consumed: map[string]int{"in": 1},
		}
		if err := s.AddRecord(ctx, "c", r); err != nil {
			t.Fatal(err)
		}
		if r.Id == "" {
			t.Fatal("no id")
		}
	}

	rs, err := s.Records(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 12 {
		t.Fatal(len(rs))
	}
	for i, r := range rs {
		if r.Action != i {
			t.Fatalf("record %d has action %d", i, r.Action)
		}
		if r.Consumed["in"] != 1 || r.Policy != "SDF" {
			t.Fatalf("%#v", r)
		}
	}

	if rs, _ = s.Records(ctx, "other"); len(rs) != 0 {
		t.Fatal(rs)
	}
}

func TestNotOpen(t *testing.T) {
	s, _ := NewStorage("nowhere.db")
	if err := s.WriteState(context.Background(), "c", "m", nil); err != NotOpen {
		t.Fatal(err)
	}
}
