package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
)

func TestEventSource_Read(t *testing.T) {
	ctx := context.Background()
	src := NewEventSource()

	for i, file := range []string{"a.root", "b.root"} {
		data, err := entity.NewEventArray(
			entity.NewScalarColumn("met_pt", []float64{float64(i), float64(i)}),
			entity.NewScalarColumn("ht", []float64{1, 2}),
		)
		if err != nil {
			t.Fatal(err)
		}
		src.AddTree(file, "Events", data)
	}

	data, err := src.Read(ctx, []string{"b.root", "a.root"}, "Events", []string{"met_pt"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if data.Len() != 4 {
		t.Errorf("Len() = %d, expected 4", data.Len())
	}
	met, _ := data.Column("met_pt")
	if met.Values[0] != 1 || met.Values[3] != 0 {
		t.Errorf("expected file order to be kept, got %v", met.Values)
	}
	if _, err := data.Column("ht"); err == nil {
		t.Error("unrequested branch should not be returned")
	}

	if _, err := src.Read(ctx, []string{"a.root"}, "Events", []string{"nope"}); !errors.Is(err, entity.ErrUnknownBranch) {
		t.Errorf("expected ErrUnknownBranch, got %v", err)
	}
	if _, err := src.Read(ctx, []string{"c.root"}, "Events", nil); err == nil {
		t.Error("expected error for unknown file")
	}
	if _, err := src.Read(ctx, []string{"a.root"}, "Runs", nil); err == nil {
		t.Error("expected error for unknown tree")
	}

	if reads := src.Reads(); len(reads) != 4 || reads[0][0] != "b.root" {
		t.Errorf("Reads() = %v", reads)
	}
}

func TestSyncQueue(t *testing.T) {
	ctx := context.Background()
	q := NewSyncQueue()

	if err := q.Add(ctx, "/a", "/b", "/a"); err != nil {
		t.Fatal(err)
	}
	_ = q.Add(ctx, "/c", "/b")

	got, _ := q.List(ctx)
	want := []string{"/a", "/b", "/c"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %s, expected %s", i, got[i], want[i])
		}
	}

	_ = q.Remove(ctx, "/b", "/missing")
	if got, _ := q.List(ctx); len(got) != 2 || got[0] != "/a" || got[1] != "/c" {
		t.Errorf("List() after Remove = %v, expected [/a /c]", got)
	}
	_ = q.Add(ctx, "/b")
	if got, _ := q.List(ctx); len(got) != 3 || got[2] != "/b" {
		t.Errorf("expected removed path to be accepted again, got %v", got)
	}

	_ = q.Clear(ctx)
	if got, _ := q.List(ctx); len(got) != 0 {
		t.Errorf("List() after Clear = %v", got)
	}
	_ = q.Add(ctx, "/a")
	if got, _ := q.List(ctx); len(got) != 1 {
		t.Errorf("expected path to be accepted again after Clear, got %v", got)
	}
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()

	if err := d.Dispatch(ctx, entity.SyncRequest{ID: "1"}); err != nil {
		t.Fatal(err)
	}
	d.SetError(errors.New("boom"))
	if err := d.Dispatch(ctx, entity.SyncRequest{ID: "2"}); err == nil {
		t.Error("expected configured error")
	}
	if reqs := d.Requests(); len(reqs) != 1 || reqs[0].ID != "1" {
		t.Errorf("Requests() = %v", reqs)
	}
}

func TestSyncLedger_RecentRuns(t *testing.T) {
	ctx := context.Background()
	l := NewSyncLedger()

	for _, id := range []string{"1", "2", "3"} {
		_ = l.RecordRun(ctx, entity.SyncResult{RequestID: id}, []string{"/x/www/./" + id})
	}

	runs, _ := l.RecentRuns(ctx, 2)
	if len(runs) != 2 || runs[0].Result.RequestID != "3" || runs[1].Result.RequestID != "2" {
		t.Errorf("RecentRuns(2) = %+v", runs)
	}
	if all, _ := l.RecentRuns(ctx, 0); len(all) != 3 {
		t.Errorf("RecentRuns(0) returned %d runs, expected all 3", len(all))
	}
}
