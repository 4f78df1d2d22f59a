package testutil

import (
	"testing"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

// Event is one entry of the trees written by WriteEventsTree.
type Event struct {
	Met  float64
	Run  uint32
	Jets []float32
}

// WriteEventsTree writes an "Events" tree with the branches met_pt (float64),
// run (uint32), nJet (int32) and jet_pt (float32 list counted by nJet).
func WriteEventsTree(t *testing.T, path string, events []Event) {
	t.Helper()

	f, err := groot.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}

	var (
		met  float64
		run  uint32
		nJet int32
		jets []float32
	)
	wvars := []rtree.WriteVar{
		{Name: "met_pt", Value: &met},
		{Name: "run", Value: &run},
		{Name: "nJet", Value: &nJet},
		{Name: "jet_pt", Value: &jets, Count: "nJet"},
	}
	w, err := rtree.NewWriter(f, "Events", wvars)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	for _, ev := range events {
		met, run, jets = ev.Met, ev.Run, ev.Jets
		nJet = int32(len(jets))
		if _, err := w.Write(); err != nil {
			t.Fatalf("write event: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
