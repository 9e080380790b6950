package reconcile

import "github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"

// State is one of Empty, Reviewing or Committing.
type State interface {
	Name() string
	isState()
}

type Empty struct{}

// Reviewing holds a loaded analysis whose overlays the user may edit.
type Reviewing struct {
	Review
}

// Committing holds the frozen review while the import call is in flight.
type Committing struct {
	Review
}

func (Empty) Name() string      { return "empty" }
func (Reviewing) Name() string  { return "reviewing" }
func (Committing) Name() string { return "committing" }

func (Empty) isState()      {}
func (Reviewing) isState()  {}
func (Committing) isState() {}

// Review is the analysis plus one overlay per sheet. Expanded is the index
// of the sheet open for review, -1 when every sheet is collapsed.
type Review struct {
	Analysis *analysis.Result
	Overlays []Overlay
	Expanded int
}

func newReview(res *analysis.Result, threshold float64) Review {
	overlays := make([]Overlay, len(res.Sheets))
	for i, s := range res.Sheets {
		overlays[i] = Seed(s, threshold)
	}
	expanded := -1
	if len(res.Sheets) > 0 {
		expanded = res.Primary()
	}
	return Review{Analysis: res, Overlays: overlays, Expanded: expanded}
}

// snapshot copies the overlays so callers cannot mutate container state.
func (r Review) snapshot() Review {
	overlays := make([]Overlay, len(r.Overlays))
	for i, o := range r.Overlays {
		overlays[i] = o.Clone()
	}
	r.Overlays = overlays
	return r
}
