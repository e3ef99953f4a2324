// Package recency selects links whose extracted dates fall inside a
// trailing acceptance window.
package recency

import (
	"sort"
	"time"

	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/textdate"
)

// Window is a trailing acceptance window ending at Reference. Months are
// counted as fixed 30-day blocks so the cutoff is predictable regardless
// of calendar month lengths.
type Window struct {
	Reference time.Time
	Months    int
}

// Start returns the window's lower bound.
func (w Window) Start() time.Time {
	return w.Reference.Add(-time.Duration(w.Months) * 30 * 24 * time.Hour)
}

// Contains reports whether t falls inside the window. The lower bound is
// inclusive and there is no upper bound, so future-dated material passes.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start())
}

// Select dates each candidate link and keeps those inside the window. The
// link text is tried first, then the URL; links with no recognizable date
// are dropped. Input order is preserved.
func Select(links []link.Link, w Window) []link.Dated {
	var selected []link.Dated
	for _, l := range links {
		d, ok := textdate.Extract(l.Text)
		if !ok {
			d, ok = textdate.Extract(l.URL)
		}
		if !ok || !w.Contains(d) {
			continue
		}
		selected = append(selected, link.Dated{Link: l, Date: d})
	}
	return selected
}

// SortNewestFirst orders dated links newest first. The sort is stable, so
// links sharing a date keep their discovery order.
func SortNewestFirst(links []link.Dated) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Date.After(links[j].Date)
	})
}
