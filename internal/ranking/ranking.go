// Package ranking recomputes the hours leaderboards, diffs them against the
// previous pass and announces what moved.
package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/notify"
	"github.com/sakif/playtracker/internal/repository"
)

// DefaultTopN is how many positions a notification shows.
const DefaultTopN = 10

// Movement markers.
const (
	MarkerSame    = "="
	MarkerUp      = "⬆️"
	MarkerUpMany  = "⏫"
	MarkerDown    = "⬇️"
	MarkerFellOut = "💀"
)

// Item is one ranked entity: a user or a game with its played seconds.
type Item struct {
	ID    string
	Name  string
	Value int64
}

// Line is one row of a diffed leaderboard. PrevRank is 0 when the item was
// not ranked before. Fell-out lines carry the item's current rank, or 0 if
// it is gone altogether.
type Line struct {
	Rank     int
	PrevRank int
	Item     Item
	Marker   string
}

// FellOut reports whether the line is an item that left the top positions.
func (l Line) FellOut() bool { return l.Marker == MarkerFellOut }

// Delta renders the position change as "↑2", "↓1" or "=".
func (l Line) Delta() string {
	switch {
	case l.FellOut():
		return MarkerFellOut
	case l.PrevRank == 0:
		return "new"
	case l.PrevRank > l.Rank:
		return fmt.Sprintf("↑%d", l.PrevRank-l.Rank)
	case l.PrevRank < l.Rank:
		return fmt.Sprintf("↓%d", l.Rank-l.PrevRank)
	}
	return MarkerSame
}

// Diff compares the top n of two orderings, best first. changed is false
// when both top-n lists hold the same items in the same order.
func Diff(last, current []Item, n int) (lines []Line, changed bool) {
	if n <= 0 {
		n = DefaultTopN
	}
	lastTop := head(last, n)
	curTop := head(current, n)

	prev := positions(last)
	now := positions(current)

	changed = len(lastTop) != len(curTop)
	for i := range curTop {
		if !changed && lastTop[i].ID != curTop[i].ID {
			changed = true
		}
	}

	for i, it := range curTop {
		rank := i + 1
		p := prev[it.ID]
		lines = append(lines, Line{Rank: rank, PrevRank: p, Item: it, Marker: marker(p, rank)})
	}

	inCurTop := make(map[string]bool, len(curTop))
	for _, it := range curTop {
		inCurTop[it.ID] = true
	}
	for i, it := range lastTop {
		if inCurTop[it.ID] {
			continue
		}
		// prefer fresh figures when the item is still around
		if j, ok := now[it.ID]; ok {
			it = current[j-1]
		}
		lines = append(lines, Line{Rank: now[it.ID], PrevRank: i + 1, Item: it, Marker: MarkerFellOut})
	}
	return lines, changed
}

func marker(prev, rank int) string {
	switch {
	case prev == 0:
		return MarkerUpMany
	case prev-rank > 1:
		return MarkerUpMany
	case prev-rank == 1:
		return MarkerUp
	case prev < rank:
		return MarkerDown
	}
	return MarkerSame
}

func head(items []Item, n int) []Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// positions maps item id to its 1-based position.
func positions(items []Item) map[string]int {
	out := make(map[string]int, len(items))
	for i, it := range items {
		out[it.ID] = i + 1
	}
	return out
}

var titles = map[model.RankingKind]string{
	model.RankingUsers: "📣📣 Hours ranking update 📣📣",
	model.RankingGames: "📣📣 Games ranking update 📣📣",
}

// Format renders lines as a chat message. Unchanged rows stay plain; rows
// that moved get their marker and a bold name. Items that fell out are
// listed after a separator.
func Format(kind model.RankingKind, lines []Line) string {
	var b strings.Builder
	b.WriteString(titles[kind])
	b.WriteString("\n")

	separated := false
	for _, l := range lines {
		if l.FellOut() && !separated {
			b.WriteString("----------\n")
			separated = true
		}
		name := l.Item.Name
		if l.Marker != MarkerSame && !l.FellOut() {
			name = l.Marker + " *" + name + "*"
		}
		rank := l.Rank
		if l.FellOut() {
			rank = l.PrevRank
		}
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", rank, name, model.FormatPlayedTime(l.Item.Value), l.Delta())
	}
	return b.String()
}

// Result is what one ranking pass produced.
type Result struct {
	Kind    model.RankingKind
	Lines   []Line
	Changed bool
	// Notified is true when a message was handed to the notifier.
	Notified bool
}

type Differ struct {
	store    repository.Store
	notifier notify.Notifier
	season   int
	topN     int
	logger   *slog.Logger
}

// NewDiffer returns a Differ ranking played time within season (0 means
// every entry) and showing topN positions.
func NewDiffer(store repository.Store, notifier notify.Notifier, season, topN int, logger *slog.Logger) *Differ {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Differ{
		store:    store,
		notifier: notifier,
		season:   season,
		topN:     topN,
		logger:   logger,
	}
}

// DiffAndNotify runs one ranking pass for kind: refresh totals, write the
// current ranking, diff it with the last snapshot, notify if the top moved,
// and promote current to last. The first pass (no snapshot yet) only
// records a baseline.
func (d *Differ) DiffAndNotify(ctx context.Context, kind model.RankingKind, silent bool) (Result, error) {
	res := Result{Kind: kind}
	if !kind.Valid() {
		return res, fmt.Errorf("ranking: unknown kind %q", kind)
	}

	if err := d.store.RefreshPlayedTime(ctx, kind, d.season); err != nil {
		return res, fmt.Errorf("ranking: refreshing %s: %w", kind, err)
	}
	standings, err := d.store.Standings(ctx, kind)
	if err != nil {
		return res, fmt.Errorf("ranking: loading %s standings: %w", kind, err)
	}

	current := make([]Item, len(standings))
	for i, st := range standings {
		current[i] = Item{ID: st.ID, Name: st.Name, Value: st.Value}
	}
	last := lastOrder(standings)

	err = d.store.InTx(ctx, func(tx repository.Store) error {
		for i, it := range current {
			if err := tx.SetCurrentRanking(ctx, kind, it.ID, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("ranking: writing %s ranking: %w", kind, err)
	}

	res.Lines, res.Changed = Diff(last, current, d.topN)
	switch {
	case len(last) == 0:
		d.logger.Info("ranking baseline recorded", "kind", kind, "items", len(current))
	case !res.Changed:
		d.logger.Info("no changes in ranking", "kind", kind)
	case silent:
		d.logger.Info("ranking changed (silent)", "kind", kind)
	default:
		d.logger.Info("ranking changed", "kind", kind)
		notify.Deliver(ctx, d.notifier, d.logger, Format(kind, res.Lines))
		res.Notified = true
	}

	if err := d.store.PromoteRankings(ctx, kind); err != nil {
		return res, fmt.Errorf("ranking: promoting %s ranking: %w", kind, err)
	}
	return res, nil
}

// lastOrder rebuilds the previous pass's ordering from the snapshot.
// Unranked items are left out.
func lastOrder(standings []model.Standing) []Item {
	ranked := make([]model.Standing, 0, len(standings))
	for _, st := range standings {
		if st.LastRanking > 0 && st.LastRanking < model.UnrankedPosition {
			ranked = append(ranked, st)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].LastRanking != ranked[j].LastRanking {
			return ranked[i].LastRanking < ranked[j].LastRanking
		}
		return ranked[i].Name < ranked[j].Name
	})

	out := make([]Item, len(ranked))
	for i, st := range ranked {
		out[i] = Item{ID: st.ID, Name: st.Name, Value: st.Value}
	}
	return out
}
