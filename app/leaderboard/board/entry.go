// Package board holds the leaderboard data model: ranked entries, the level
// curve, and the renderer that turns ranked lists into a Discord payload.
package board

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Metric names an independently ranked quantity.
type Metric string

const (
	MetricBalance Metric = "balance"
	MetricLevel   Metric = "level"
)

// DefaultMetrics are the lists a board shows when none are configured.
var DefaultMetrics = []Metric{MetricBalance, MetricLevel}

// ParseMetric validates a metric name coming from configuration or a command.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricBalance, MetricLevel:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// RankedEntry is one row of a ranked list. For the level metric Value is the
// level and Secondary the raw experience; for balance, Secondary is experience.
type RankedEntry struct {
	ID           string
	DisplayLabel string
	Value        int64
	Secondary    int64
}

// RankedList is the top-N of a single metric.
type RankedList struct {
	Metric  Metric
	Entries []RankedEntry
}

// Snapshot is everything one refresh read from the score store.
type Snapshot struct {
	Board       string
	Title       string
	Lists       []RankedList
	LevelUnit   int64
	GeneratedAt time.Time
}

// Payload is the rendered, immutable output of one refresh.
type Payload struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

// MessageRef identifies a posted message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" || r.MessageID == ""
}

// Compare orders entries by value descending, then secondary descending, then
// id ascending. Ids made only of digits (Discord snowflakes) sort before all
// other ids and compare numerically among themselves; other ids compare
// bytewise.
func Compare(a, b RankedEntry) int {
	if c := cmp.Compare(b.Value, a.Value); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Secondary, a.Secondary); c != 0 {
		return c
	}
	return CompareIDs(a.ID, b.ID)
}

// CompareIDs is the id tie-break of Compare. The key is (numeric group,
// trimmed length, trimmed text, raw text), so "7" and "007" still have a
// fixed order.
func CompareIDs(a, b string) int {
	da, db := isDigits(a), isDigits(b)
	switch {
	case da && !db:
		return -1
	case !da && db:
		return 1
	case !da && !db:
		return strings.Compare(a, b)
	}
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(ta), len(tb)); c != 0 {
		return c
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Rank returns a sorted copy of entries. The input is not modified.
func Rank(entries []RankedEntry) []RankedEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, Compare)
	return out
}

// Top ranks entries and keeps at most n of them.
func Top(entries []RankedEntry, n int) []RankedEntry {
	ranked := Rank(entries)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
