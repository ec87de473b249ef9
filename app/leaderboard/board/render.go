package board

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	colorGold    = 0xFFD700
	colorBlurple = 0x5865F2
	colorGrey    = 0x99AAB5

	// NoDataText is shown for a ranked list without entries.
	NoDataText = "No data yet. Check back after the first points are earned."
)

var medals = []string{"🥇", "🥈", "🥉"}

// Render turns a snapshot into the board payload. It never fails: empty
// lists render a placeholder, and a snapshot without lists renders a single
// placeholder embed.
func Render(s Snapshot) Payload {
	updated := s.GeneratedAt.UTC()
	footer := &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Updated: %s", updated.Format(time.RFC1123)),
	}
	timestamp := updated.Format(time.RFC3339)

	lists := s.Lists
	if len(lists) == 0 {
		lists = []RankedList{{Metric: MetricBalance}}
	}

	embeds := make([]*discordgo.MessageEmbed, 0, len(lists))
	for _, list := range lists {
		embed := &discordgo.MessageEmbed{
			Title:     listTitle(list.Metric),
			Color:     listColor(list.Metric),
			Footer:    footer,
			Timestamp: timestamp,
		}

		entries := Rank(list.Entries)
		if len(entries) == 0 {
			embed.Description = NoDataText
			embed.Color = colorGrey
		}
		for i, entry := range entries {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   rankLabel(i + 1),
				Value:  fmt.Sprintf("%s\n%s", displayName(entry), formatValue(list.Metric, entry, s.LevelUnit)),
				Inline: false,
			})
		}
		embeds = append(embeds, embed)
	}

	var content string
	if title := strings.TrimSpace(s.Title); title != "" {
		content = fmt.Sprintf("**%s**", title)
	}

	return Payload{Content: content, Embeds: embeds}
}

func listTitle(m Metric) string {
	switch m {
	case MetricBalance:
		return "💰 Richest"
	case MetricLevel:
		return "⭐ Top Levels"
	default:
		return "🏆 " + string(m)
	}
}

func listColor(m Metric) int {
	if m == MetricLevel {
		return colorBlurple
	}
	return colorGold
}

func rankLabel(rank int) string {
	if rank <= len(medals) {
		return fmt.Sprintf("%s #%d", medals[rank-1], rank)
	}
	return fmt.Sprintf("#%d", rank)
}

func displayName(e RankedEntry) string {
	if label := strings.TrimSpace(e.DisplayLabel); label != "" {
		return label
	}
	return fmt.Sprintf("<@%s>", e.ID)
}

func formatValue(m Metric, e RankedEntry, unit int64) string {
	switch m {
	case MetricBalance:
		return fmt.Sprintf("%s coins", groupDigits(e.Value))
	case MetricLevel:
		level, into, span := Progress(e.Secondary, unit)
		return fmt.Sprintf("Level %d · %s/%s XP", level, groupDigits(into), groupDigits(span))
	default:
		return groupDigits(e.Value)
	}
}

// groupDigits formats n with comma thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
