package domain

import "fmt"

// DefaultBadgeColor is the badge background used by the host.
const DefaultBadgeColor = "#FF6B6B"

// BadgeCap is the largest count shown verbatim on the badge.
const BadgeCap = 999

// BadgeText renders the session count for the badge, capped at "999+".
func BadgeText(sessionBlocked uint64) string {
	if sessionBlocked > BadgeCap {
		return fmt.Sprintf("%d+", BadgeCap)
	}
	return fmt.Sprintf("%d", sessionBlocked)
}

// FormatCount renders n compactly: 1234 -> "1.2K", 2500000 -> "2.5M".
func FormatCount(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Badge is the toolbar badge state: the capped session count and background color.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// NewBadge renders the badge for sessionBlocked. An empty color falls back to
// DefaultBadgeColor.
func NewBadge(sessionBlocked uint64, color string) Badge {
	if color == "" {
		color = DefaultBadgeColor
	}
	return Badge{Text: BadgeText(sessionBlocked), Color: color}
}
