// Package scout finds engagement opportunities on watched accounts, scores
// them, and filters them into a ranked shortlist for the operator.
package scout

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/teranos/spark/social"
)

// ShortlistCap bounds how many opportunities one scan surfaces
const ShortlistCap = 15

// Score thresholds for lower-tier inclusion
const (
	tier2MinScore = 80
	tier3MinScore = 90
)

// Opportunity is one scored candidate post from a watched account.
// Rank is assigned only after shortlist filtering and is not stable
// across scans.
type Opportunity struct {
	Rank       int
	Handle     string
	Followers  int
	ObservedAt time.Time
	Summary    string
	Why        string
	Metrics    social.Metrics
	Score      int
	ContentID  string
	Tier       int
}

// Score turns raw engagement into a bounded priority in [0,100].
// Engagement counts sub-linearly (square root dampens outliers), freshness
// linearly inside a 120-minute window, and tier 1 accounts get an
// unconditional boost.
func Score(tier int, m social.Metrics, minutesAgo float64) int {
	base := float64(m.Likes + 2*m.Reposts + 3*m.Replies)
	recency := math.Max(0, 120-minutesAgo) * 0.2

	var tierBoost float64
	switch tier {
	case 1:
		tierBoost = 50
	case 2:
		tierBoost = 20
	}

	score := math.Sqrt(base) + recency + tierBoost
	if score > 100 {
		score = 100
	}
	return int(score)
}

// Shortlist filters scored candidates by tier and assigns dense ranks.
// Every tier-1 candidate is included regardless of score; tier 2 requires
// score >= 80 and tier 3 requires >= 90. The merged list is sorted by score
// descending and capped.
func Shortlist(candidates []Opportunity) []Opportunity {
	var list []Opportunity
	for _, c := range candidates {
		switch c.Tier {
		case 1:
			list = append(list, c)
		case 2:
			if c.Score >= tier2MinScore {
				list = append(list, c)
			}
		case 3:
			if c.Score >= tier3MinScore {
				list = append(list, c)
			}
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})

	if len(list) > ShortlistCap {
		list = list[:ShortlistCap]
	}
	for i := range list {
		list[i].Rank = i + 1
	}
	return list
}

// urgentPatterns mark a post as inviting direct interaction
var urgentPatterns = []string{"ama", "q&a", "ask me", "questions"}

// IsUrgent reports whether a candidate deserves a standalone alert outside
// the ranked shortlist: very fresh, reply-heavy, and inviting interaction.
func IsUrgent(text string, m social.Metrics, minutesAgo float64) bool {
	if minutesAgo >= 5 {
		return false
	}
	if m.Replies < 20 {
		return false
	}
	low := strings.ToLower(text)
	for _, p := range urgentPatterns {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}
