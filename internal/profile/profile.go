// Package profile reads a profile screen into structured data and executes
// the planned actions on it.
package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
	"github.com/masterFuf/taktik-bot-sub003/internal/device"
	"github.com/masterFuf/taktik-bot-sub003/internal/history"
	"github.com/masterFuf/taktik-bot-sub003/internal/markers"
)

// Catalog control keys read off the profile screen.
const (
	CtrlUsername     = "profile.username"
	CtrlFollowers    = "profile.followers_count"
	CtrlFollowing    = "profile.following_count"
	CtrlPosts        = "profile.posts_count"
	CtrlPrivateBadge = "profile.private_badge"
	CtrlFollowButton = "profile.follow_button"
	CtrlStoryRing    = "profile.story_ring"
	CtrlPostThumb    = "profile.post_thumb"
)

// Follow button states as shown by the app.
const (
	FollowStateFollow    = "follow"
	FollowStateFollowing = "following"
	FollowStateRequested = "requested"
	FollowStateUnknown   = ""
)

// Info is what the profile screen tells us about an account.
type Info struct {
	Username    string
	Followers   int
	Following   int
	Posts       int
	Private     bool
	FollowState string
	HasStory    bool
}

// Extract reads the visible profile screen. Counts that cannot be located or
// parsed come back as -1 so the filters can tell "absent" from "zero".
func Extract(ctx context.Context, ch device.Channel, cat *markers.Catalog) (Info, error) {
	info := Info{Followers: -1, Following: -1, Posts: -1}

	text := func(key string) (string, bool) {
		marker, ok := cat.Control(key)
		if !ok {
			return "", false
		}
		els, err := ch.Query(ctx, marker)
		if err != nil || len(els) == 0 {
			return "", false
		}
		return els[0].Text, true
	}

	if v, ok := text(CtrlUsername); ok {
		info.Username = strings.TrimSpace(v)
	}
	if info.Username == "" {
		return info, fmt.Errorf("profile screen has no username")
	}

	if v, ok := text(CtrlFollowers); ok {
		info.Followers = parseCount(v)
	}
	if v, ok := text(CtrlFollowing); ok {
		info.Following = parseCount(v)
	}
	if v, ok := text(CtrlPosts); ok {
		info.Posts = parseCount(v)
	}
	if _, ok := text(CtrlPrivateBadge); ok {
		info.Private = true
	}
	if v, ok := text(CtrlFollowButton); ok {
		info.FollowState = followState(v)
	}
	if marker, ok := cat.Control(CtrlStoryRing); ok {
		els, err := ch.Query(ctx, marker)
		info.HasStory = err == nil && len(els) > 0
	}

	return info, nil
}

func followState(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "follow", "follow back":
		return FollowStateFollow
	case "following":
		return FollowStateFollowing
	case "requested":
		return FollowStateRequested
	}
	return FollowStateUnknown
}

// parseCount turns the app's abbreviated counters ("1,234", "12.5K", "1.2M")
// into a number. Returns -1 for anything unparsable.
func parseCount(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return -1
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'k':
		mult, s = 1e3, s[:len(s)-1]
	case 'm':
		mult, s = 1e6, s[:len(s)-1]
	case 'b':
		mult, s = 1e9, s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return -1
	}
	return int(v * mult)
}

// CheckFilters applies the configured account filters. The second return is
// the skip reason when the profile is rejected. Counts of -1 (unreadable)
// never reject on their own: the session should not skip accounts because a
// counter failed to render.
func CheckFilters(info Info, f config.FilterConfig) (bool, string) {
	if info.Private && f.ShouldSkipPrivate() {
		return false, history.ReasonPrivate
	}
	if info.Followers >= 0 {
		if f.MinFollowers > 0 && info.Followers < f.MinFollowers {
			return false, history.ReasonFollowerBand
		}
		if f.MaxFollowers > 0 && info.Followers > f.MaxFollowers {
			return false, history.ReasonFollowerBand
		}
	}
	if info.Posts >= 0 && f.MinPosts > 0 && info.Posts < f.MinPosts {
		return false, history.ReasonFiltered
	}
	if info.Following >= 0 && f.MaxFollowing > 0 && info.Following > f.MaxFollowing {
		return false, history.ReasonFiltered
	}
	if f.MaxFollowersFollowingRatio > 0 && info.Followers > 0 && info.Following > 0 {
		ratio := float64(info.Followers) / float64(info.Following)
		if ratio > f.MaxFollowersFollowingRatio {
			return false, history.ReasonFiltered
		}
	}
	return true, ""
}
