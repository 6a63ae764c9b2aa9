package domain

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitConfig bounds an identifier to Max actions per fixed Window.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// Validate reports malformed limits. A non-nil result is a programming error.
func (c RateLimitConfig) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("rate limit max must be positive, got %d", c.Max)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.Window)
	}
	return nil
}

// RateLimitEntry is the counter state of one identifier's current window.
type RateLimitEntry struct {
	Identifier string
	Count      int
	ResetAt    time.Time
}

// ExpiredAt reports whether the entry's window has elapsed and must be treated as absent.
func (e RateLimitEntry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.ResetAt)
}

// Decision is the outcome of a single check-and-consume call.
type Decision struct {
	Identifier string
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	// LimitedBy names the subject that denied a combined decision.
	LimitedBy string
}

// RetryAfter returns how long the caller has to wait until the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// CombineDecisions ANDs independent decisions. Remaining is the minimum across all of
// them; ResetAt is the latest reset among the denying decisions, or among all when
// every decision admitted the action.
func CombineDecisions(decisions ...Decision) Decision {
	if len(decisions) == 0 {
		return Decision{Allowed: true}
	}

	combined := decisions[0]
	for _, d := range decisions[1:] {
		if d.Remaining < combined.Remaining {
			combined.Remaining = d.Remaining
			combined.Limit = d.Limit
		}

		switch {
		case combined.Allowed && !d.Allowed:
			combined.Allowed = false
			combined.ResetAt = d.ResetAt
			combined.Identifier = d.Identifier
			combined.LimitedBy = d.LimitedBy
		case combined.Allowed == d.Allowed && d.ResetAt.After(combined.ResetAt):
			combined.ResetAt = d.ResetAt
			if !d.Allowed {
				combined.Identifier = d.Identifier
				combined.LimitedBy = d.LimitedBy
			}
		}
	}

	if combined.Allowed {
		combined.LimitedBy = ""
	}
	return combined
}

// Action names a throttled write.
type Action string

const (
	ActionPost           Action = "post"
	ActionComment        Action = "comment"
	ActionProfileComment Action = "profile_comment"
	ActionFriendship     Action = "friendship"
	ActionGeneral        Action = "general"
	ActionClaimUsername  Action = "claim_username"
	ActionUpdateUsername Action = "update_username"
	ActionModeration     Action = "moderation"

	ActionEditPost             Action = "edit_post"
	ActionDeletePost           Action = "delete_post"
	ActionDeleteComment        Action = "delete_comment"
	ActionUpdateProfile        Action = "update_profile"
	ActionUpdateTheme          Action = "update_theme"
	ActionAcceptFriendRequest  Action = "accept_friend_request"
	ActionDeclineFriendRequest Action = "decline_friend_request"
	ActionBlockUser            Action = "block_user"
	ActionCreateReport         Action = "create_report"
	ActionModerateReport       Action = "moderate_report"
)

// DefaultActionLimits returns a fresh copy of the built-in per-action limits.
func DefaultActionLimits() map[Action]RateLimitConfig {
	return map[Action]RateLimitConfig{
		ActionPost:           {Max: 10, Window: 15 * time.Minute},
		ActionComment:        {Max: 20, Window: 15 * time.Minute},
		ActionProfileComment: {Max: 5, Window: time.Hour},
		ActionFriendship:     {Max: 10, Window: time.Hour},
		ActionGeneral:        {Max: 100, Window: 15 * time.Minute},
		ActionClaimUsername:  {Max: 10, Window: time.Minute},
		ActionUpdateUsername: {Max: 10, Window: time.Minute},
		ActionModeration:     {Max: 10, Window: time.Minute},

		ActionEditPost:             {Max: 10, Window: time.Minute},
		ActionDeletePost:           {Max: 10, Window: time.Minute},
		ActionDeleteComment:        {Max: 10, Window: time.Minute},
		ActionUpdateProfile:        {Max: 10, Window: time.Minute},
		ActionUpdateTheme:          {Max: 10, Window: time.Minute},
		ActionAcceptFriendRequest:  {Max: 10, Window: time.Minute},
		ActionDeclineFriendRequest: {Max: 10, Window: time.Minute},
		ActionBlockUser:            {Max: 10, Window: time.Minute},
		ActionCreateReport:         {Max: 10, Window: time.Minute},
		ActionModerateReport:       {Max: 10, Window: time.Minute},
	}
}

const (
	SubjectUser = "user"
	SubjectIP   = "ip"
)

// Subject identifies who is acting. Empty fields are not checked.
type Subject struct {
	UserID string
	IP     string
}

// RateLimitIdentifier builds the storage identifier for a subject kind, raw id and action.
func RateLimitIdentifier(kind, id string, action Action) string {
	return fmt.Sprintf("%s:%s:%s", kind, id, action)
}

// ErrRateLimited is matched by every *RateLimitedError.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitedError carries the reset time of a denied action.
type RateLimitedError struct {
	Action    Action
	LimitedBy string
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limited by %s) until %s", e.Action, e.LimitedBy, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
