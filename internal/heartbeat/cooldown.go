package heartbeat

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// ActionKind names a rate-limited action category.
type ActionKind string

const (
	ActionPost    ActionKind = "post"
	ActionComment ActionKind = "comment"
)

// Defaults for new agents; the platform corrects them through
// retry_after error payloads.
const (
	defaultPostCooldown    = 120 * time.Minute
	defaultCommentCooldown = 20 * time.Second
)

var (
	retryMinutesRe = regexp.MustCompile(`"retry_after_minutes"\s*:\s*(\d+)`)
	retrySecondsRe = regexp.MustCompile(`"retry_after_seconds"\s*:\s*(\d+)`)
)

type cooldownWindow struct {
	last   time.Time
	window time.Duration
}

// CooldownLedger tracks the last execution time and current window per
// action kind. It is mutated only by the heartbeat cycle, so it carries
// no lock; the clock is injectable for tests.
type CooldownLedger struct {
	now     func() time.Time
	windows map[ActionKind]*cooldownWindow
}

func NewCooldownLedger() *CooldownLedger {
	return &CooldownLedger{
		now: time.Now,
		windows: map[ActionKind]*cooldownWindow{
			ActionPost:    {window: defaultPostCooldown},
			ActionComment: {window: defaultCommentCooldown},
		},
	}
}

// CanAct reports whether an action of the given kind may run now. It
// is true until the first action is recorded and again once the window
// has fully elapsed.
func (l *CooldownLedger) CanAct(kind ActionKind) bool {
	w := l.windows[kind]
	if w == nil {
		return false
	}
	return w.last.IsZero() || l.now().Sub(w.last) >= w.window
}

// RecordAction marks an execution of the given kind.
func (l *CooldownLedger) RecordAction(kind ActionKind, when time.Time) {
	if w := l.windows[kind]; w != nil {
		w.last = when
	}
}

// MinutesUntilReady returns how many whole minutes remain before
// CanAct becomes true, zero when already ready.
func (l *CooldownLedger) MinutesUntilReady(kind ActionKind) int {
	w := l.windows[kind]
	if w == nil || w.last.IsZero() {
		return 0
	}
	remaining := w.window - l.now().Sub(w.last)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// Window returns the current window duration for a kind.
func (l *CooldownLedger) Window(kind ActionKind) time.Duration {
	if w := l.windows[kind]; w != nil {
		return w.window
	}
	return 0
}

// ApplyServerFeedback absorbs an authoritative retry_after value from
// an error payload: the window is overwritten and the baseline reset to
// now, treating the rejection itself as the last action. Payloads
// without a usable value are ignored.
func (l *CooldownLedger) ApplyServerFeedback(kind ActionKind, payload string) {
	w := l.windows[kind]
	if w == nil {
		return
	}

	re, unit := retryMinutesRe, time.Minute
	if kind == ActionComment {
		re, unit = retrySecondsRe, time.Second
	}

	match := re.FindStringSubmatch(payload)
	if match == nil {
		return
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return
	}

	w.window = time.Duration(n) * unit
	w.last = l.now()
}
