package call

import (
	"log"
	"sync"
	"time"
)

// LivenessConfig holds the silence-detection delays. The defaults mirror the
// production call flow; tests shrink them.
type LivenessConfig struct {
	// WarningDelay is how long the caller may stay silent after the agent
	// finishes speaking before the "still there?" prompt.
	WarningDelay time.Duration
	// DisconnectDelay is how long after the warning before the farewell.
	DisconnectDelay time.Duration
	// RearmSettle delays re-arming after agent audio completes so the tail
	// of the utterance can flush.
	RearmSettle time.Duration
	// WarningClear is how long after the agent starts speaking the warning
	// prompt before the warning-in-progress flag is dropped.
	WarningClear time.Duration
}

func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		WarningDelay:    15 * time.Second,
		DisconnectDelay: 7 * time.Second,
		RearmSettle:     3 * time.Second,
		WarningClear:    500 * time.Millisecond,
	}
}

// LivenessEvents are the host hooks the timer drives.
type LivenessEvents struct {
	// Busy reports whether the agent is currently producing a response.
	// Timers never fire through a busy agent. Must not block.
	Busy func() bool
	// OnWarning injects the "are you still there?" prompt.
	OnWarning func()
	// OnFarewell injects the goodbye prompt; the host is expected to
	// schedule socket closure afterwards.
	OnFarewell func()
}

// Liveness is the two-stage silence detector for one call. Arm schedules the
// warning; if the caller stays silent the warning fires and schedules the
// farewell. Disarm cancels everything the instant anyone speaks.
type Liveness struct {
	cfg LivenessConfig
	ev  LivenessEvents

	mu              sync.Mutex
	warned          bool
	warningInFlight bool
	closed          bool
	gen             uint64
	settleTimer     *time.Timer
	warnTimer       *time.Timer
	discTimer       *time.Timer
	clearTimer      *time.Timer
}

func NewLiveness(cfg LivenessConfig, ev LivenessEvents) *Liveness {
	return &Liveness{cfg: cfg, ev: ev}
}

// Arm schedules the silence warning. No-op while the agent is busy or when a
// warning has already been issued this idle period.
func (l *Liveness) Arm() {
	if l.ev.Busy != nil && l.ev.Busy() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.warned {
		return
	}
	l.stopTimersLocked()
	l.gen++
	g := l.gen
	l.warnTimer = time.AfterFunc(l.cfg.WarningDelay, func() { l.warnFire(g) })
}

// ArmAfter re-arms once the settle delay has passed. The state checks happen
// at fire time, so speech during the settle window still wins.
func (l *Liveness) ArmAfter(d time.Duration) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.settleTimer != nil {
		l.settleTimer.Stop()
	}
	l.settleTimer = time.AfterFunc(d, l.Arm)
	l.mu.Unlock()
}

// Disarm cancels the pending warning and disconnect timers.
func (l *Liveness) Disarm() {
	l.mu.Lock()
	l.gen++
	l.stopTimersLocked()
	l.mu.Unlock()
}

// UserTurn is Disarm plus a reset of the per-idle-period warning state: a
// genuine new caller utterance lets a future idle period warn again.
func (l *Liveness) UserTurn() {
	l.mu.Lock()
	l.gen++
	l.stopTimersLocked()
	l.warned = false
	l.warningInFlight = false
	l.mu.Unlock()
}

// WarningInFlight reports whether the synthetic warning or farewell prompt is
// being spoken. While set, agent speech events must not be treated as a new
// conversational turn.
func (l *Liveness) WarningInFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warningInFlight
}

// AckWarningSpoken clears the warning-in-flight flag after the configured
// delay, once the agent has begun speaking the prompt.
func (l *Liveness) AckWarningSpoken() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || !l.warningInFlight {
		return
	}
	if l.clearTimer != nil {
		l.clearTimer.Stop()
	}
	l.clearTimer = time.AfterFunc(l.cfg.WarningClear, func() {
		l.mu.Lock()
		l.warningInFlight = false
		l.mu.Unlock()
	})
}

// Close cancels all timers permanently. Safe to call repeatedly.
func (l *Liveness) Close() {
	l.mu.Lock()
	l.closed = true
	l.gen++
	l.stopTimersLocked()
	if l.settleTimer != nil {
		l.settleTimer.Stop()
		l.settleTimer = nil
	}
	if l.clearTimer != nil {
		l.clearTimer.Stop()
		l.clearTimer = nil
	}
	l.mu.Unlock()
}

// stopTimersLocked clears the warning and disconnect handles. Callers hold mu.
func (l *Liveness) stopTimersLocked() {
	if l.warnTimer != nil {
		l.warnTimer.Stop()
		l.warnTimer = nil
	}
	if l.discTimer != nil {
		l.discTimer.Stop()
		l.discTimer = nil
	}
}

func (l *Liveness) warnFire(g uint64) {
	if l.ev.Busy != nil && l.ev.Busy() {
		return
	}
	l.mu.Lock()
	if l.closed || g != l.gen {
		l.mu.Unlock()
		return
	}
	l.warned = true
	l.warningInFlight = true
	l.warnTimer = nil
	l.discTimer = time.AfterFunc(l.cfg.DisconnectDelay, func() { l.discFire(g) })
	l.mu.Unlock()

	log.Println("liveness: no interaction detected, sending warning")
	if l.ev.OnWarning != nil {
		l.ev.OnWarning()
	}
}

func (l *Liveness) discFire(g uint64) {
	if l.ev.Busy != nil && l.ev.Busy() {
		return
	}
	l.mu.Lock()
	if l.closed || g != l.gen {
		l.mu.Unlock()
		return
	}
	l.warningInFlight = true
	l.discTimer = nil
	l.mu.Unlock()

	log.Println("liveness: no response after warning, ending call")
	if l.ev.OnFarewell != nil {
		l.ev.OnFarewell()
	}
}
