package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rryowa/blog_admin/internal/models"
)

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func newManualClock(now time.Time) *manualClock { return &manualClock{now: now} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs, in order, every timer that became due.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) pending() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeAPI struct {
	mu             sync.Mutex
	verifyOutcome  models.Outcome
	verifyErr      error
	refreshResults []refreshResult
	loginResp      *models.LoginResponse
	verifyCalls    int
	refreshCalls   int
	logoutIDs      []string
	// afterRefresh runs once Refresh has produced its result, outside the fake's lock.
	afterRefresh func()
}

type refreshResult struct {
	outcome models.Outcome
	err     error
}

func (a *fakeAPI) Verify(context.Context, string) (models.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifyCalls++
	return a.verifyOutcome, a.verifyErr
}

func (a *fakeAPI) Refresh(context.Context, string) (models.Outcome, error) {
	a.mu.Lock()
	a.refreshCalls++
	r := refreshResult{outcome: models.UnknownError{}}
	if len(a.refreshResults) > 0 {
		r = a.refreshResults[0]
		a.refreshResults = a.refreshResults[1:]
	}
	hook := a.afterRefresh
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	return r.outcome, r.err
}

func (a *fakeAPI) Login(context.Context, string, string) (*models.LoginResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginResp, nil
}

func (a *fakeAPI) Logout(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logoutIDs = append(a.logoutIDs, sessionID)
	return nil
}

func (a *fakeAPI) refreshes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

type fakeNavigator struct {
	mu        sync.Mutex
	route     string
	redirects []string
}

func (n *fakeNavigator) Route() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

func (n *fakeNavigator) Redirect(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, route)
}

type fakeView struct {
	mu      sync.Mutex
	errors  []string
	notices []string
}

func (v *fakeView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, msg)
}

func (v *fakeView) ShowNotice(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, msg)
}
