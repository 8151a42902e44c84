package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/models"
	"github.com/rryowa/blog_admin/internal/util"
)

// DefaultSafetyMargin is how long before bearer expiry the renewal fires.
const DefaultSafetyMargin = 10 * time.Second

const (
	bannerUnknown     = "Your session could not be found. Sign in again to continue."
	bannerForbidden   = "Your sign-in credentials could not be verified. Sign in again to continue."
	noticeUnreachable = "The service is unreachable. Reload to try again."
	noticeRenewFailed = "Your session could not be renewed. Reload to try again."
)

type State int

const (
	StateIdle State = iota
	StateVerifying
	StateReady
	StateRedirectPending
	StateErrorSurfaced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateVerifying:
		return "Verifying"
	case StateReady:
		return "Ready"
	case StateRedirectPending:
		return "RedirectPending"
	case StateErrorSurfaced:
		return "ErrorSurfaced"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Navigator is the routing surface of the host application.
type Navigator interface {
	Route() string
	Redirect(route string)
}

// View shows banners (persistent errors) and dismissible notices.
type View interface {
	ShowError(msg string)
	ShowNotice(msg string)
}

type RouteConfig struct {
	// Public routes render without a session.
	Public       []string
	Login        string
	Home         string
	Registration string
}

func RoutesFromConfig(cfg *util.ClientConfig) RouteConfig {
	return RouteConfig{
		Public:       cfg.PublicRoutes,
		Login:        cfg.LoginRoute,
		Home:         cfg.HomeRoute,
		Registration: cfg.RegistrationRoute,
	}
}

func (r RouteConfig) IsPublic(route string) bool {
	path := routePath(route)
	for _, p := range r.Public {
		if p == path {
			return true
		}
	}
	return false
}

// LoginWithStatus is the login route carrying the reason the user was sent there.
func (r RouteConfig) LoginWithStatus(code string) string {
	return r.Login + "?status=" + url.QueryEscape(code)
}

func routePath(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		return route[:i]
	}
	return route
}

type ControllerDeps struct {
	API       SessionAPI
	Storage   LocalStorage
	Navigator Navigator
	View      View
	Bearer    *BearerHolder
	Routes    RouteConfig
	// Clock defaults to the system clock.
	Clock Clock
	// SafetyMargin defaults to DefaultSafetyMargin.
	SafetyMargin time.Duration
	Log          *zap.SugaredLogger
}

// Controller owns the client half of the session protocol: the initial verification, the
// single renewal timer and the redirect and error decisions.
type Controller struct {
	api     SessionAPI
	storage LocalStorage
	nav     Navigator
	view    View
	bearer  *BearerHolder
	routes  RouteConfig
	clock   Clock
	margin  time.Duration
	log     *zap.SugaredLogger

	// ctx is cancelled by Close and bounds timer-driven refresh calls.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	user       *models.User
	timer      Timer
	deadline   time.Time
	generation uint64
	closed     bool
}

func NewController(deps ControllerDeps) *Controller {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.SafetyMargin <= 0 {
		deps.SafetyMargin = DefaultSafetyMargin
	}
	if deps.Bearer == nil {
		deps.Bearer = &BearerHolder{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		api:     deps.API,
		storage: deps.Storage,
		nav:     deps.Navigator,
		view:    deps.View,
		bearer:  deps.Bearer,
		routes:  deps.Routes,
		clock:   deps.Clock,
		margin:  deps.SafetyMargin,
		log:     deps.Log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User is the verified user, nil before verification or after the session ended.
func (c *Controller) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Deadline is when the armed renewal timer fires; zero when none is armed.
func (c *Controller) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Mount runs the on-load verification and returns the state it settled in.
func (c *Controller) Mount(ctx context.Context) State {
	c.setState(StateVerifying)
	route := c.nav.Route()

	sessionID, ok := c.sessionID()
	if !ok {
		if c.routes.IsPublic(route) {
			return c.settle(StateReady, nil)
		}
		return c.settle(StateRedirectPending, c.redirect(c.routes.Login))
	}

	out, err := c.api.Verify(ctx, sessionID)
	if err != nil {
		c.log.Warnw("Session verification unavailable", "error", err)
		return c.settle(StateErrorSurfaced, c.notice(noticeUnreachable))
	}
	c.log.Debugw("Session verification finished", "outcome", out.Typename())

	switch o := out.(type) {
	case models.VerifiedSession:
		user := o.User
		c.mu.Lock()
		c.user = &user
		c.mu.Unlock()
		c.bearer.Set(o.AccessToken)
		c.arm(o.ExpiresAt)

		if c.routes.IsPublic(route) {
			target := c.routes.Home
			if !o.User.Onboarded {
				target = c.routes.Registration
			}
			if routePath(route) != target {
				return c.settle(StateRedirectPending, c.redirect(target))
			}
		}
		return c.settle(StateReady, nil)
	case models.AuthCookieError, models.NotAllowedError:
		c.forgetSession()
		if c.routes.IsPublic(route) {
			return c.settle(StateReady, nil)
		}
		return c.settle(StateRedirectPending, c.redirect(c.routes.LoginWithStatus(out.Typename())))
	case models.SessionIDValidationError:
		return c.settle(StateErrorSurfaced, c.banner(o.Reason))
	case models.UnknownError:
		return c.settle(StateErrorSurfaced, c.banner(bannerUnknown))
	case models.ForbiddenError:
		return c.settle(StateErrorSurfaced, c.banner(bannerForbidden))
	default:
		return c.settle(StateErrorSurfaced, c.notice(noticeUnreachable))
	}
}

// Login opens a session, persists its id and arms renewal.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.storage.Set(models.SessionIDStorageKey, resp.SessionID); err != nil {
		return fmt.Errorf("persist session id: %w", err)
	}

	user := resp.User
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	c.bearer.Set(resp.AccessToken)
	c.arm(resp.ExpiresAt)
	c.setState(StateReady)
	return nil
}

// Logout cancels renewal, forgets the local session and closes it on the server.
func (c *Controller) Logout(ctx context.Context) error {
	c.cancelTimer()
	sessionID, _ := c.sessionID()
	c.forgetSession()

	var err error
	if sessionID != "" {
		err = c.api.Logout(ctx, sessionID)
	}
	c.settle(StateRedirectPending, c.redirect(c.routes.Login))
	return err
}

// Close cancels the timer and any refresh in flight. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	c.cancel()
}

// arm replaces any pending timer with one firing margin before expiresAt.
func (c *Controller) arm(expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.armLocked(expiresAt)
}

// armLocked requires c.mu held and the controller open.
func (c *Controller) armLocked(expiresAt time.Time) {
	c.stopTimerLocked()

	now := c.clock.Now()
	delay := expiresAt.Add(-c.margin).Sub(now)
	if delay < 0 {
		delay = 0
	}
	gen := c.generation
	c.deadline = now.Add(delay)
	c.timer = c.clock.AfterFunc(delay, func() { c.onTimer(gen) })
	c.log.Debugw("Renewal armed", "delay", delay)
}

func (c *Controller) cancelTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// stopTimerLocked also invalidates a callback that already started waiting for the lock.
func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.deadline = time.Time{}
}

func (c *Controller) onTimer(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.deadline = time.Time{}
	c.mu.Unlock()

	sessionID, ok := c.sessionID()
	if !ok {
		c.expireSession(models.TypenameAuthCookieError)
		return
	}

	out, err := c.api.Refresh(c.ctx, sessionID)

	// A Logout or Close racing with the refresh must not see the bearer or the timer come back.
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.log.Debugw("Discarding refresh result superseded while in flight")
		return
	}
	if at, ok := out.(models.AccessToken); ok && err == nil {
		c.bearer.Set(at.AccessToken)
		c.armLocked(at.ExpiresAt)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warnw("Token refresh unavailable", "error", err)
		c.settle(StateErrorSurfaced, c.notice(noticeRenewFailed))
		return
	}

	switch out.(type) {
	case models.AuthCookieError, models.NotAllowedError, models.ForbiddenError:
		c.expireSession(out.Typename())
	default:
		c.log.Warnw("Token refresh failed", "outcome", out.Typename())
		c.settle(StateErrorSurfaced, c.notice(noticeRenewFailed))
	}
}

func (c *Controller) expireSession(code string) {
	c.forgetSession()
	c.settle(StateRedirectPending, c.redirect(c.routes.LoginWithStatus(code)))
}

func (c *Controller) forgetSession() {
	if err := c.storage.Remove(models.SessionIDStorageKey); err != nil {
		c.log.Errorw("Failed to remove session id", "error", err)
	}
	c.bearer.Set("")
	c.mu.Lock()
	c.user = nil
	c.stopTimerLocked()
	c.mu.Unlock()
}

func (c *Controller) sessionID() (string, bool) {
	id, ok, err := c.storage.Get(models.SessionIDStorageKey)
	if err != nil {
		c.log.Errorw("Failed to read session id", "error", err)
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, ok && id != ""
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// settle records the final state and runs effect outside the lock. A closed controller shows nothing.
func (c *Controller) settle(s State, effect func()) State {
	c.mu.Lock()
	c.state = s
	closed := c.closed
	c.mu.Unlock()

	if effect != nil && !closed {
		effect()
	}
	return s
}

func (c *Controller) redirect(route string) func() {
	return func() { c.nav.Redirect(route) }
}

func (c *Controller) banner(msg string) func() {
	return func() { c.view.ShowError(msg) }
}

func (c *Controller) notice(msg string) func() {
	return func() { c.view.ShowNotice(msg) }
}
