package auth

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// DefaultLoadingDeadline bounds how long the UI may sit on IsLoading=true
// waiting for the authoritative session check. A check that finishes later
// still updates state normally.
const DefaultLoadingDeadline = 300 * time.Millisecond

// Reconciler keeps the Store consistent with the auth service's notion of
// the current session: one authoritative check at start, then the lifecycle
// event stream until Stop.
type Reconciler struct {
	gw       *Gateway
	store    *Store
	profiles Profiles

	// LoadingDeadline overrides DefaultLoadingDeadline when set before Start.
	LoadingDeadline time.Duration

	checkInFlight atomic.Bool
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewReconciler(gw *Gateway, store *Store, profiles Profiles) *Reconciler {
	return &Reconciler{gw: gw, store: store, profiles: profiles}
}

// Start seeds the Store from durable storage for the optimistic first render,
// subscribes to the lifecycle stream, then asks the service for the
// authoritative session. Failing to open the event stream is fatal; the
// session check itself fails closed.
func (r *Reconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	r.store.LoadPersisted()

	events, err := r.gw.SubscribeEvents(ctx)
	if err != nil {
		cancel()
		close(r.done)
		return err
	}

	deadline := r.LoadingDeadline
	if deadline <= 0 {
		deadline = DefaultLoadingDeadline
	}
	deadlineTimer := time.AfterFunc(deadline, func() {
		r.store.SetLoading(false)
	})

	go r.CheckSession(ctx)
	go r.run(ctx, events, deadlineTimer)

	return nil
}

// Stop tears down the event subscription and waits for the loop to exit.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Reconciler) run(ctx context.Context, events <-chan Event, deadlineTimer *time.Timer) {
	defer close(r.done)
	defer deadlineTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)
		}
	}
}

// CheckSession asks the auth service for the current session and reconciles
// the Store with the answer. Single-flight: a call while one is outstanding
// is dropped, not queued.
func (r *Reconciler) CheckSession(ctx context.Context) {
	if !r.checkInFlight.CompareAndSwap(false, true) {
		return
	}
	defer r.checkInFlight.Store(false)

	session, err := r.gw.GetSession(ctx)
	if err != nil {
		// Fail closed: an ambiguous check means "not authenticated".
		log.Printf("session check failed: %v", err)
		r.store.Clear()
		r.store.SetLoading(false)
		return
	}
	if session == nil {
		r.store.Clear()
		r.store.SetLoading(false)
		return
	}

	profile, err := FetchOrCreateProfile(ctx, r.profiles, session.User)
	if err != nil {
		log.Printf("profile fetch during session check failed: %v", err)
		r.store.Clear()
		r.store.SetLoading(false)
		return
	}

	r.store.SetUser(profile)
	r.store.SetLoading(false)
}

// eventAction classifies a lifecycle event into the store mutation it
// requires. Kept pure so the transition table tests without a transport.
type eventAction int

const (
	actionNone eventAction = iota
	actionAdoptSession
	actionClearSession
	actionStopLoading
	actionRefreshProfile
)

func actionFor(kind EventKind) eventAction {
	switch kind {
	case EventSignedIn:
		return actionAdoptSession
	case EventSignedOut:
		return actionClearSession
	case EventTokenRefreshed:
		return actionStopLoading
	case EventUserUpdated:
		return actionRefreshProfile
	default:
		return actionNone
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, ev Event) {
	switch actionFor(ev.Kind) {
	case actionAdoptSession:
		if ev.Session == nil {
			return
		}
		profile, err := FetchOrCreateProfile(ctx, r.profiles, ev.Session.User)
		if err != nil {
			log.Printf("profile fetch after sign-in failed: %v", err)
			r.store.Clear()
			r.store.SetLoading(false)
			return
		}
		r.store.SetUser(profile)
		r.store.SetLoading(false)

	case actionClearSession:
		r.gw.ClearLocalSession()
		if err := r.store.persister.ClearProviderState(); err != nil {
			log.Printf("failed to sweep provider keys on sign-out: %v", err)
		}
		r.store.Clear()
		r.store.SetLoading(false)

	case actionStopLoading:
		r.store.SetLoading(false)

	case actionRefreshProfile:
		if ev.Session == nil {
			return
		}
		profile, err := FetchOrCreateProfile(ctx, r.profiles, ev.Session.User)
		if err != nil {
			log.Printf("profile refresh after user update failed: %v", err)
			return
		}
		r.store.SetUser(profile)
		r.store.SetLoading(false)
	}
}
