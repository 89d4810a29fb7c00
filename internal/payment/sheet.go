package payment

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSheetCanceled is the distinguished user-cancellation signal. It is
	// an outcome, not a failure; orchestrators map it to a Canceled result.
	ErrSheetCanceled = errors.New("payment sheet canceled by user")
	// ErrSheetTimeout fires when the client never reports an outcome.
	ErrSheetTimeout = errors.New("payment sheet timed out")
	// ErrSheetBusy means a presentation is already in flight.
	ErrSheetBusy = errors.New("payment sheet already presented")
)

// SheetConfig is handed to the client for one presentation. The client secret
// lives here only while the confirmation is active, and only the owning
// user's callbacks may see or resolve it.
type SheetConfig struct {
	ClientSecret string
	Description  string
	OwnerID      string
}

// ConfirmationSheet models the native payment sheet: configure it, then
// present and block until the user acts, the caller's context ends, or the
// timeout fires.
type ConfirmationSheet interface {
	Init(ctx context.Context, cfg SheetConfig) error
	Present(ctx context.Context) error
}

// SheetOutcome is what the client reports back after driving the native UI.
type SheetOutcome struct {
	Canceled bool
	Failure  string // empty on success
}

// ClientBridge implements ConfirmationSheet by relaying to the connected
// mobile client: Present parks until Resolve is called from the sheet
// callback endpoint. Single slot; the sheet lock upstream guarantees callers
// never overlap, the busy error here is a backstop.
type ClientBridge struct {
	timeout time.Duration

	mu      sync.Mutex
	cfg     SheetConfig
	active  bool
	outcome chan error
}

func NewClientBridge(timeout time.Duration) *ClientBridge {
	return &ClientBridge{timeout: timeout}
}

func (b *ClientBridge) Init(_ context.Context, cfg SheetConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	// a staged config counts as busy too: another flow is between Init and
	// Present and must not have its secret overwritten
	if b.active || b.cfg.ClientSecret != "" {
		return ErrSheetBusy
	}
	if cfg.ClientSecret == "" {
		return errors.New("sheet config requires a client secret")
	}
	if cfg.OwnerID == "" {
		return errors.New("sheet config requires an owner")
	}
	b.cfg = cfg
	return nil
}

func (b *ClientBridge) Present(ctx context.Context) error {
	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return ErrSheetBusy
	}
	if b.cfg.ClientSecret == "" {
		b.mu.Unlock()
		return errors.New("sheet not initialized")
	}
	ch := make(chan error, 1)
	b.outcome = ch
	b.active = true
	b.mu.Unlock()

	// the secret is dropped no matter how presentation ends
	defer b.clear()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-timer.C:
		return ErrSheetTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending exposes the active presentation's config so the client can fetch
// the secret it must confirm against. Only the owner sees it; anyone else
// learns nothing, not even that a presentation exists.
func (b *ClientBridge) Pending(userID string) (SheetConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active || b.cfg.OwnerID != userID {
		return SheetConfig{}, false
	}
	return b.cfg, true
}

// Resolve delivers the client-reported outcome to the parked Present call.
// Returns false when nothing is waiting (late or duplicate callback) or when
// the caller does not own the presentation.
func (b *ClientBridge) Resolve(userID string, outcome SheetOutcome) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active || b.outcome == nil || b.cfg.OwnerID != userID {
		return false
	}

	var err error
	switch {
	case outcome.Canceled:
		err = ErrSheetCanceled
	case outcome.Failure != "":
		err = errors.New(outcome.Failure)
	}
	b.outcome <- err
	b.outcome = nil
	return true
}

func (b *ClientBridge) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = SheetConfig{}
	b.active = false
	b.outcome = nil
}
