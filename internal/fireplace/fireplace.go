// Package fireplace is the session layer for an eFIRE gas fireplace: it
// logs in, keeps a cached copy of the device state, and turns high level
// operations into controller commands.
package fireplace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/efirectl/internal/ble"
	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

// Device is the command transport of one controller. *ble.Client
// satisfies it.
type Device interface {
	Execute(ctx context.Context, op protocol.Opcode, param ...byte) ([]byte, error)
	OnDisconnect(fn func()) (unregister func())
	SetHandshake(h ble.Handshake)
	Name() string
}

// Options configures a Fireplace.
type Options struct {
	Features Features
	// CompatibilityMode drives power with the controller's own power
	// command, as the vendor app does. When false, flame and blower are
	// controlled independently through the function blocks.
	CompatibilityMode bool
	Layout            protocol.Layout
	// Password is used to log in on demand until Authenticate succeeds
	// with another one.
	Password string
	Logger   *slog.Logger
}

// DefaultOptions returns options with compatibility mode on.
func DefaultOptions() Options {
	return Options{CompatibilityMode: true}
}

// Fireplace is an authenticated session with one controller. Operations
// are serialized; State may be read at any time.
type Fireplace struct {
	dev    Device
	log    *slog.Logger
	compat bool
	layout protocol.Layout

	opMu sync.Mutex // held for the whole of each operation

	mu            sync.Mutex
	features      Features
	state         State
	authenticated bool
	password      string

	unregister func()
}

// New creates a session over dev. It registers a disconnect listener that
// drops the login, and a handshake that logs in again on links re-opened
// while a command is retried.
func New(dev Device, opts Options) *Fireplace {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	f := &Fireplace{
		dev:      dev,
		log:      log,
		compat:   opts.CompatibilityMode,
		layout:   opts.Layout,
		features: opts.Features,
		state:    newState(opts.CompatibilityMode),
		password: opts.Password,
	}
	f.unregister = dev.OnDisconnect(f.handleDisconnect)
	dev.SetHandshake(f.handshake)
	return f
}

// Close detaches the session from its device.
func (f *Fireplace) Close() {
	f.unregister()
	f.dev.SetHandshake(nil)
}

// Name returns the device name.
func (f *Fireplace) Name() string { return f.dev.Name() }

// CompatibilityMode reports how power is driven.
func (f *Fireplace) CompatibilityMode() bool { return f.compat }

// State returns a copy of the cached device state.
func (f *Fireplace) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Features returns the enabled features.
func (f *Fireplace) Features() Features {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.features
}

// SetFeatures replaces the feature set from a list of names.
func (f *Fireplace) SetFeatures(names []string) (Features, error) {
	fs, err := ParseFeatures(names)
	if err != nil {
		return Features{}, err
	}
	f.mu.Lock()
	f.features = fs
	f.mu.Unlock()
	return fs, nil
}

// IsAuthenticated reports whether the current link is logged in.
func (f *Fireplace) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *Fireplace) handleDisconnect() {
	f.mu.Lock()
	was := f.authenticated
	f.authenticated = false
	f.mu.Unlock()
	if was {
		f.log.Debug("[FIREPLACE] link closed, login dropped", "device", f.dev.Name())
	}
}

func (f *Fireplace) update(fn func(s *State)) {
	f.mu.Lock()
	fn(&f.state)
	f.mu.Unlock()
}

func (f *Fireplace) requireFeature(feat Feature) error {
	if !f.Features().Has(feat) {
		return &FeatureError{Device: f.dev.Name(), Feature: feat}
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPassword)
	}
	if len(password) > protocol.MaxParamLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidPassword, protocol.MaxParamLength)
	}
	for i := 0; i < len(password); i++ {
		if password[i] > 0x7F {
			return fmt.Errorf("%w: only ASCII characters are accepted", ErrInvalidPassword)
		}
	}
	return nil
}

// Authenticate logs in with password. A rejected password returns false
// with a nil error; the session stays logged out.
func (f *Fireplace) Authenticate(ctx context.Context, password string) (bool, error) {
	if err := validatePassword(password); err != nil {
		return false, err
	}
	f.opMu.Lock()
	defer f.opMu.Unlock()
	return f.login(ctx, f.dev.Execute, password)
}

func (f *Fireplace) login(ctx context.Context, exec ble.ExchangeFunc, password string) (bool, error) {
	f.mu.Lock()
	f.authenticated = false
	f.mu.Unlock()

	resp, err := exec(ctx, protocol.SendPassword, []byte(password)...)
	if err != nil {
		return false, err
	}
	if len(resp) == 0 {
		return false, &CommandFailedError{Op: protocol.SendPassword}
	}
	switch resp[0] {
	case protocol.PasswordLoginSuccess:
		f.mu.Lock()
		f.authenticated = true
		f.password = password
		f.mu.Unlock()
		f.log.Debug("[FIREPLACE] login successful", "device", f.dev.Name())
		return true, nil
	case protocol.PasswordInvalid:
		f.log.Debug("[FIREPLACE] invalid password", "device", f.dev.Name())
	default:
		f.log.Debug("[FIREPLACE] unexpected login response", "device", f.dev.Name(), "result", fmt.Sprintf("%x", resp))
	}
	return false, nil
}

// handshake logs in again on a link re-opened during a command retry.
func (f *Fireplace) handshake(ctx context.Context, exec ble.ExchangeFunc) error {
	f.mu.Lock()
	password := f.password
	f.mu.Unlock()
	if password == "" {
		return nil
	}
	ok, err := f.login(ctx, exec, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuth
	}
	return nil
}

// ensureAuth logs in with the last known password if needed. Caller holds
// opMu.
func (f *Fireplace) ensureAuth(ctx context.Context, op string) error {
	f.mu.Lock()
	authenticated := f.authenticated
	password := f.password
	f.mu.Unlock()
	if authenticated {
		return nil
	}

	f.log.Debug("[FIREPLACE] command requires authentication, logging in", "device", f.dev.Name(), "command", op)
	if password == "" {
		return fmt.Errorf("%w: no password set", ErrAuth)
	}
	ok, err := f.login(ctx, f.dev.Execute, password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if !ok {
		return ErrAuth
	}
	return nil
}

// guarded runs op under the operation lock after making sure the session
// is logged in.
func (f *Fireplace) guarded(ctx context.Context, name string, op func(context.Context) error) error {
	f.opMu.Lock()
	defer f.opMu.Unlock()
	if err := f.ensureAuth(ctx, name); err != nil {
		return err
	}
	return op(ctx)
}

func (f *Fireplace) guardedBool(ctx context.Context, name string, op func(context.Context) (bool, error)) (bool, error) {
	var ok bool
	err := f.guarded(ctx, name, func(ctx context.Context) error {
		var err error
		ok, err = op(ctx)
		return err
	})
	return ok, err
}

// simple sends a command whose response carries only a return code.
func (f *Fireplace) simple(ctx context.Context, op protocol.Opcode, param ...byte) (bool, error) {
	resp, err := f.dev.Execute(ctx, op, param...)
	if err != nil {
		return false, err
	}
	if len(resp) == 0 {
		return false, &CommandFailedError{Op: op}
	}
	return resp[0] == protocol.ReturnSuccess, nil
}

// query sends a state query and fails on an empty response.
func (f *Fireplace) query(ctx context.Context, op protocol.Opcode) ([]byte, error) {
	resp, err := f.dev.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, &CommandFailedError{Op: op}
	}
	return resp, nil
}
