package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ConnState is the lifecycle state of the link.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ClientOptions configures the BLE client behavior.
type ClientOptions struct {
	IdleTimeout     time.Duration // disconnect after this long without traffic; negative disables
	ConnectAttempts int           // connect tries per Connect call
	CommandAttempts int           // tries per command on transient transport errors
	RetryBackoff    time.Duration // base delay between retries
	MaxBackoff      time.Duration // cap for the exponential connect backoff
	ResponseTimeout time.Duration // how long to wait for the answering notification
	Logger          *slog.Logger
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		IdleTimeout:     120 * time.Second,
		ConnectAttempts: 3,
		CommandAttempts: 3,
		RetryBackoff:    250 * time.Millisecond,
		MaxBackoff:      5 * time.Second,
		ResponseTimeout: 10 * time.Second,
	}
}

type listener struct {
	id int
	fn func()
}

// Client manages the BLE link to one eFIRE controller and serializes
// command round trips over it. Safe for concurrent use.
type Client struct {
	adapter Adapter
	opts    ClientOptions
	log     *slog.Logger

	connectLock fifoLock
	writeLock   fifoLock

	mu         sync.Mutex
	device     Device
	enabled    bool
	state      ConnState
	conn       Connection
	writeChar  Characteristic
	readChar   Characteristic
	generation uint64 // bumped whenever a link is installed or torn down
	expected   bool   // the next transport disconnect was requested by us
	pending    *pendingResponse
	idleTimer  *time.Timer
	idleGen    uint64
	handshake  Handshake

	listeners    []listener
	nextListener int
}

// NewClient creates a client for dev. Zero option fields take defaults;
// a negative IdleTimeout or RetryBackoff disables the timer or delay.
func NewClient(adapter Adapter, dev Device, opts ClientOptions) (*Client, error) {
	if adapter == nil {
		return nil, errors.New("ble: adapter must not be nil")
	}
	if dev.MAC == "" {
		return nil, errors.New("ble: device address must not be empty")
	}
	def := DefaultClientOptions()
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = def.ConnectAttempts
	}
	if opts.CommandAttempts <= 0 {
		opts.CommandAttempts = def.CommandAttempts
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = def.RetryBackoff
	} else if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = def.MaxBackoff
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = def.ResponseTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		adapter: adapter,
		opts:    opts,
		log:     log,
		device:  dev,
	}, nil
}

// Name returns the advertised device name, falling back to its address.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device.Name != "" {
		return c.device.Name
	}
	return c.device.MAC
}

// Address returns the device address.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device.MAC
}

// RSSI returns the last known signal strength, if any.
func (c *Client) RSSI() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device.RSSI, c.device.RSSI != 0
}

// SetDevice replaces the device metadata, e.g. after a fresh scan. An empty
// MAC keeps the current address.
func (c *Client) SetDevice(dev Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dev.MAC == "" {
		dev.MAC = c.device.MAC
	}
	c.device = dev
}

// State returns the current link state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a link is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// OnDisconnect registers fn to run on every disconnect, expected or not.
// Listeners run synchronously in registration order. The returned func
// unregisters fn.
func (c *Client) OnDisconnect(fn func()) (unregister func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
	}
}

func (c *Client) notifyListeners() {
	c.mu.Lock()
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, l := range ls {
		l.fn()
	}
}

// backoffDelay returns the delay before retry attempt n: base doubled per
// attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 16 {
		attempt = 16
	}
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect establishes the link if it is not already up. Concurrent callers
// wait for the attempt in flight and observe its outcome.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		c.resetIdleTimer()
		return nil
	}
	if c.connectLock.Held() {
		c.log.Debug("[BLE] connection already in progress, waiting", "device", c.Name())
	}
	if err := c.connectLock.Acquire(ctx); err != nil {
		return fmt.Errorf("ble: connect: %w", err)
	}
	defer c.connectLock.Release()

	if c.IsConnected() {
		c.resetIdleTimer()
		return nil
	}

	c.setState(StateConnecting)
	if err := c.connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	c.resetIdleTimer()
	return nil
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// connect dials the device and installs the link. Caller holds connectLock.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	enabled := c.enabled
	mac := c.device.MAC
	c.mu.Unlock()

	if !enabled {
		if err := c.adapter.Enable(); err != nil {
			return fmt.Errorf("ble: enable adapter: %w", err)
		}
		c.mu.Lock()
		c.enabled = true
		c.mu.Unlock()
	}

	rssi, _ := c.RSSI()
	c.log.Debug("[BLE] connecting", "device", c.Name(), "rssi", rssi)

	var conn Connection
	var err error
	for attempt := 0; attempt < c.opts.ConnectAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, c.opts.RetryBackoff, c.opts.MaxBackoff)
			c.log.Debug("[BLE] connect backoff", "attempt", attempt+1, "delay", delay)
			if serr := sleepCtx(ctx, delay); serr != nil {
				return fmt.Errorf("ble: connect to %s: %w", mac, serr)
			}
		}
		conn, err = c.adapter.Connect(ctx, mac)
		if err == nil || ctx.Err() != nil {
			break
		}
		c.log.Warn("[BLE] connect failed", "device", mac, "error", err, "attempt", attempt+1)
	}
	if err != nil {
		return fmt.Errorf("ble: connect to %s: %w", mac, err)
	}

	writeChar, err := conn.DiscoverCharacteristic(ServiceUUID, WriteCharUUID)
	if err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("%w: write characteristic %s: %v", ErrCharacteristicMissing, WriteCharUUID, err)
	}
	readChar, err := conn.DiscoverCharacteristic(ServiceUUID, ReadCharUUID)
	if err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("%w: read characteristic %s: %v", ErrCharacteristicMissing, ReadCharUUID, err)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	conn.OnDisconnect(func() { c.handleDisconnect(gen) })

	if err := readChar.Subscribe(c.handleNotification); err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("ble: subscribe to notifications: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.writeChar = writeChar
	c.readChar = readChar
	c.expected = false
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info("[BLE] connected", "device", c.Name(), "mac", mac)
	return nil
}

// clearLocked drops the link state. Caller holds mu.
func (c *Client) clearLocked() {
	c.generation++
	c.conn = nil
	c.writeChar = nil
	c.readChar = nil
	c.state = StateDisconnected
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

// handleDisconnect is the transport disconnect hook for link generation gen.
func (c *Client) handleDisconnect(gen uint64) {
	c.mu.Lock()
	if c.expected || gen != c.generation || c.conn == nil {
		c.expected = false
		c.mu.Unlock()
		c.log.Debug("[BLE] disconnected", "device", c.Name())
		return
	}
	p := c.pending
	c.pending = nil
	c.clearLocked()
	c.mu.Unlock()

	if p != nil {
		p.resolve(nil, ErrDisconnected)
	}
	c.log.Warn("[BLE] device unexpectedly disconnected", "device", c.Name(), "pending", p != nil)
	c.notifyListeners()
}

// Disconnect closes the link. Any pending exchange fails with
// ErrDisconnected and all disconnect listeners run.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.connectLock.Acquire(ctx); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	defer c.connectLock.Release()
	return c.disconnect()
}

// Close gracefully disconnects the BLE client.
func (c *Client) Close() error {
	return c.Disconnect(context.Background())
}

func (c *Client) disconnect() error {
	c.mu.Lock()
	conn := c.conn
	readChar := c.readChar
	p := c.pending
	c.pending = nil
	c.expected = true
	c.clearLocked()
	c.mu.Unlock()

	if p != nil {
		p.resolve(nil, ErrDisconnected)
	}

	var err error
	if conn != nil {
		if uerr := readChar.Unsubscribe(); uerr != nil {
			c.log.Debug("[BLE] unsubscribe failed", "error", uerr)
		}
		if derr := conn.Disconnect(); derr != nil {
			err = fmt.Errorf("ble: disconnect: %w", derr)
		}
		c.log.Debug("[BLE] disconnected", "device", c.Name())
	}

	c.notifyListeners()
	return err
}

// forceDisconnect resets the link after a protocol or transport failure.
func (c *Client) forceDisconnect() {
	if err := c.Disconnect(context.Background()); err != nil {
		c.log.Debug("[BLE] forced disconnect failed", "error", err)
	}
}

// resetIdleTimer re-arms the idle disconnect timer.
func (c *Client) resetIdleTimer() {
	if c.opts.IdleTimeout < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	c.expected = false
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleGen++
	gen := c.idleGen
	c.idleTimer = time.AfterFunc(c.opts.IdleTimeout, func() { c.idleDisconnect(gen) })
}

// idleDisconnect runs when the idle timer for generation gen fires. It
// waits for any exchange in flight so a command is never cut off.
func (c *Client) idleDisconnect(gen uint64) {
	if err := c.writeLock.Acquire(context.Background()); err != nil {
		return
	}
	defer c.writeLock.Release()

	c.mu.Lock()
	stale := gen != c.idleGen || c.conn == nil
	c.mu.Unlock()
	if stale {
		return
	}

	c.log.Debug("[BLE] disconnecting after inactivity", "device", c.Name(), "idle", c.opts.IdleTimeout)
	if err := c.Disconnect(context.Background()); err != nil {
		c.log.Warn("[BLE] idle disconnect failed", "error", err)
	}
}
