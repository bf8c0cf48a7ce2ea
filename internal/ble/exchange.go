package ble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

// ExchangeFunc sends one command and returns the response payload.
type ExchangeFunc func(ctx context.Context, op protocol.Opcode, param ...byte) ([]byte, error)

// Handshake runs on a fresh link before a command that is being retried
// after a forced reconnect is sent again. exchange bypasses the write lock,
// which the caller already holds.
type Handshake func(ctx context.Context, exchange ExchangeFunc) error

// SetHandshake installs the handshake run on links re-established during
// command retries. The session layer uses it to log in again.
func (c *Client) SetHandshake(h Handshake) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handshake = h
}

type response struct {
	msg []byte
	err error
}

// pendingResponse is the single slot an in-flight request waits on.
type pendingResponse struct {
	ch chan response
}

func newPendingResponse() *pendingResponse {
	return &pendingResponse{ch: make(chan response, 1)}
}

func (p *pendingResponse) resolve(msg []byte, err error) {
	select {
	case p.ch <- response{msg: msg, err: err}:
	default:
	}
}

// handleNotification is the notification intake of the read characteristic.
func (c *Client) handleNotification(data []byte) {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()

	if p == nil {
		c.log.Debug("[BLE] discarding unsolicited notification", "data", fmt.Sprintf("%x", data))
		return
	}

	msg := make([]byte, len(data))
	copy(msg, data)
	c.log.Debug("[BLE] notification", "device", c.Name(), "data", fmt.Sprintf("%x", msg))

	if err := protocol.ValidateMessage(msg); err != nil {
		p.resolve(nil, err)
		return
	}
	p.resolve(msg, nil)
}

func (c *Client) clearPending(p *pendingResponse) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

// Execute sends op with its parameter bytes and returns the payload of the
// correlated response: the bytes after the opcode, without framing. Calls
// are serialized in arrival order; only one request is ever in flight.
// Transient transport errors are retried after a forced reconnect.
func (c *Client) Execute(ctx context.Context, op protocol.Opcode, param ...byte) ([]byte, error) {
	msg := protocol.BuildCommand(op, param...)
	if err := protocol.ValidateMessage(msg); err != nil {
		return nil, fmt.Errorf("ble: %v request: %w", op, err)
	}

	if err := c.writeLock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("ble: %v: %w", op, err)
	}
	defer c.writeLock.Release()

	var lastErr error
	for attempt := 0; attempt < c.opts.CommandAttempts; attempt++ {
		if err := c.Connect(ctx); err != nil {
			return nil, fmt.Errorf("ble: %v: %w", op, err)
		}
		if attempt > 0 {
			c.log.Debug("[BLE] retrying command", "opcode", op, "attempt", attempt+1, "error", lastErr)
			if err := c.runHandshake(ctx); err != nil {
				lastErr = err
				if IsTransient(err) && ctx.Err() == nil {
					continue
				}
				break
			}
		}

		resp, err := c.exchange(ctx, msg)
		if err == nil {
			c.resetIdleTimer()
			return protocol.Payload(resp), nil
		}
		lastErr = err
		if !IsTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("ble: %v: %w", op, lastErr)
}

func (c *Client) runHandshake(ctx context.Context) error {
	c.mu.Lock()
	h := c.handshake
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, c.exchangeUnlocked)
}

// exchangeUnlocked performs a single round trip. Caller holds writeLock.
func (c *Client) exchangeUnlocked(ctx context.Context, op protocol.Opcode, param ...byte) ([]byte, error) {
	resp, err := c.exchange(ctx, protocol.BuildCommand(op, param...))
	if err != nil {
		return nil, fmt.Errorf("ble: %v: %w", op, err)
	}
	return protocol.Payload(resp), nil
}

// exchange writes one framed request and waits for the notification that
// answers it. Any failure other than a clean response leaves the link
// disconnected.
func (c *Client) exchange(ctx context.Context, msg []byte) ([]byte, error) {
	c.mu.Lock()
	if c.conn == nil || c.writeChar == nil {
		c.mu.Unlock()
		return nil, ErrDisconnected
	}
	if c.pending != nil {
		c.log.Error("[BLE] request issued while another is pending")
	}
	p := newPendingResponse()
	c.pending = p
	writeChar := c.writeChar
	c.mu.Unlock()

	c.log.Debug("[BLE] write", "device", c.Name(), "data", fmt.Sprintf("%x", msg))
	if err := writeChar.Write(msg); err != nil {
		c.clearPending(p)
		if IsTransient(err) {
			c.log.Debug("[BLE] transient write error, backing off", "error", err, "delay", c.opts.RetryBackoff)
			_ = sleepCtx(ctx, c.opts.RetryBackoff)
		} else {
			c.log.Warn("[BLE] write failed", "device", c.Name(), "error", err)
		}
		c.forceDisconnect()
		return nil, fmt.Errorf("ble: write: %w", err)
	}

	timer := time.NewTimer(c.opts.ResponseTimeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		if r.err != nil {
			if errors.Is(r.err, protocol.ErrFraming) {
				c.log.Warn("[BLE] invalid response", "device", c.Name(), "error", r.err)
				c.forceDisconnect()
			}
			return nil, r.err
		}
		return r.msg, nil
	case <-timer.C:
		c.clearPending(p)
		c.log.Warn("[BLE] response timeout", "device", c.Name(), "timeout", c.opts.ResponseTimeout)
		c.forceDisconnect()
		return nil, ErrTimeout
	case <-ctx.Done():
		c.clearPending(p)
		c.forceDisconnect()
		return nil, ctx.Err()
	}
}
