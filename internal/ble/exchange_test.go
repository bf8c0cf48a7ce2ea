package ble

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

func TestExecuteReturnsPayload(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = func([]byte) []byte {
		return responseFrame(protocol.GetTimer, 0x14, 0x0e, 0x01, 0x37)
	}
	c := mustNewClient(t, adapter, testOpts())

	payload, err := c.Execute(context.Background(), protocol.GetTimer)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if want := []byte{0x14, 0x0e, 0x01, 0x37}; !bytes.Equal(payload, want) {
		t.Errorf("payload = %x, want %x", payload, want)
	}

	writes := adapter.latestConnection().writeChar.Writes()
	want := []byte{0xAB, 0xAA, 0x03, 0xE6, 0xE5, 0x55}
	if len(writes) != 1 || !bytes.Equal(writes[0], want) {
		t.Errorf("writes = %x, want [%x]", writes, want)
	}
}

func TestExecuteSerializesConcurrentCallers(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = echoResponder
	adapter.delay = 2 * time.Millisecond
	c := mustNewClient(t, adapter, testOpts())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			payload, err := c.Execute(context.Background(), protocol.SetLEDColor, b, b, b)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(payload, []byte{b, b, b}) {
				errs <- errors.New("response delivered to the wrong caller")
			}
		}(byte(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.overlapped {
		t.Error("a request was written while another was awaiting its response")
	}
	if n := len(adapter.connection.writeChar.Writes()); n != callers {
		t.Errorf("writes = %d, want %d", n, callers)
	}
}

func TestExecuteInvalidResponse(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = func([]byte) []byte {
		msg := responseFrame(protocol.GetTimer, 0, 0, 0, 0)
		msg[len(msg)-2] ^= 0xFF
		return msg
	}
	c := mustNewClient(t, adapter, testOpts())

	_, err := c.Execute(context.Background(), protocol.GetTimer)
	if !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("Execute() error = %v, want ErrFraming", err)
	}
	var fe *protocol.FramingError
	if !errors.As(err, &fe) || fe.Kind != protocol.BadChecksum {
		t.Errorf("framing error = %v, want BadChecksum", err)
	}
	if n := adapter.connectCount(); n != 1 {
		t.Errorf("framing errors must not be retried: %d connects", n)
	}
	if c.IsConnected() {
		t.Error("link should be reset after an invalid response")
	}
}

func TestUnsolicitedNotificationDiscarded(t *testing.T) {
	adapter := newMockAdapter(nil)
	c := mustNewClient(t, adapter, testOpts())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	conn := adapter.latestConnection()
	conn.readChar.SimulateNotification(responseFrame(protocol.GetPowerState, 0xFF))
	conn.readChar.SimulateNotification([]byte{0x01, 0x02})
	if !c.IsConnected() {
		t.Fatal("unsolicited notifications must not affect the link")
	}

	adapter.mu.Lock()
	adapter.respond = echoResponder
	adapter.mu.Unlock()

	payload, err := c.Execute(context.Background(), protocol.SetPower, protocol.PowerOn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !bytes.Equal(payload, []byte{protocol.PowerOn}) {
		t.Errorf("payload = %x, want %x", payload, protocol.PowerOn)
	}
}

func TestExecuteTimeout(t *testing.T) {
	adapter := newMockAdapter(nil)
	opts := testOpts()
	opts.ResponseTimeout = 20 * time.Millisecond
	c := mustNewClient(t, adapter, opts)

	_, err := c.Execute(context.Background(), protocol.GetPowerState)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if c.writeLock.Held() {
		t.Error("write lock should be released after a timeout")
	}
	if c.IsConnected() {
		t.Error("link should be reset after a timeout")
	}

	adapter.mu.Lock()
	adapter.respond = echoResponder
	adapter.mu.Unlock()

	if _, err := c.Execute(context.Background(), protocol.GetPowerState); err != nil {
		t.Fatalf("Execute() after timeout error = %v", err)
	}
	if n := adapter.connectCount(); n != 2 {
		t.Errorf("adapter.Connect called %d times, want 2", n)
	}
}

func TestExecuteContextCanceled(t *testing.T) {
	adapter := newMockAdapter(nil)
	c := mustNewClient(t, adapter, testOpts())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Execute(ctx, protocol.GetPowerState)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute() error = %v, want context.DeadlineExceeded", err)
	}
	if c.IsConnected() {
		t.Error("link should be reset after a canceled exchange")
	}
}

func TestExecuteDisconnectWhilePending(t *testing.T) {
	adapter := newMockAdapter(nil)
	c := mustNewClient(t, adapter, testOpts())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	conn := adapter.latestConnection()

	notified := make(chan struct{}, 1)
	c.OnDisconnect(func() { notified <- struct{}{} })

	go func() {
		for len(conn.writeChar.Writes()) == 0 {
			time.Sleep(time.Millisecond)
		}
		conn.SimulateDisconnect()
	}()

	_, err := c.Execute(context.Background(), protocol.GetPowerState)
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Execute() error = %v, want ErrDisconnected", err)
	}
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Error("disconnect listener did not run")
	}
}

func TestExecuteRetriesTransientWrite(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = echoResponder
	adapter.writeErrs = []error{Transient(errors.New("adapter busy"))}
	c := mustNewClient(t, adapter, testOpts())

	var handshakes int
	c.SetHandshake(func(ctx context.Context, exchange ExchangeFunc) error {
		handshakes++
		_, err := exchange(ctx, protocol.SendPassword, '1', '2', '3', '4')
		return err
	})

	payload, err := c.Execute(context.Background(), protocol.SetIFCCmd2, 0x00, 0x42)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !bytes.Equal(payload, []byte{0x00, 0x42}) {
		t.Errorf("payload = %x, want 0042", payload)
	}
	if n := adapter.connectCount(); n != 2 {
		t.Errorf("adapter.Connect called %d times, want 2", n)
	}
	if handshakes != 1 {
		t.Errorf("handshake ran %d times, want 1", handshakes)
	}

	writes := adapter.latestConnection().writeChar.Writes()
	if len(writes) != 2 {
		t.Fatalf("writes on reconnected link = %d, want 2", len(writes))
	}
	if op := protocol.FrameOpcode(writes[0]); op != protocol.SendPassword {
		t.Errorf("first write on new link = %v, want %v", op, protocol.SendPassword)
	}
	if op := protocol.FrameOpcode(writes[1]); op != protocol.SetIFCCmd2 {
		t.Errorf("second write on new link = %v, want %v", op, protocol.SetIFCCmd2)
	}
}

func TestExecuteFatalWriteNotRetried(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = echoResponder
	adapter.writeErrs = []error{errors.New("not permitted")}
	c := mustNewClient(t, adapter, testOpts())

	if _, err := c.Execute(context.Background(), protocol.GetPowerState); err == nil {
		t.Fatal("Execute() should fail on a fatal write error")
	}
	if n := adapter.connectCount(); n != 1 {
		t.Errorf("adapter.Connect called %d times, want 1", n)
	}
}

func TestExecuteRetryBudget(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.respond = echoResponder
	busy := Transient(errors.New("adapter busy"))
	adapter.writeErrs = []error{busy, busy, busy}
	c := mustNewClient(t, adapter, testOpts())

	_, err := c.Execute(context.Background(), protocol.GetPowerState)
	if !IsTransient(err) {
		t.Fatalf("Execute() error = %v, want transient error", err)
	}
	if n := adapter.connectCount(); n != 3 {
		t.Errorf("adapter.Connect called %d times, want 3", n)
	}
}

func TestExecuteConnectFailure(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.missing = ReadCharUUID
	c := mustNewClient(t, adapter, testOpts())

	_, err := c.Execute(context.Background(), protocol.GetPowerState)
	if !errors.Is(err, ErrCharacteristicMissing) {
		t.Fatalf("Execute() error = %v, want ErrCharacteristicMissing", err)
	}
	if c.writeLock.Held() {
		t.Error("write lock should be released after a connect failure")
	}
}
