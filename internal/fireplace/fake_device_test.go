package fireplace

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/chaz8081/efirectl/internal/ble"
	"github.com/chaz8081/efirectl/internal/ble/protocol"
)

type call struct {
	op    protocol.Opcode
	param []byte
}

// fakeDevice is a scripted transport spy. Responses queued for an opcode
// are returned first; then the default for the opcode; then SUCCESS.
type fakeDevice struct {
	mu        sync.Mutex
	name      string
	calls     []call
	queued    map[protocol.Opcode][][]byte
	defaults  map[protocol.Opcode][]byte
	errs      map[protocol.Opcode]error
	listeners map[int]func()
	nextID    int
	handshake ble.Handshake
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		name:   "Fireplace",
		queued: map[protocol.Opcode][][]byte{},
		defaults: map[protocol.Opcode][]byte{
			protocol.SendPassword: {protocol.PasswordLoginSuccess},
		},
		errs:      map[protocol.Opcode]error{},
		listeners: map[int]func(){},
	}
}

func (d *fakeDevice) Execute(_ context.Context, op protocol.Opcode, param ...byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{op: op, param: bytes.Clone(param)})
	if err := d.errs[op]; err != nil {
		return nil, err
	}
	if q := d.queued[op]; len(q) > 0 {
		d.queued[op] = q[1:]
		return q[0], nil
	}
	if resp, ok := d.defaults[op]; ok {
		return resp, nil
	}
	return []byte{protocol.ReturnSuccess}, nil
}

func (d *fakeDevice) OnDisconnect(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *fakeDevice) SetHandshake(h ble.Handshake) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handshake = h
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) respond(op protocol.Opcode, resp ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaults[op] = resp
}

func (d *fakeDevice) queue(op protocol.Opcode, resp ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued[op] = append(d.queued[op], resp)
}

func (d *fakeDevice) fail(op protocol.Opcode, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[op] = err
}

func (d *fakeDevice) disconnect() {
	d.mu.Lock()
	var fns []func()
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (d *fakeDevice) ops() []protocol.Opcode {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]protocol.Opcode, len(d.calls))
	for i, c := range d.calls {
		ops[i] = c.op
	}
	return ops
}

func (d *fakeDevice) lastCall(op protocol.Opcode) (call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.calls) - 1; i >= 0; i-- {
		if d.calls[i].op == op {
			return d.calls[i], true
		}
	}
	return call{}, false
}

func (d *fakeDevice) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

func newTestFireplace(t *testing.T, features Features) (*Fireplace, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	opts := DefaultOptions()
	opts.Features = features
	opts.Password = "1234"
	return New(dev, opts), dev
}

// allFeatures enables every capability.
var allFeatures = Features{Aux: true, Blower: true, LEDLights: true, NightLight: true, SplitFlow: true, Timer: true}

func assertOps(t *testing.T, dev *fakeDevice, want ...protocol.Opcode) {
	t.Helper()
	got := dev.ops()
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
}

func assertParam(t *testing.T, dev *fakeDevice, op protocol.Opcode, want ...byte) {
	t.Helper()
	c, ok := dev.lastCall(op)
	if !ok {
		t.Fatalf("%v was never sent", op)
	}
	if !bytes.Equal(c.param, want) {
		t.Errorf("%v param = %x, want %x", op, c.param, want)
	}
}
