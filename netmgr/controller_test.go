// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package netmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wxerrors "github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/status"
)

type fakeRadio struct {
	mu          sync.Mutex
	connectOK   bool
	reconnectOK bool
	connected   bool
	apUp        bool
	apErr       error
	apStarts    int
}

func (r *fakeRadio) Connect(_, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = r.connectOK
	return nil
}

func (r *fakeRadio) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = r.reconnectOK
	return nil
}

func (r *fakeRadio) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
}

func (r *fakeRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *fakeRadio) StartAccessPoint(_, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.apErr != nil {
		return r.apErr
	}
	r.apUp = true
	r.apStarts++
	return nil
}

func (r *fakeRadio) StopAccessPoint() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apUp = false
}

func (r *fakeRadio) Scan(context.Context) ([]interfaces.Network, error) {
	return nil, nil
}

func (r *fakeRadio) HardwareAddr() string { return "02:aa:bb:cc:dd:ee" }

func (r *fakeRadio) dropLink() {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
}

type fakeStore struct {
	mu      sync.Mutex
	role    interfaces.Role
	creds   interfaces.Credentials
	loadErr error
	saves   int
	clears  int
}

func (s *fakeStore) Load() (interfaces.Role, interfaces.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return interfaces.RoleUnconfigured, interfaces.Credentials{}, s.loadErr
	}
	return s.role, s.creds, nil
}

func (s *fakeStore) Save(creds interfaces.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = interfaces.RoleConfigured
	s.creds = creds
	s.saves++
	return nil
}

func (s *fakeStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = interfaces.RoleUnconfigured
	s.creds = interfaces.Credentials{}
	s.clears++
	return nil
}

type fakeSignal struct {
	mu     sync.Mutex
	sets   []status.State
	pulses []status.State
}

func (f *fakeSignal) Set(s status.State) {
	f.mu.Lock()
	f.sets = append(f.sets, s)
	f.mu.Unlock()
}

func (f *fakeSignal) Pulse(s status.State) {
	f.mu.Lock()
	f.pulses = append(f.pulses, s)
	f.mu.Unlock()
}

func (f *fakeSignal) last() status.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sets) == 0 {
		return status.Off
	}
	return f.sets[len(f.sets)-1]
}

type fakeRegistrar struct {
	mu       sync.Mutex
	calls    int
	accounts []string
	err      error
}

func (r *fakeRegistrar) Register(_ context.Context, account string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.accounts = append(r.accounts, account)
	return r.err
}

type fakePortal struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (p *fakePortal) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	return nil
}

func (p *fakePortal) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

type harness struct {
	ctrl      *Controller
	radio     *fakeRadio
	store     *fakeStore
	signal    *fakeSignal
	registrar *fakeRegistrar
	portal    *fakePortal
}

func newHarness(radio *fakeRadio, st *fakeStore) *harness {
	h := &harness{
		radio:     radio,
		store:     st,
		signal:    &fakeSignal{},
		registrar: &fakeRegistrar{},
		portal:    &fakePortal{},
	}
	cfg := Config{
		APSSID:           "Node_Config_AP",
		APPassword:       "12345678",
		ConnectTimeout:   30 * time.Millisecond,
		ReconnectTimeout: 30 * time.Millisecond,
		PollInterval:     time.Millisecond,
		ScanTimeout:      10 * time.Millisecond,
	}
	h.ctrl = NewController(cfg, st, radio, h.signal,
		func(string) Registrar { return h.registrar },
		func(*Controller) Portal { return h.portal })
	return h
}

func storedCreds() interfaces.Credentials {
	return interfaces.Credentials{
		SSID:          "HomeNet",
		Password:      "secret",
		Account:       "alice",
		ServerAddress: "weather.example.com:8080",
	}
}

func TestBootConfiguredConnects(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})

	require.NoError(t, h.ctrl.Boot(context.Background()))

	assert.Equal(t, interfaces.RoleConfigured, h.ctrl.Role())
	assert.Equal(t, 1, h.registrar.calls)
	assert.Equal(t, []string{"alice"}, h.registrar.accounts)
	assert.Equal(t, status.Connected, h.signal.last())
	assert.Zero(t, h.store.clears)
	assert.Zero(t, h.portal.starts)

	select {
	case ev := <-h.ctrl.Events():
		assert.True(t, ev.Up)
		assert.Equal(t, storedCreds(), ev.Creds)
	default:
		t.Fatal("no link-up event emitted")
	}
}

func TestBootUnconfiguredProvisions(t *testing.T) {
	h := newHarness(&fakeRadio{}, &fakeStore{})

	require.NoError(t, h.ctrl.Boot(context.Background()))

	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.True(t, h.radio.apUp, "access point must be up")
	assert.Equal(t, 1, h.portal.starts)
	assert.Equal(t, status.Provisioning, h.signal.last())
	assert.Zero(t, h.registrar.calls)
}

func TestBootUnreachableNetworkFallsBackToProvisioning(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: false},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})

	require.NoError(t, h.ctrl.Boot(context.Background()))

	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.GreaterOrEqual(t, h.store.clears, 1, "stale configuration must be cleared")
	assert.True(t, h.radio.apUp)
	assert.Equal(t, 1, h.portal.starts)
	assert.Zero(t, h.registrar.calls)
}

func TestBootStoreFailureProvisions(t *testing.T) {
	h := newHarness(&fakeRadio{}, &fakeStore{loadErr: errors.New("disk gone")})

	require.NoError(t, h.ctrl.Boot(context.Background()))
	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.True(t, h.radio.apUp)
}

func TestBootAccessPointFailureIsFatal(t *testing.T) {
	h := newHarness(&fakeRadio{apErr: errors.New("driver fault")}, &fakeStore{})

	err := h.ctrl.Boot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wxerrors.ErrAccessPointFailed)
	assert.Equal(t, status.Error, h.signal.last())
}

func TestSubmitCredentialsSuccess(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true}, &fakeStore{})
	require.NoError(t, h.ctrl.Boot(context.Background()))
	drainEvents(h.ctrl)

	require.NoError(t, h.ctrl.SubmitCredentials(context.Background(), storedCreds()))

	assert.Equal(t, interfaces.RoleConfigured, h.ctrl.Role())
	assert.Equal(t, 1, h.portal.stops, "portal must stop before the station attempt")
	assert.False(t, h.radio.apUp, "access point must be down")
	assert.Equal(t, 1, h.store.saves, "credentials must be persisted")
	assert.Equal(t, storedCreds(), h.store.creds)
	assert.Equal(t, 1, h.registrar.calls)

	select {
	case ev := <-h.ctrl.Events():
		assert.True(t, ev.Up)
	default:
		t.Fatal("no link-up event emitted")
	}
}

func TestSubmitCredentialsFailureReprovisions(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: false}, &fakeStore{})
	require.NoError(t, h.ctrl.Boot(context.Background()))

	require.NoError(t, h.ctrl.SubmitCredentials(context.Background(), storedCreds()))

	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.Zero(t, h.store.saves, "failed credentials must not be persisted")
	assert.True(t, h.radio.apUp, "access point must be back up")
	assert.Equal(t, 2, h.portal.starts, "portal must be serving again")
	assert.Empty(t, h.ctrl.Credentials().SSID)
}

func TestCheckLinkNoopWhileProvisioning(t *testing.T) {
	h := newHarness(&fakeRadio{}, &fakeStore{})
	require.NoError(t, h.ctrl.Boot(context.Background()))

	require.NoError(t, h.ctrl.CheckLink(context.Background()))
	assert.Equal(t, 1, h.portal.starts, "no provisioning re-entry")
}

func TestCheckLinkNoopWhileHealthy(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})
	require.NoError(t, h.ctrl.Boot(context.Background()))

	require.NoError(t, h.ctrl.CheckLink(context.Background()))
	assert.Equal(t, 1, h.registrar.calls, "healthy check must not re-register")
	assert.Equal(t, interfaces.RoleConfigured, h.ctrl.Role())
}

func TestCheckLinkRecovers(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true, reconnectOK: true},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})
	require.NoError(t, h.ctrl.Boot(context.Background()))
	h.radio.dropLink()

	require.NoError(t, h.ctrl.CheckLink(context.Background()))

	assert.Equal(t, interfaces.RoleConfigured, h.ctrl.Role())
	assert.True(t, h.radio.Connected())
	assert.Equal(t, status.Connected, h.signal.last())
	assert.Equal(t, 1, h.registrar.calls, "recovery must not re-register")
}

func TestCheckLinkDemotesAfterFailedRecovery(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true, reconnectOK: false},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})
	require.NoError(t, h.ctrl.Boot(context.Background()))
	drainEvents(h.ctrl)
	h.radio.dropLink()

	require.NoError(t, h.ctrl.CheckLink(context.Background()))

	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.GreaterOrEqual(t, h.store.clears, 1)
	assert.True(t, h.radio.apUp)
	assert.Equal(t, 1, h.portal.starts)

	select {
	case ev := <-h.ctrl.Events():
		assert.False(t, ev.Up, "demotion must emit a link-down event")
	default:
		t.Fatal("no link-down event emitted")
	}
}

func TestForceReprovisionFromConfigured(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})
	require.NoError(t, h.ctrl.Boot(context.Background()))
	drainEvents(h.ctrl)

	require.NoError(t, h.ctrl.ForceReprovision(context.Background()))

	assert.Equal(t, interfaces.RoleUnconfigured, h.ctrl.Role())
	assert.GreaterOrEqual(t, h.store.clears, 1)
	assert.True(t, h.radio.apUp)
	assert.False(t, h.radio.Connected())
	assert.Empty(t, h.ctrl.Credentials().SSID)

	select {
	case ev := <-h.ctrl.Events():
		assert.False(t, ev.Up)
	default:
		t.Fatal("no link-down event emitted")
	}
}

func TestForceReprovisionWhileProvisioningOnlyPulses(t *testing.T) {
	h := newHarness(&fakeRadio{}, &fakeStore{})
	require.NoError(t, h.ctrl.Boot(context.Background()))
	clearsBefore := h.store.clears

	require.NoError(t, h.ctrl.ForceReprovision(context.Background()))

	assert.Equal(t, clearsBefore, h.store.clears, "no additional clear")
	assert.Equal(t, 1, h.portal.starts, "portal must be left untouched")
	assert.Contains(t, h.signal.pulses, status.Provisioning)
}

func TestRegistrationFailureKeepsConnection(t *testing.T) {
	h := newHarness(&fakeRadio{connectOK: true},
		&fakeStore{role: interfaces.RoleConfigured, creds: storedCreds()})
	h.registrar.err = errors.New("server rejected device")

	require.NoError(t, h.ctrl.Boot(context.Background()))

	assert.Equal(t, interfaces.RoleConfigured, h.ctrl.Role())
	assert.True(t, h.radio.Connected())
	assert.Contains(t, h.signal.pulses, status.Error)
	assert.Equal(t, status.Connected, h.signal.last())
}

func drainEvents(c *Controller) {
	for {
		select {
		case <-c.Events():
		default:
			return
		}
	}
}
