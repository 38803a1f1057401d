// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package netmgr owns the node's two-role state machine. The controller
// decides whether the device provisions locally or uploads telemetry,
// drives every transition between the roles, and performs the bounded
// connection and reconnection attempts.
//
// Transitions are triggered from three places: boot-time configuration
// load, the supervisory link check, and the operator reset press. A single
// mutex serializes them, so the role and credentials have exactly one
// writer even if the trigger contexts ever overlap.
package netmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/pkg/metrics"
	"github.com/wxnode/weather-node/status"
)

const linkEventBuffer = 8

// LinkEvent tells the telemetry cycle that the link came up or went down.
// An up event carries the credentials the link was established with so the
// cycle can aim its uplink at the right server.
type LinkEvent struct {
	Up    bool
	Creds interfaces.Credentials
}

// ScanStatus is the lifecycle of the background network discovery scan
// feeding the portal's network picker.
type ScanStatus int

const (
	// ScanIdle means no scan has been requested yet.
	ScanIdle ScanStatus = iota
	// ScanRunning means a scan is in progress.
	ScanRunning
	// ScanDone means the last scan completed (possibly with no networks).
	ScanDone
	// ScanFailed means the last scan returned an error.
	ScanFailed
)

// Registrar performs the one-shot device registration after a successful
// connection.
type Registrar interface {
	Register(ctx context.Context, account string) error
}

// RegistrarFactory builds a registrar aimed at the given server address.
type RegistrarFactory func(serverAddress string) Registrar

// Portal is the local provisioning portal collaborator. It is started on
// every provisioning entry and must be fully stopped before a station
// attempt begins, since portal and station cannot own the radio at once.
type Portal interface {
	Start() error
	Stop(ctx context.Context) error
}

// PortalFactory builds a portal bound to this controller.
type PortalFactory func(c *Controller) Portal

// Config carries the controller's tunables.
type Config struct {
	APSSID           string
	APPassword       string
	ConnectTimeout   time.Duration // bounded wait for a fresh connection
	ReconnectTimeout time.Duration // bounded wait for link recovery
	PollInterval     time.Duration // link status polling rate during waits
	ScanTimeout      time.Duration // bound on a discovery scan
}

// Controller is the network role controller.
type Controller struct {
	cfg        Config
	store      interfaces.ConfigStore
	radio      interfaces.Radio
	signal     status.Signal
	newPortal  PortalFactory
	registrars RegistrarFactory

	mu     sync.Mutex
	role   interfaces.Role
	creds  interfaces.Credentials
	portal Portal

	events chan LinkEvent

	scanMu      sync.Mutex
	scanStatus  ScanStatus
	scanResults []interfaces.Network
}

// NewController creates a role controller. The portal factory may be nil
// in tests that never enter provisioning.
func NewController(cfg Config, store interfaces.ConfigStore, radio interfaces.Radio, signal status.Signal, registrars RegistrarFactory, newPortal PortalFactory) *Controller {
	return &Controller{
		cfg:        cfg,
		store:      store,
		radio:      radio,
		signal:     signal,
		newPortal:  newPortal,
		registrars: registrars,
		events:     make(chan LinkEvent, linkEventBuffer),
	}
}

// Role returns the current device role.
func (c *Controller) Role() interfaces.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Credentials returns a snapshot of the runtime credential set.
func (c *Controller) Credentials() interfaces.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// Events returns the link event channel consumed by the telemetry cycle.
func (c *Controller) Events() <-chan LinkEvent {
	return c.events
}

// Boot loads the persisted configuration and picks the initial role. A
// complete credential set persisted as configured leads to a connection
// attempt; anything else (including a store read failure, which is local
// and non-fatal) leads to provisioning. The returned error is fatal: it
// means the local access point could not be started.
func (c *Controller) Boot(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	role, creds, err := c.store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("Configuration load failed, using in-memory defaults")
		role, creds = interfaces.RoleUnconfigured, interfaces.Credentials{}
	}

	if role == interfaces.RoleConfigured && creds.Complete() {
		logger.Info().Str("ssid", creds.SSID).Str("server", creds.ServerAddress).
			Msg("Stored configuration found, connecting")
		if c.connectLocked(ctx, creds, "boot") {
			return nil
		}
		logger.Warn().Msg("Stored configuration unreachable, reverting to provisioning")
		c.clearStoreLocked()
		return c.enterProvisioningLocked(ctx)
	}

	logger.Info().Msg("No usable configuration, starting provisioning")
	c.clearStoreLocked()
	return c.enterProvisioningLocked(ctx)
}

// SubmitCredentials is the single external submission event from the
// portal. It stops the portal, attempts a fresh connection, persists the
// credential set on success, and re-enters provisioning on failure. The
// returned error is fatal (access point restart failure).
func (c *Controller) SubmitCredentials(ctx context.Context, creds interfaces.Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger.Info().Str("ssid", creds.SSID).Str("account", creds.Account).
		Str("server", creds.ServerAddress).Msg("Credentials submitted")

	c.stopPortalLocked(ctx)
	c.radio.StopAccessPoint()

	if c.connectLocked(ctx, creds, "provision") {
		if err := c.store.Save(c.creds); err != nil {
			// Non-fatal: the device runs configured in memory only.
			logger.Warn().Err(err).Msg("Persisting configuration failed, continuing unpersisted")
		}
		return nil
	}

	logger.Warn().Str("ssid", creds.SSID).Msg("Submitted credentials unreachable, re-entering provisioning")
	c.clearStoreLocked()
	return c.enterProvisioningLocked(ctx)
}

// CheckLink is the supervisory check. It runs only while configured: if
// the link is down it attempts recovery for the bounded reconnect window,
// and on failure clears the stored configuration and demotes the device
// back to provisioning. The returned error is fatal.
func (c *Controller) CheckLink(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role != interfaces.RoleConfigured {
		return nil
	}
	if c.radio.Connected() {
		return nil
	}

	logger.Warn().Msg("Link lost, attempting recovery")
	c.signal.Set(status.Connecting)
	metrics.LinkUp.Set(0)

	start := time.Now()
	recovered := false
	if err := c.radio.Reconnect(); err != nil {
		logger.Error().Err(err).Msg("Reconnect request failed")
	} else {
		recovered = c.waitForLink(ctx, c.cfg.ReconnectTimeout)
	}
	metrics.ConnectDuration.Observe(time.Since(start).Seconds())

	if recovered {
		logger.Info().Msg("Link recovered")
		c.signal.Set(status.Connected)
		metrics.LinkUp.Set(1)
		metrics.ConnectAttempts.WithLabelValues("reconnect", "success").Inc()
		return nil
	}

	// Rather than retry forever, self-demote so an operator can supply
	// fresh credentials.
	logger.Warn().Dur("window", c.cfg.ReconnectTimeout).
		Msg("Link recovery failed, demoting to provisioning")
	c.signal.Set(status.Error)
	metrics.ConnectAttempts.WithLabelValues("reconnect", "failure").Inc()
	c.emit(LinkEvent{Up: false})
	c.clearStoreLocked()
	return c.enterProvisioningLocked(ctx)
}

// ForceReprovision is the operator reset action. From the configured role
// it unconditionally clears configuration and jumps to provisioning. From
// the unconfigured role it only pulses the status signal; the portal and
// scan are left untouched. The returned error is fatal.
func (c *Controller) ForceReprovision(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role != interfaces.RoleConfigured {
		logger.Info().Msg("Reset pressed while provisioning, no action")
		c.signal.Pulse(status.Provisioning)
		return nil
	}

	logger.Info().Msg("Reset pressed, forcing provisioning")
	c.emit(LinkEvent{Up: false})
	c.clearStoreLocked()
	c.radio.Disconnect()
	return c.enterProvisioningLocked(ctx)
}

// Shutdown stops the portal and tears the radio down.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPortalLocked(ctx)
	c.radio.StopAccessPoint()
	c.radio.Disconnect()
}

// connectLocked performs one bounded station connection attempt. On
// success it adopts the credentials, fires the one-shot registration and
// emits a link-up event. Caller holds c.mu.
func (c *Controller) connectLocked(ctx context.Context, creds interfaces.Credentials, kind string) bool {
	c.signal.Set(status.Connecting)

	start := time.Now()
	connected := false
	if err := c.radio.Connect(creds.SSID, creds.Password); err != nil {
		logger.Error().Err(err).Str("ssid", creds.SSID).Msg("Connect request failed")
	} else {
		connected = c.waitForLink(ctx, c.cfg.ConnectTimeout)
	}
	metrics.ConnectDuration.Observe(time.Since(start).Seconds())

	if !connected {
		logger.Error().Str("ssid", creds.SSID).Dur("timeout", c.cfg.ConnectTimeout).
			Msg("Connection attempt timed out")
		c.signal.Set(status.Error)
		metrics.ConnectAttempts.WithLabelValues(kind, "failure").Inc()
		c.radio.Disconnect()
		c.setRoleLocked(interfaces.RoleUnconfigured)
		c.creds.SSID, c.creds.Password = "", ""
		return false
	}

	c.creds = creds
	c.setRoleLocked(interfaces.RoleConfigured)
	c.signal.Set(status.Connected)
	metrics.LinkUp.Set(1)
	metrics.ConnectAttempts.WithLabelValues(kind, "success").Inc()
	logger.Info().Str("ssid", creds.SSID).Msg("Link established")

	c.registerLocked(ctx)
	c.emit(LinkEvent{Up: true, Creds: creds})
	return true
}

// registerLocked fires the one-shot registration for the connection just
// established. The outcome is never silent: success and failure both log
// and signal, but a failed registration does not undo the connection.
func (c *Controller) registerLocked(ctx context.Context) {
	if c.registrars == nil {
		return
	}
	registrar := c.registrars(c.creds.ServerAddress)
	if err := registrar.Register(ctx, c.creds.Account); err != nil {
		logger.Error().Err(err).Msg("Device registration failed")
		c.signal.Pulse(status.Error)
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
}

// waitForLink polls the radio until it reports a link, the bounded window
// expires, or ctx is done.
func (c *Controller) waitForLink(ctx context.Context, window time.Duration) bool {
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if c.radio.Connected() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// enterProvisioningLocked starts the provisioning role: access point up,
// portal serving, background scan running. An access point or portal
// startup failure is the one fatal error in the state machine; the caller
// signals it visibly and restarts the device. Caller holds c.mu.
func (c *Controller) enterProvisioningLocked(ctx context.Context) error {
	c.setRoleLocked(interfaces.RoleUnconfigured)
	c.creds.SSID, c.creds.Password = "", ""
	metrics.LinkUp.Set(0)
	c.radio.Disconnect()

	if err := c.radio.StartAccessPoint(c.cfg.APSSID, c.cfg.APPassword); err != nil {
		c.signal.Set(status.Error)
		return fmt.Errorf("%w: %v", errors.ErrAccessPointFailed, err)
	}
	logger.Info().Str("ap_ssid", c.cfg.APSSID).Msg("Access point started")
	c.signal.Set(status.Provisioning)

	if c.newPortal != nil && c.portal == nil {
		portal := c.newPortal(c)
		if err := portal.Start(); err != nil {
			c.signal.Set(status.Error)
			return fmt.Errorf("%w: portal: %v", errors.ErrAccessPointFailed, err)
		}
		c.portal = portal
	}

	c.startScan(ctx)
	return nil
}

// stopPortalLocked shuts the portal down if it is running. Caller holds c.mu.
func (c *Controller) stopPortalLocked(ctx context.Context) {
	if c.portal == nil {
		return
	}
	if err := c.portal.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Portal shutdown failed")
	}
	c.portal = nil
}

// setRoleLocked records a role transition. Caller holds c.mu.
func (c *Controller) setRoleLocked(role interfaces.Role) {
	if c.role == role {
		return
	}
	metrics.RoleTransitions.WithLabelValues(c.role.String(), role.String()).Inc()
	logger.Info().Str("from", c.role.String()).Str("to", role.String()).
		Msg("Role transition")
	c.role = role
}

// clearStoreLocked clears the persisted configuration; a failure here is
// local and non-fatal. Caller holds c.mu.
func (c *Controller) clearStoreLocked() {
	if err := c.store.Clear(); err != nil {
		logger.Warn().Err(err).Msg("Clearing stored configuration failed")
	}
}

// emit sends a link event without ever blocking the state machine.
func (c *Controller) emit(ev LinkEvent) {
	select {
	case c.events <- ev:
	default:
		logger.Warn().Bool("up", ev.Up).Msg("Link event dropped, channel full")
	}
}

// RequestScan starts a background discovery scan unless one is already
// running. The portal calls this whenever it renders with stale results.
func (c *Controller) RequestScan(ctx context.Context) {
	c.startScan(ctx)
}

// startScan launches the asynchronous discovery scan.
func (c *Controller) startScan(ctx context.Context) {
	c.scanMu.Lock()
	if c.scanStatus == ScanRunning {
		c.scanMu.Unlock()
		return
	}
	c.scanStatus = ScanRunning
	c.scanMu.Unlock()

	go func() {
		scanCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ScanTimeout)
		defer cancel()
		if ctx != nil {
			// Detach from the trigger context but still honor process shutdown.
			go func() {
				select {
				case <-ctx.Done():
					cancel()
				case <-scanCtx.Done():
				}
			}()
		}

		networks, err := c.radio.Scan(scanCtx)

		c.scanMu.Lock()
		defer c.scanMu.Unlock()
		if err != nil {
			logger.Warn().Err(err).Msg("Network scan failed")
			c.scanStatus = ScanFailed
			c.scanResults = nil
			return
		}
		logger.Info().Int("networks", len(networks)).Msg("Network scan complete")
		c.scanStatus = ScanDone
		c.scanResults = networks
	}()
}

// ScanResults returns the latest completed scan outcome for the portal's
// network picker.
func (c *Controller) ScanResults() (ScanStatus, []interfaces.Network) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	results := make([]interfaces.Network, len(c.scanResults))
	copy(results, c.scanResults)
	return c.scanStatus, results
}
