// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package portal serves the local configuration portal while the device is
// provisioning. It renders the network picker from the controller's latest
// scan, accepts exactly one credential submission, and advertises itself
// over mDNS so the operator can reach it by name. Requests are handled
// synchronously and rate limited; the portal is fully stopped before any
// station connection attempt begins.
package portal

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/grandcat/zeroconf"
	"github.com/wxnode/weather-node/netmgr"
	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	mdnsService   = "_http._tcp"
	mdnsDomain    = "local."
	submitTimeout = 60 * time.Second
)

// Controller is the portal's view of the role controller.
type Controller interface {
	SubmitCredentials(ctx context.Context, creds interfaces.Credentials) error
	RequestScan(ctx context.Context)
	ScanResults() (netmgr.ScanStatus, []interfaces.Network)
	Credentials() interfaces.Credentials
}

// Config carries the portal's tunables.
type Config struct {
	Addr     string // listen address, e.g. ":80"
	MDNSName string // mDNS instance name, e.g. "weather-node-config"
	MDNSPort int

	// OnFatal is invoked when a submission escalates into a fatal
	// controller error (access point restart failure).
	OnFatal func(error)
}

// Portal is the provisioning web portal.
type Portal struct {
	cfg      Config
	ctrl     Controller
	server   *http.Server
	listener net.Listener
	mdns     *zeroconf.Server
	limiter  *rate.Limiter
	validate *validator.Validate
}

// submission is the configuration form contract.
type submission struct {
	SSID          string `validate:"required"`
	Password      string
	Account       string `validate:"required"`
	ServerAddress string `validate:"required,hostname_port"`
}

// New creates a portal bound to the controller.
func New(cfg Config, ctrl Controller) *Portal {
	p := &Portal{
		cfg:      cfg,
		ctrl:     ctrl,
		limiter:  rate.NewLimiter(10, 20),
		validate: validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.rateLimited(p.handleRoot))
	mux.HandleFunc("/style.css", p.rateLimited(p.handleCSS))
	mux.HandleFunc("/connect", p.rateLimited(p.handleConnect))

	p.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return p
}

// Start begins serving and advertises the portal over mDNS. A listen
// failure is returned to the controller, which treats it as fatal.
func (p *Portal) Start() error {
	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return errors.NewPortalError("start", err)
	}
	p.listener = ln

	go func() {
		if err := p.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Portal server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Provisioning portal started")

	// mDNS advertisement failure is logged, not fatal: the portal is
	// still reachable by address.
	mdns, err := zeroconf.Register(p.cfg.MDNSName, mdnsService, mdnsDomain, p.cfg.MDNSPort, nil, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS registration failed")
	} else {
		p.mdns = mdns
		logger.Info().Str("name", p.cfg.MDNSName).Msg("mDNS responder started")
	}

	return nil
}

// Stop shuts the portal down, waiting for in-flight requests.
func (p *Portal) Stop(ctx context.Context) error {
	if p.mdns != nil {
		p.mdns.Shutdown()
		p.mdns = nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return errors.NewPortalError("shutdown", err)
	}
	logger.Info().Msg("Provisioning portal stopped")
	return nil
}

// rateLimited wraps a handler with the shared request limiter.
func (p *Portal) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.limiter.Allow() {
			logger.Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).
				Msg("Portal rate limit exceeded")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// pickerData feeds the index template.
type pickerData struct {
	ServerAddress string
	Scanning      bool
	ScanFailed    bool
	Empty         bool
	Networks      []interfaces.Network
}

// handleRoot renders the configuration page with the network picker. Any
// render with stale results triggers a fresh scan so the picker converges.
func (p *Portal) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.PortalRequests.WithLabelValues("/").Inc()

	scanStatus, networks := p.ctrl.ScanResults()
	data := pickerData{
		ServerAddress: p.ctrl.Credentials().ServerAddress,
		Scanning:      scanStatus == netmgr.ScanRunning,
		ScanFailed:    scanStatus == netmgr.ScanFailed,
		Empty:         scanStatus == netmgr.ScanDone && len(networks) == 0,
		Networks:      networks,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		logger.Error().Err(err).Msg("Portal page render failed")
	}

	// Failed or empty results and every completed render warrant a fresh
	// scan for the next page load.
	if scanStatus != netmgr.ScanRunning {
		p.ctrl.RequestScan(r.Context())
	}
}

// handleCSS serves the portal stylesheet.
func (p *Portal) handleCSS(w http.ResponseWriter, r *http.Request) {
	metrics.PortalRequests.WithLabelValues("/style.css").Inc()
	w.Header().Set("Content-Type", "text/css")
	_, _ = w.Write([]byte(styleCSS))
}

// handleConnect accepts the single configuration submission. The response
// commits to asynchronously stopping the portal and attempting the
// connection; the actual transition runs on its own goroutine because the
// portal must be fully down before the station attempt starts.
func (p *Portal) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.PortalRequests.WithLabelValues("/connect").Inc()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form data", http.StatusBadRequest)
		return
	}

	sub := submission{
		SSID:          r.PostFormValue("ssid"),
		Password:      r.PostFormValue("pass"),
		Account:       r.PostFormValue("username"),
		ServerAddress: r.PostFormValue("serveraddr"),
	}
	if err := p.validate.Struct(sub); err != nil {
		logger.Warn().Err(err).Msg("Rejected portal submission")
		http.Error(w, "Missing or invalid form data", http.StatusBadRequest)
		return
	}

	creds := interfaces.Credentials{
		SSID:          sub.SSID,
		Password:      sub.Password,
		Account:       sub.Account,
		ServerAddress: sub.ServerAddress,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := connectTemplate.Execute(w, struct{ SSID string }{SSID: sub.SSID}); err != nil {
		logger.Error().Err(err).Msg("Portal response render failed")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		if err := p.ctrl.SubmitCredentials(ctx, creds); err != nil {
			logger.Error().Err(err).Msg("Provisioning submission failed fatally")
			if p.cfg.OnFatal != nil {
				p.cfg.OnFatal(err)
			}
		}
	}()
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<link rel="stylesheet" href="/style.css">
<title>Weather Node Setup</title>
</head>
<body>
<div class="container">
<h1>Weather Node Setup</h1>
<form method="POST" action="/connect">
<label for="ssid">Network</label>
<select name="ssid" id="ssid" required>
{{- if .Scanning}}
<option value="">Scanning for networks...</option>
{{- else if .ScanFailed}}
<option value="">Scan failed, reload to retry</option>
{{- else if .Empty}}
<option value="">No networks found</option>
{{- else}}
<option value="" disabled selected>-- Select network --</option>
{{- range .Networks}}
<option value="{{.SSID}}">{{.SSID}} ({{.RSSI}} dBm, {{.Security}})</option>
{{- end}}
{{- end}}
</select>
<label for="pass">Password</label>
<input type="password" name="pass" id="pass">
<label for="username">Account</label>
<input type="text" name="username" id="username" required>
<label for="serveraddr">Server address</label>
<input type="text" name="serveraddr" id="serveraddr" value="{{.ServerAddress}}" required>
<button type="submit">Connect</button>
</form>
</div>
</body>
</html>
`))

var connectTemplate = template.Must(template.New("connect").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<link rel="stylesheet" href="/style.css">
<title>Connecting...</title>
</head>
<body>
<div class="container">
<h1>Attempting connection</h1>
<p>Configuration received for network <strong>{{.SSID}}</strong>.</p>
<p>The access point will now shut down and the device will try to join the
selected network. Your device will be disconnected from this portal.</p>
<p>Watch the status light for the result: green means connected, yellow
means the portal is back for another attempt.</p>
</div>
</body>
</html>
`))

const styleCSS = `body {
  font-family: sans-serif;
  background: #f4f6f8;
  margin: 0;
}
.container {
  max-width: 28rem;
  margin: 3rem auto;
  padding: 2rem;
  background: #fff;
  border-radius: 8px;
  box-shadow: 0 1px 4px rgba(0, 0, 0, 0.15);
}
label {
  display: block;
  margin-top: 1rem;
  font-weight: bold;
}
input, select {
  width: 100%;
  padding: 0.5rem;
  margin-top: 0.25rem;
  box-sizing: border-box;
}
button {
  margin-top: 1.5rem;
  padding: 0.6rem 1.5rem;
  background: #2d7dd2;
  color: #fff;
  border: none;
  border-radius: 4px;
  cursor: pointer;
}
`
