// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wxnode/weather-node/netmgr"
	"github.com/wxnode/weather-node/pkg/interfaces"
)

type fakeController struct {
	mu          sync.Mutex
	scanStatus  netmgr.ScanStatus
	networks    []interfaces.Network
	creds       interfaces.Credentials
	submissions []interfaces.Credentials
	scans       int
	submitErr   error
}

func (f *fakeController) SubmitCredentials(_ context.Context, creds interfaces.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, creds)
	return f.submitErr
}

func (f *fakeController) RequestScan(context.Context) {
	f.mu.Lock()
	f.scans++
	f.mu.Unlock()
}

func (f *fakeController) ScanResults() (netmgr.ScanStatus, []interfaces.Network) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanStatus, f.networks
}

func (f *fakeController) Credentials() interfaces.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds
}

func (f *fakeController) submitted() []interfaces.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interfaces.Credentials, len(f.submissions))
	copy(out, f.submissions)
	return out
}

func newTestPortal(ctrl *fakeController, onFatal func(error)) *Portal {
	return New(Config{Addr: "127.0.0.1:0", MDNSName: "test-node", MDNSPort: 80, OnFatal: onFatal}, ctrl)
}

func TestRootRendersScanningPlaceholder(t *testing.T) {
	ctrl := &fakeController{scanStatus: netmgr.ScanRunning}
	p := newTestPortal(ctrl, nil)

	rec := httptest.NewRecorder()
	p.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Scanning for networks") {
		t.Error("scanning placeholder missing")
	}
	if ctrl.scans != 0 {
		t.Error("render during a running scan must not trigger another scan")
	}
}

func TestRootRendersNetworks(t *testing.T) {
	ctrl := &fakeController{
		scanStatus: netmgr.ScanDone,
		networks: []interfaces.Network{
			{SSID: "HomeNet", RSSI: -42, Security: "WPA2_PSK"},
			{SSID: "CafeNet", RSSI: -70, Security: "WPA2_PSK"},
		},
		creds: interfaces.Credentials{ServerAddress: "weather.example.com:8080"},
	}
	p := newTestPortal(ctrl, nil)

	rec := httptest.NewRecorder()
	p.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	for _, want := range []string{"HomeNet", "CafeNet", "weather.example.com:8080"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if ctrl.scans != 1 {
		t.Errorf("scans = %d, want a refresh scan after render", ctrl.scans)
	}
}

func TestRootRendersEmptyAndFailedStates(t *testing.T) {
	tests := []struct {
		name   string
		status netmgr.ScanStatus
		want   string
	}{
		{"no networks", netmgr.ScanDone, "No networks found"},
		{"scan failed", netmgr.ScanFailed, "Scan failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortal(&fakeController{scanStatus: tt.status}, nil)
			rec := httptest.NewRecorder()
			p.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestRootRejectsOtherPaths(t *testing.T) {
	p := newTestPortal(&fakeController{}, nil)
	rec := httptest.NewRecorder()
	p.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func postForm(p *Portal, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	p.handleConnect(rec, req)
	return rec
}

func validForm() url.Values {
	return url.Values{
		"ssid":       {"HomeNet"},
		"pass":       {"secret"},
		"username":   {"alice"},
		"serveraddr": {"weather.example.com:8080"},
	}
}

func TestConnectSubmitsCredentials(t *testing.T) {
	ctrl := &fakeController{}
	p := newTestPortal(ctrl, nil)

	rec := postForm(p, validForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HomeNet") {
		t.Error("response must echo the chosen network")
	}

	// Submission runs asynchronously after the response.
	deadline := time.Now().Add(time.Second)
	for len(ctrl.submitted()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("credentials never submitted")
		}
		time.Sleep(time.Millisecond)
	}

	got := ctrl.submitted()[0]
	want := interfaces.Credentials{
		SSID:          "HomeNet",
		Password:      "secret",
		Account:       "alice",
		ServerAddress: "weather.example.com:8080",
	}
	if got != want {
		t.Errorf("submitted %+v, want %+v", got, want)
	}
}

func TestConnectRejectsInvalidForms(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"missing ssid", func(v url.Values) { v.Del("ssid") }},
		{"missing account", func(v url.Values) { v.Del("username") }},
		{"missing server", func(v url.Values) { v.Del("serveraddr") }},
		{"server without port", func(v url.Values) { v.Set("serveraddr", "weather.example.com") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			p := newTestPortal(ctrl, nil)

			form := validForm()
			tt.mutate(form)
			rec := postForm(p, form)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(ctrl.submitted()) != 0 {
				t.Error("invalid form must not reach the controller")
			}
		})
	}
}

func TestConnectRejectsGet(t *testing.T) {
	p := newTestPortal(&fakeController{}, nil)
	rec := httptest.NewRecorder()
	p.handleConnect(rec, httptest.NewRequest(http.MethodGet, "/connect", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestConnectReportsFatalSubmissionFailure(t *testing.T) {
	fatal := make(chan error, 1)
	ctrl := &fakeController{submitErr: context.DeadlineExceeded}
	p := newTestPortal(ctrl, func(err error) { fatal <- err })

	postForm(p, validForm())

	select {
	case err := <-fatal:
		if err == nil {
			t.Error("nil fatal error reported")
		}
	case <-time.After(time.Second):
		t.Fatal("fatal callback never invoked")
	}
}
