// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package uplink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/telemetry"
)

func newTestClient(serverURL string) *Client {
	addr := strings.TrimPrefix(serverURL, "http://")
	return NewClient(addr, "02:aa:bb:cc:dd:ee", time.Second, time.Second)
}

func TestRegister(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Register(context.Background(), "alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	want := "/alice/add_device/02:aa:bb:cc:dd:ee"
	if gotPath != want {
		t.Errorf("path = %s, want %s", gotPath, want)
	}
}

func TestRegisterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Register(context.Background(), "alice")
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	if !errors.IsTransmitError(err) {
		t.Errorf("expected TransmitError, got %T", err)
	}
}

func TestSendReading(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	temp := 21.5
	payload := &telemetry.Payload{Temperature: &temp, WindSpeed: 12.3, Precipitation: 0.5}
	if err := c.SendReading(context.Background(), payload); err != nil {
		t.Fatalf("SendReading failed: %v", err)
	}

	if want := "/02:aa:bb:cc:dd:ee/data"; gotPath != want {
		t.Errorf("path = %s, want %s", gotPath, want)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["temperature"] != 21.5 {
		t.Errorf("temperature = %v, want 21.5", decoded["temperature"])
	}
}

func TestSendReadingRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.SendReading(context.Background(), &telemetry.Payload{})
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestSendReadingUnreachableServer(t *testing.T) {
	// Reserved TEST-NET address, nothing listens there.
	c := NewClient("192.0.2.1:9", "02:aa:bb:cc:dd:ee", 100*time.Millisecond, 200*time.Millisecond)
	err := c.SendReading(context.Background(), &telemetry.Payload{})
	if err == nil {
		t.Fatal("expected error against unreachable server")
	}
	if !errors.IsTransmitError(err) {
		t.Errorf("expected TransmitError, got %T", err)
	}
}
