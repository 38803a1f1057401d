// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package uplink is the HTTP client for the remote telemetry endpoint:
// one-shot device registration and periodic telemetry uploads, both with
// bounded connect and response timeouts. Transmission failures are
// surfaced to the caller and never escalate past it.
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/logger"
	"github.com/wxnode/weather-node/telemetry"
)

// Client talks to the configured server on behalf of one device.
type Client struct {
	serverAddress string
	hardwareID    string
	client        *http.Client
}

// NewClient creates an uplink client for the given server address
// ("host:port") and device hardware identifier.
func NewClient(serverAddress, hardwareID string, connectTimeout, responseTimeout time.Duration) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &Client{
		serverAddress: serverAddress,
		hardwareID:    hardwareID,
		client: &http.Client{
			Timeout: responseTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
	}
}

// ServerAddress returns the configured server address.
func (c *Client) ServerAddress() string {
	return c.serverAddress
}

// Register sends the device's hardware identifier to the registration
// endpoint. Called once per successful connection.
func (c *Client) Register(ctx context.Context, account string) error {
	endpoint := fmt.Sprintf("http://%s/%s/add_device/%s", c.serverAddress, account, c.hardwareID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NewTransmitError("register", endpoint, 0, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewTransmitError("register", endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewTransmitError("register", endpoint, resp.StatusCode, nil)
	}

	logger.Info().Str("endpoint", endpoint).Int("status", resp.StatusCode).
		Msg("Device registered")
	return nil
}

// SendReading uploads one telemetry payload to the device-scoped data
// endpoint. At most one attempt per cycle; retrying is the next cycle's
// job.
func (c *Client) SendReading(ctx context.Context, payload *telemetry.Payload) error {
	endpoint := fmt.Sprintf("http://%s/%s/data", c.serverAddress, c.hardwareID)

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewTransmitError("send data", endpoint, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.NewTransmitError("send data", endpoint, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewTransmitError("send data", endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewTransmitError("send data", endpoint, resp.StatusCode, nil)
	}

	logger.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).
		RawJSON("payload", body).Msg("Telemetry sent")
	return nil
}
