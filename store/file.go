// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package store provides the file-backed persistent configuration store.
// It plays the part the NVS namespace plays on the device: a small
// key→value document holding the network name, network secret, account
// identifier, server address, and the persisted role.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wxnode/weather-node/pkg/errors"
	"github.com/wxnode/weather-node/pkg/interfaces"
	"github.com/wxnode/weather-node/pkg/logger"
)

const defaultStorePath = "/var/lib/weather-node/config.json"

// document is the on-disk layout of the configuration store.
type document struct {
	Mode       int    `json:"device_mode"`
	SSID       string `json:"wifi_ssid,omitempty"`
	Password   string `json:"wifi_pass,omitempty"`
	Account    string `json:"username,omitempty"`
	ServerAddr string `json:"server_addr,omitempty"`
}

// FileStore persists device configuration as a JSON document. Writes
// replace the whole document through a rename so a load never observes a
// partially written credential set.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path, creating the parent
// directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = defaultStorePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStoreError("init", fmt.Errorf("create store directory: %w", err))
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the persisted role and credentials. A missing file reports
// an unconfigured device, not an error; an unreadable or corrupt file is
// a StoreError and the caller falls back to in-memory defaults.
func (fs *FileStore) Load() (interfaces.Role, interfaces.Credentials, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return interfaces.RoleUnconfigured, interfaces.Credentials{}, nil
		}
		return interfaces.RoleUnconfigured, interfaces.Credentials{}, errors.NewStoreError("load", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return interfaces.RoleUnconfigured, interfaces.Credentials{}, errors.NewStoreError("load", err)
	}

	role := interfaces.RoleUnconfigured
	if doc.Mode == int(interfaces.RoleConfigured) {
		role = interfaces.RoleConfigured
	}

	return role, interfaces.Credentials{
		SSID:          doc.SSID,
		Password:      doc.Password,
		Account:       doc.Account,
		ServerAddress: doc.ServerAddr,
	}, nil
}

// Save writes the full credential set and marks the role configured.
func (fs *FileStore) Save(creds interfaces.Credentials) error {
	doc := document{
		Mode:       int(interfaces.RoleConfigured),
		SSID:       creds.SSID,
		Password:   creds.Password,
		Account:    creds.Account,
		ServerAddr: creds.ServerAddress,
	}
	if err := fs.write(doc); err != nil {
		return errors.NewStoreError("save", err)
	}
	logger.Info().Str("path", fs.path).Msg("Configuration saved")
	return nil
}

// Clear resets the role to unconfigured and removes all credential fields.
func (fs *FileStore) Clear() error {
	if err := fs.write(document{Mode: int(interfaces.RoleUnconfigured)}); err != nil {
		return errors.NewStoreError("clear", err)
	}
	logger.Info().Str("path", fs.path).Msg("Configuration cleared")
	return nil
}

// write replaces the document atomically via a temp file and rename.
func (fs *FileStore) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
