package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/domain"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// errDaemonDown is returned when a command needs the daemon and it is not
// reachable.
var errDaemonDown = errors.New("daemon not running (run 'storefront start' first)")

// daemonError is the JSON error body written by the daemon.
type daemonError struct {
	Message string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details"`
	Fields  []domain.FieldError `json:"fields"`
}

func (e *daemonError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	for _, f := range e.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Rule)
	}
	return msg
}

func resolveDaemonAddr() string {
	cfg, err := config.Load()
	if err != nil {
		return defaultDaemonAddr
	}
	return cfg.BaseURL()
}

// call sends a JSON request to the daemon and decodes a JSON response into
// out when out is non-nil.
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, daemonAddr+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return errDaemonDown
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		derr := &daemonError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(derr); err != nil || derr.Message == "" {
			derr.Message = resp.Status
		}
		return derr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	resp, err := httpClient.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
