package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jpalmerr/ledboard/internal/logging"
	"github.com/jpalmerr/ledboard/internal/simulator"
)

func newSimServer(t *testing.T, opts ...simulator.Option) *httptest.Server {
	t.Helper()
	opts = append([]simulator.Option{
		simulator.WithLogger(logging.Discard()),
		simulator.WithMemorySource(func(context.Context) (float64, error) { return 50, nil }),
	}, opts...)
	ts := httptest.NewServer(simulator.New(opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRunStatus_Device(t *testing.T) {
	ts := newSimServer(t)

	output, err := execute(t, "status", "--device", ts.URL)
	if err != nil {
		t.Fatalf("status command error = %v", err)
	}
	for _, phrase := range []string{"LED Board", "Off", "Bulb is off", "163840 bytes", "Uptime"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunStatus_Config(t *testing.T) {
	ts := newSimServer(t)
	path := writeConfig(t, `
title: Bench Board
device:
  url: `+ts.URL+`
labels:
  on: Lit
  off: Dark
`)

	output, err := execute(t, "status", "-c", path)
	if err != nil {
		t.Fatalf("status command error = %v", err)
	}
	if !strings.Contains(output, "Bench Board") || !strings.Contains(output, "Dark") {
		t.Errorf("output should use config title and labels\nGot: %s", output)
	}
}

func TestRunStatus_DeviceFailure(t *testing.T) {
	ts := newSimServer(t, simulator.WithFailEvery(1))

	_, err := execute(t, "status", "--device", ts.URL)
	if err == nil || !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("status command error = %v, want read failure", err)
	}
}

func TestRunStatus_NoTarget(t *testing.T) {
	_, err := execute(t, "status")
	if err == nil || !strings.Contains(err.Error(), "--device or --config") {
		t.Errorf("status command error = %v, want missing target", err)
	}
}
