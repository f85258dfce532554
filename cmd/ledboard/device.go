package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/ledboard/config"
	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/view"
	"github.com/spf13/cobra"
)

// target is a board resolved from --device or a config file.
type target struct {
	url     string
	headers map[string]string
	timeout time.Duration
	labels  view.Labels
	title   string
}

// addDeviceFlags registers the flags shared by the terminal commands.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("device", "d", "", "device base URL, e.g. http://192.168.1.50")
	cmd.Flags().StringP("config", "c", "", "read the device from a config file")
	cmd.Flags().Duration("timeout", device.DefaultTimeout, "per-request timeout")
	cmd.MarkFlagsMutuallyExclusive("device", "config")
}

func resolveTarget(cmd *cobra.Command) (target, error) {
	deviceURL, _ := cmd.Flags().GetString("device")
	configFile, _ := cmd.Flags().GetString("config")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	t := target{
		url:     deviceURL,
		timeout: timeout,
		labels:  view.DefaultLabels(),
		title:   "LED Board",
	}

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return target{}, fmt.Errorf("failed to load config: %w", err)
		}
		t.url = cfg.Device.URL
		t.headers = cfg.Device.Headers
		if !cmd.Flags().Changed("timeout") {
			t.timeout = cfg.Device.Timeout.Duration()
		}
		if cfg.Labels.On != "" {
			t.labels = view.Labels{On: cfg.Labels.On, Off: cfg.Labels.Off}
		}
		if cfg.Title != "" {
			t.title = cfg.Title
		}
	}

	if t.url == "" {
		return target{}, errors.New("either --device or --config is required")
	}
	return t, nil
}

func (t target) client() (*device.Client, error) {
	return device.NewClient(t.url,
		device.WithHeaders(t.headers),
		device.WithTimeout(t.timeout),
	)
}
