// Copyright (c) Dapkit contributors. All rights reserved.

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dapkit/dapkit/internal/dap"
	"github.com/dapkit/dapkit/internal/telemetry"
	"github.com/dapkit/dapkit/pkg/logger"
)

type runOptions struct {
	adapterName   string
	mode          string
	host          string
	port          uint16
	timeout       time.Duration
	scenarioFile  string
	spawnLocation string
}

func newRunCommand(log *logger.Logger) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- <adapter command> [args...]",
		Short: "Launch or connect to a debug adapter and run a session",
		Long: "Launches the given adapter command (or connects to an already-running adapter when --port is set and no command is given), performs the initialize handshake, optionally starts a scenario, and streams adapter output events until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), opts, args, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.adapterName, "adapter", "adapter", "Name the adapter is registered under")
	flags.StringVar(&opts.mode, "mode", string(dap.AdapterModeStdio), "Adapter transport mode: stdio, tcp-connect or tcp-callback")
	flags.StringVar(&opts.host, "host", "", "Adapter host for TCP modes (defaults to 127.0.0.1)")
	flags.Uint16Var(&opts.port, "port", 0, "Fixed adapter port for TCP modes (0 means discover)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Port discovery and connect timeout (0 means default)")
	flags.StringVar(&opts.scenarioFile, "scenario", "", "Path to a JSON scenario configuration to start")
	flags.StringVar(&opts.spawnLocation, "spawn-location", string(dap.SpawnLocationCustom), "Telemetry spawn location: gutter, scenario_list or custom")

	return cmd
}

func runSession(ctx context.Context, opts *runOptions, adapterArgs []string, log *logger.Logger) error {
	config := &dap.AdapterConfig{
		Name: opts.adapterName,
		Args: adapterArgs,
		Mode: dap.AdapterMode(opts.mode),
		TCP: dap.TCPTemplate{
			Host:    opts.host,
			Port:    opts.port,
			Timeout: opts.timeout,
		},
	}

	registry := dap.NewRegistry()
	registry.Register(config)

	telemetrySystem, telemetryErr := telemetry.NewSystem(nil)
	if telemetryErr != nil {
		return telemetryErr
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetrySystem.Shutdown(shutdownCtx)
	}()

	client, adapter, connectErr := connectAdapter(ctx, opts, config, log)
	if connectErr != nil {
		return connectErr
	}
	defer client.Close()
	if adapter != nil {
		defer adapter.Close()
	}

	scenario, scenarioErr := loadScenario(opts)
	if scenarioErr != nil {
		return scenarioErr
	}

	notifier := dap.NewSessionNotifier(registry, telemetrySystem.SessionSink(), log.Logger)
	notifier.NotifySessionStart(scenario, dap.SpawnLocation(opts.spawnLocation))

	events := make(chan dap.Event, 64)
	client.SubscribeEvents("output", events)
	go printOutputEvents(events)

	initBody, initErr := client.RoundTrip(ctx, "initialize", map[string]any{
		"clientID":        "dapctl",
		"clientName":      "dapctl",
		"adapterID":       opts.adapterName,
		"locale":          "en-US",
		"linesStartAt1":   true,
		"columnsStartAt1": true,
		"pathFormat":      "path",
	})
	if initErr != nil {
		return fmt.Errorf("initialize failed: %w", initErr)
	}
	fmt.Printf("adapter capabilities: %s\n", string(initBody))

	if len(scenario.Config) > 0 {
		kind, kindErr := registry.RequestKind(ctx, scenario)
		if kindErr != nil {
			return kindErr
		}
		if _, startErr := client.RoundTrip(ctx, string(kind), json.RawMessage(scenario.Config)); startErr != nil {
			return fmt.Errorf("%s failed: %w", kind, startErr)
		}
		log.Info("Scenario started", "scenario", scenario.Label, "request", kind)
	}

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, disconnectErr := client.RoundTrip(disconnectCtx, "disconnect", nil); disconnectErr != nil && !errors.Is(disconnectErr, dap.ErrConnectionClosed) {
		log.V(1).Info("Disconnect failed", "error", disconnectErr.Error())
	}

	return nil
}

// connectAdapter launches the adapter command, or dials a running adapter
// when no command was given but a fixed port was.
func connectAdapter(ctx context.Context, opts *runOptions, config *dap.AdapterConfig, log *logger.Logger) (*dap.Client, *dap.LaunchedAdapter, error) {
	if len(config.Args) == 0 {
		if opts.port == 0 {
			return nil, nil, errors.New("either an adapter command or --port is required")
		}

		client, connectErr := dap.Connect(ctx, func(ctx context.Context) (dap.Transport, error) {
			endpoint, resolveErr := dap.ResolveEndpoint(ctx, config.TCP, nil, log.Logger)
			if resolveErr != nil {
				return nil, resolveErr
			}
			return dap.DialEndpoint(ctx, endpoint)
		}, log.Logger)
		return client, nil, connectErr
	}

	adapter, launchErr := dap.LaunchAdapter(ctx, config, log.Logger)
	if launchErr != nil {
		return nil, nil, launchErr
	}

	return dap.NewClient(adapter.Transport, log.Logger), adapter, nil
}

func loadScenario(opts *runOptions) (dap.Scenario, error) {
	scenario := dap.Scenario{
		Label:   "dapctl session",
		Adapter: opts.adapterName,
	}

	if opts.scenarioFile == "" {
		return scenario, nil
	}

	config, readErr := os.ReadFile(opts.scenarioFile)
	if readErr != nil {
		return dap.Scenario{}, fmt.Errorf("failed to read scenario file: %w", readErr)
	}

	scenario.Label = opts.scenarioFile
	scenario.Config = config
	return scenario, nil
}

func printOutputEvents(events <-chan dap.Event) {
	for evt := range events {
		var body struct {
			Category string `json:"category"`
			Output   string `json:"output"`
		}
		if unmarshalErr := json.Unmarshal(evt.Body, &body); unmarshalErr != nil {
			continue
		}
		fmt.Print(body.Output)
	}
}
