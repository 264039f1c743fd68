package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("JiConnect server service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	if err := runServer(p.ctx); err != nil && p.svcLogger != nil {
		p.svcLogger.Error(fmt.Sprintf("JiConnect server exited: %v", err))
	}
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}

	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("JiConnect server service stopped gracefully")
		}
	case <-time.After(30 * time.Second):
		if p.svcLogger != nil {
			p.svcLogger.Warning("JiConnect server service stopped with timeout")
		}
	}
	return nil
}

func serviceBaseDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "JiConnect")
	case "darwin":
		return "/Library/Application Support/JiConnect"
	default:
		return "/var/lib/jiconnect"
	}
}

func serviceConfigPath() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return filepath.Join(serviceBaseDir(), "server.toml")
	default:
		return "/etc/jiconnect/server.toml"
	}
}

// getServiceConfig returns the service configuration for the current platform
func getServiceConfig() *service.Config {
	return &service.Config{
		Name:             "JiConnectServer",
		DisplayName:      "JiConnect Server",
		Description:      "JiConnect hotspot voucher server. Sells access vouchers, enrolls them on the MikroTik hotspot and issues receipts.",
		WorkingDirectory: serviceBaseDir(),
		Arguments:        []string{"-service", "run", "-config", serviceConfigPath()},
		Option: service.KeyValue{
			"StartType":              "automatic",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",

			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillSignal":        "SIGTERM",

			"RunAtLoad": true,
			"KeepAlive": true,
		},
	}
}

// setupServiceDirectories creates the data, receipts and log directories and
// a default config file when none exists.
func setupServiceDirectories() error {
	base := serviceBaseDir()
	dirs := []string{
		base,
		filepath.Join(base, "public", "receipts"),
		filepath.Join(base, "logs"),
		filepath.Dir(serviceConfigPath()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := serviceConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Server.PublicDir = filepath.Join(base, "public")
		cfg.Logging.Dir = filepath.Join(base, "logs")
		if err := writeConfigFile(configPath, cfg); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to generate default config at %s: %w", configPath, err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configPath)
	} else {
		fmt.Printf("Configuration already exists at: %s\n", configPath)
	}
	return nil
}

// handleServiceCommand processes service install/uninstall/start/stop/run
func handleServiceCommand(cmd string) error {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch cmd {
	case "install":
		if err := setupServiceDirectories(); err != nil {
			return err
		}
		if err := s.Install(); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to install service: %w", err)
		}
		fmt.Println("Service installed. Use '-service start' to start it.")
	case "uninstall", "start", "stop", "restart":
		if err := service.Control(s, cmd); err != nil {
			return fmt.Errorf("service %s failed: %w", cmd, err)
		}
		fmt.Printf("Service %s: ok\n", cmd)
	case "run":
		return s.Run()
	default:
		return fmt.Errorf("unknown service command %q (install, uninstall, start, stop, restart, run)", cmd)
	}
	return nil
}
