package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
)

var (
	configPath string
	baseURL    string
	logLevel   string
	auditFile  string
)

var rootCmd = &cobra.Command{
	Use:   "gosession",
	Short: "goSession CLI - session client and reference auth service",
	Long: `gosession runs the reference authentication service and drives the
session client against it from the command line. Use it to create accounts,
sign in, and inspect session and route-guard decisions.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "client YAML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "auth service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&auditFile, "audit-file", "", "append session audit events to this file as JSON lines")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
}

// newClient builds a session client from --config and the flag overrides.
// The returned func closes the client and any audit file.
func newClient() (*goSession.Client, func(), error) {
	cfg, err := goSession.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logging.New(cfg.Logging)
	b := goSession.New().WithConfig(cfg).WithLogger(log)

	var file *os.File
	if auditFile != "" {
		file, err = os.OpenFile(auditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit file: %w", err)
		}
		cfg.Audit.Enabled = true
		b = b.WithConfig(cfg).WithAuditSink(goSession.MultiSink{
			goSession.NewLogrusSink(logging.Component(log, "audit")),
			goSession.NewJSONWriterSink(file),
		})
	}

	client, err := b.Build()
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}
	return client, func() {
		client.Close()
		if file != nil {
			_ = file.Close()
		}
	}, nil
}
