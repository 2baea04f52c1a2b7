package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/swordsanddeath/pkg/client"
	"github.com/crystal-mush/swordsanddeath/pkg/server"
)

type options struct {
	addr    string
	version string
	timeout time.Duration
}

var opts options

func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sndcli",
		Short: "Terminal client for Swords and Death",
		Long: `sndcli talks to a Swords and Death server over TCP, or over WebSocket
when the address is a ws:// URL.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.addr, "server", "s", envDefault("SND_SERVER", "localhost:2277"), "Server address or ws:// URL (env: SND_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.version, "client-version", server.AcceptedClientVersion, "Client version to announce")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Connect timeout")

	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newSignupCmd())
	rootCmd.AddCommand(newPlayCmd())
	return rootCmd
}

func dial() (*client.Client, error) {
	return client.Dial(opts.addr, opts.timeout)
}
