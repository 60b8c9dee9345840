package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veristream/internal/tui"
)

var watchServer string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a fact-checking session in the terminal",
	Long: `Watch opens an interactive terminal session against a running
veristream server. Paste text or a URL, review the extracted claims,
and follow the verification reasoning as it streams in.

Example:
  veristream watch
  veristream watch --server http://localhost:9000`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchServer, "server", "", "server base URL (default http://<host>:<port> from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	serverURL := watchServer
	if serverURL == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		serverURL = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, tui.Options{
		ServerURL: serverURL,
		Reveal:    cfg.Reveal,
		Logger:    newLogger(),
	})
}
