// Command mindtrail runs the MindTrail reflection service and a terminal
// client for it.
package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/mindtrail-backend/internal/client"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

var version = "dev"

type rootOptions struct {
	configPath string
	serverURL  string
	token      string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mindtrail",
		Short:         "MindTrail reflection service and client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("MINDTRAIL_CONFIG"), "path to a YAML config file (server commands)")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("MINDTRAIL_SERVER", client.DefaultBaseURL), "MindTrail API base URL (client commands)")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MINDTRAIL_TOKEN"), "bearer token (client commands)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log client activity to stderr")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newCaptureCmd(opts),
		newWatchCmd(opts),
		newTemplatesCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// clientLogger stays silent unless --verbose, so command output is not interleaved with logs.
func (o *rootOptions) clientLogger() (*logger.Logger, error) {
	if !o.verbose {
		return logger.Nop(), nil
	}
	return logger.NewWithSinks("development", os.Stderr, os.Stderr)
}

func (o *rootOptions) apiClient(log *logger.Logger) (*client.Client, error) {
	return client.New(log, client.Config{BaseURL: o.serverURL, Token: o.token})
}

// tracedContext tags outbound requests with a fresh trace id.
func tracedContext(ctx context.Context) (context.Context, string) {
	traceID := observability.NewTraceID()
	return ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: traceID}), traceID
}
