package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/fixtures"
	"github.com/faciam-dev/docform/internal/logger"
)

func newWatchCmd() *cobra.Command {
	var (
		metricsAddr string
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Validate a fixture directory and reload it on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			mem, err := fixtures.Memory(dir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Loaded %s\n", dir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := fixtures.NewWatcher(dir, mem, debounce,
				fixtures.WithLogger(logger.L),
				fixtures.WithOnReload(func(s *fixtures.Set, err error) {
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "reload failed, keeping previous fixtures: %v\n", err)
						return
					}
					docs := 0
					for _, rs := range s.Documents {
						docs += len(rs)
					}
					fmt.Fprintf(w, "Reloaded %d doctypes, %d documents\n", len(s.DocTypes), docs)
				}))
			stopWatch, err := watcher.Start(ctx)
			if err != nil {
				return err
			}
			defer stopWatch()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.L.Errorw("metrics server", "addr", metricsAddr, "error", err)
						stop()
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				logger.L.Infow("serving metrics", "addr", metricsAddr)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Quiet period before a reload")
	return cmd
}
