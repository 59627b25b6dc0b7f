package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"memorypal/keeper/internal/capture"
	"memorypal/keeper/internal/orchestrate"
)

var (
	serveQuiet           bool
	serveRecoverInterval time.Duration
	serveDrainInterval   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline consumer until interrupted",
	Long: "Recovers fallback stubs, drains the queued backlog, then processes tasks as they are announced on the bus " +
		"and re-checks the queue every --drain-interval. " +
		"Stubs saved while the store was unavailable are retried periodically.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := newPipeline(ctx, a)
		if err != nil {
			return err
		}
		defer p.Close()

		recoverStubs(ctx, p.producer, a)

		consumer := orchestrate.NewConsumer(p.orch, p.queue, p.bus, a.log)
		consumer.DrainInterval = serveDrainInterval
		if !serveQuiet {
			consumer.OnResult = printResult
			fmt.Printf("serving %s (bus: %s), ctrl-c to stop\n", a.store.Path, busType(a))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
		if serveRecoverInterval > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(serveRecoverInterval)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						recoverStubs(gctx, p.producer, a)
					}
				}
			})
		}
		return g.Wait()
	},
}

func recoverStubs(ctx context.Context, producer *capture.Producer, a *app) {
	n, err := producer.RecoverStubs(ctx)
	if err != nil {
		a.log.Warn("recovering fallback stubs", "error", err)
		return
	}
	if n > 0 {
		a.log.Info("recovered fallback stubs", "count", n)
	}
}

func busType(a *app) string {
	if a.cfg.Bus.Type == "" {
		return "local"
	}
	return a.cfg.Bus.Type
}

func init() {
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "Do not print per-task results")
	serveCmd.Flags().DurationVar(&serveDrainInterval, "drain-interval", 5*time.Second, "How often to check the queue for tasks from other processes (0 disables)")
	serveCmd.Flags().DurationVar(&serveRecoverInterval, "recover-interval", time.Minute, "How often to retry fallback stubs (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
