package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pricealert/internal/infrastructure/svc"
	"pricealert/internal/interfaces/httpapi"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run feeds, evaluator and HTTP API in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), app, roleFeed|roleEvaluate|roleHTTP)
		},
	}
}

func newFeedCmd(app *App) *cobra.Command {
	var noHTTP bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Run market-data feeds and publish ticks to the notification channel",
		Long: `feed keeps the per-instrument streams alive and relays every tick to the
configured channel. It also serves the alert API so new alerts subscribe
their instrument immediately; pass --no-http to disable it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := roleFeed
			if !noHTTP {
				roles |= roleHTTP
			}
			return runProcess(cmd.Context(), app, roles)
		},
	}
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not serve the HTTP API")
	return cmd
}

func newEvaluateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Consume ticks from the notification channel and trigger alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.Channel.Driver == "inproc" {
				return errors.New("evaluate needs a shared channel, set channel.driver to redis or kafka")
			}
			return runProcess(cmd.Context(), app, roleEvaluate)
		},
	}
}

type role uint8

const (
	roleFeed role = 1 << iota
	roleEvaluate
	roleHTTP
)

func runProcess(ctx context.Context, app *App, roles role) error {
	sc, err := svc.New(ctx, app.Config)
	if err != nil {
		return err
	}
	defer sc.Close()

	g, gctx := errgroup.WithContext(ctx)

	if roles&roleEvaluate != 0 {
		g.Go(func() error {
			return sc.RunEvaluator(gctx)
		})
	}
	if roles&roleFeed != 0 {
		if err := sc.StartFeeds(gctx); err != nil {
			// 存储暂不可用时不退出，cron reconcile 会补上
			log.Error().Err(err).Msg("initial feed subscribe failed")
		}
	}
	if roles&roleHTTP != 0 {
		deps := httpapi.Deps{Alerts: sc.AlertService, Started: sc.StartedAt}
		if roles&roleFeed != 0 {
			deps.Feeds = sc.Supervisor
		}
		srv := httpapi.NewServer(app.Config.HTTP.Addr, httpapi.NewRouter(deps))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	log.Info().
		Bool("feed", roles&roleFeed != 0).
		Bool("evaluate", roles&roleEvaluate != 0).
		Bool("http", roles&roleHTTP != 0).
		Str("channel", app.Config.Channel.Driver).
		Msg("pricealert started")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()
	log.Info().Msg("pricealert stopped")
	return err
}
