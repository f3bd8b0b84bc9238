package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pricealert/internal/application/service"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/storage"
	"pricealert/internal/infrastructure/svc"
)

func newAlertsCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage alerts directly against storage",
		Long: `alerts edits the alert store without going through the HTTP API. Feeds
for new alerts are picked up by the running feed process on its next
reconcile.`,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "output in JSON format")

	cmd.AddCommand(newAlertsCreateCmd(app, &asJSON))
	cmd.AddCommand(newAlertsListCmd(app, &asJSON))
	cmd.AddCommand(newAlertsDeleteCmd(app))
	return cmd
}

func newAlertsCreateCmd(app *App, asJSON *bool) *cobra.Command {
	var in service.CreateAlertInput
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an alert",
		Example: `  pricealert alerts create --symbol btc --condition ">" --price 70000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, closeFn, err := openAlertService(app)
			if err != nil {
				return err
			}
			defer closeFn()

			a, err := alerts.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cmd, a)
			}
			printAlerts(cmd, []domain.AlertCondition{*a})
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Symbol, "symbol", "", "instrument, e.g. btc")
	cmd.Flags().StringVar(&in.Condition, "condition", "", `">" or "<"`)
	cmd.Flags().Float64Var(&in.Price, "price", 0, "threshold price")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("condition")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newAlertsListCmd(app *App, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, closeFn, err := openAlertService(app)
			if err != nil {
				return err
			}
			defer closeFn()

			all, err := alerts.List(cmd.Context())
			if err != nil {
				return err
			}
			if *asJSON {
				if all == nil {
					all = []domain.AlertCondition{}
				}
				return printJSON(cmd, all)
			}
			printAlerts(cmd, all)
			return nil
		},
	}
}

func newAlertsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, closeFn, err := openAlertService(app)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := alerts.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

// openAlertService 只打开存储，不建立行情连接和通知通道
func openAlertService(app *App) (*service.AlertService, func(), error) {
	cfg := app.Config
	repo, err := storage.Open(storage.Options{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLite.Path,
		PostgresDSN: cfg.Storage.Postgres.DSN,
	})
	if err != nil {
		return nil, nil, err
	}
	registry := service.NewSymbolRegistry(repo, cfg.Instruments())
	// 不订阅，运行中的 feed 进程 reconcile 时接管
	alerts := service.NewAlertService(repo, registry, svc.BuildQuotes(cfg, nil), nil)
	return alerts, func() { _ = repo.Close() }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAlerts(cmd *cobra.Command, all []domain.AlertCondition) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tCONDITION\tPRICE\tSTATUS\tCREATED")
	for _, a := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\n",
			a.ID, a.Instrument, a.Comparator, a.Threshold, a.Status, a.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
