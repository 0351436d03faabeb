package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/shiplite/internal/server"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import unfulfilled orders of one shop",
	RunE:  runSync,
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage shop credentials",
}

var tenantRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Store the Admin API access token of a shop",
	RunE:  runTenantRegister,
}

func init() {
	syncCmd.Flags().String("shop", "", "shop domain, e.g. acme.myshopify.com")
	_ = syncCmd.MarkFlagRequired("shop")

	tenantRegisterCmd.Flags().String("shop", "", "shop domain, e.g. acme.myshopify.com")
	tenantRegisterCmd.Flags().String("token", "", "Admin API access token")
	tenantRegisterCmd.Flags().String("scope", "", "granted access scopes")
	_ = tenantRegisterCmd.MarkFlagRequired("shop")
	_ = tenantRegisterCmd.MarkFlagRequired("token")

	tenantCmd.AddCommand(tenantRegisterCmd)
	rootCmd.AddCommand(serveCmd, syncCmd, tenantCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	fs, err := a.fulfillmentService()
	if err != nil {
		return err
	}

	a.logger.Info("Starting Shiplite",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.String("rate_provider", a.cfg.RateProvider),
		zap.String("database", a.cfg.DatabaseDriver),
	)

	srv := server.New(server.Config{Port: a.cfg.Port}, server.Deps{
		Sync:        a.syncService(),
		Fulfillment: fs,
		Orders:      a.orders,
		Settings:    a.settings,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	shop, _ := cmd.Flags().GetString("shop")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	start := time.Now()
	res, err := a.syncService().SyncOrders(cmd.Context(), shop)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d, failed %d (%s)\n", res.Imported, res.Failed, time.Since(start).Round(time.Millisecond))
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %s (%s): %v\n", f.OrderNumber, f.ExternalID, f.Err)
	}
	return nil
}

func runTenantRegister(cmd *cobra.Command, args []string) error {
	shop, _ := cmd.Flags().GetString("shop")
	token, _ := cmd.Flags().GetString("token")
	scope, _ := cmd.Flags().GetString("scope")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.resolver.Register(cmd.Context(), shop, token, scope); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", shop)
	return nil
}
