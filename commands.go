package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/api"
	"github.com/balakodigital/crm-notifier/internal/api/handlers"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, including the cron endpoint",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	router := api.SetupRouter(a.db, a.dispatcher, a.whatsapp, a.cfg.Location(), a.logger)
	srv := &http.Server{
		Addr:    a.cfg.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Send today's task reminders once and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.dispatcher.Run(cmd.Context(), a.cfg.Cron.Secret)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(handlers.NewCheckTasksResponse(summary))
		},
	}
}

func whatsappStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whatsapp-status",
		Short: "Print the connection state of the WhatsApp instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			wa, err := newWhatsAppClient(cfg, logger)
			if err != nil {
				return err
			}

			status := wa.ConnectionState(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(status); err != nil {
				return err
			}
			if !status.Connected {
				return fmt.Errorf("instance %s is not connected", cfg.WhatsApp.Instance)
			}
			return nil
		},
	}
}
