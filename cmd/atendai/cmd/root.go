package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/atendai/atendai/assistant"
	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/config"
	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/messenger"
	"github.com/atendai/atendai/server"
	"github.com/atendai/atendai/tool"
	"github.com/atendai/atendai/webhook"
	"github.com/atendai/atendai/whmcs"
)

func newRootCmd() *cobra.Command {
	params := &struct {
		Port         int
		DepartmentID int
	}{}

	cmd := &cobra.Command{
		Use:   "atendai",
		Short: "WhatsApp support assistant bridging the ticketing platform, OpenAI and WHMCS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			_ = godotenv.Load()

			conf, err := config.NewRuntimeConfig()
			if err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			if params.Port != 0 {
				conf.Port = params.Port
			}

			logger := mylog.NewLogger(conf.LogLevel, conf.LogHandler)

			store := cache.NewStore(ctx, conf.RedisURL, logger)

			billing := whmcs.NewClient(conf.WHMCSAPIURL, conf.WHMCSIdentifier, conf.WHMCSSecret, store, logger)

			registry := tool.NewRegistry(logger)
			registry.Register(tool.NewInvoicesFunction(billing, logger))
			registry.Register(tool.NewServicesFunction(billing, logger))
			registry.Register(tool.NewTicketFunction(billing, params.DepartmentID, logger))
			if err := registry.HealthCheck(); err != nil {
				return errors.Wrapf(err, "function registry failed health check")
			}

			api := assistant.NewOpenAIAPI(conf.OpenAIAPIKey, conf.OpenAIAssistantID)
			orchestrator := assistant.NewOrchestrator(api, registry, store, logger)

			sender := messenger.NewClient(conf.MessengerAPIURL, conf.MessengerToken, logger)

			webhookHandler := webhook.NewHandler(
				conf.SignatureSecret(),
				conf.WebhookStrictSignature,
				orchestrator,
				sender,
				store,
				logger,
			)

			handler := server.NewHandler(server.Deps{
				Config:   conf,
				Registry: registry,
				Store:    store,
				Webhook:  webhookHandler,
				Logger:   logger,
			})

			addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
			logger.Info("server started", "addr", addr, "functions", registry.Names())
			defer logger.Info("server stopped")

			srv := &http.Server{
				Addr:    addr,
				Handler: handler,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			go func() {
				<-ctx.Done()
				if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&params.Port, "port", "p", 0, "Port to listen on (overrides PORT)")
	cmd.Flags().IntVar(&params.DepartmentID, "department", 0, "WHMCS support department id for new tickets")

	return cmd
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
