package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rigforge/rigforge/internal/auth"
	"github.com/rigforge/rigforge/internal/builder"
	"github.com/rigforge/rigforge/internal/catalog"
	"github.com/rigforge/rigforge/internal/resilience"
	"github.com/rigforge/rigforge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Auth.JWTSecret == "" {
			return eris.New("jwt secret is required (RIGFORGE_AUTH_JWT_SECRET)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
		if err != nil {
			return err
		}
		authSvc := auth.New(st, tokens, nil, auth.Options{
			CodeTTL:   time.Duration(cfg.Verify.CodeTTLMinutes) * time.Minute,
			SendRate:  rate.Limit(cfg.Verify.SendRatePerMin / 60),
			SendBurst: cfg.Verify.SendBurst,
		})

		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Builder.RetryAttempts
		retry.InitialBackoff = time.Duration(cfg.Builder.RetryBackoffMS) * time.Millisecond
		builderOpts := builder.Options{
			Timeout:       cfg.Builder.Timeout(),
			MaxCandidates: cfg.Builder.MaxCandidates,
			MaxReferences: cfg.Builder.MaxReferences,
			DefaultBudget: cfg.Builder.DefaultBudget,
			BudgetOverrun: cfg.Builder.BudgetOverrun,
			Retry:         retry,
		}

		srv := server.New(st, catalog.New(st), authSvc, tokens, builderOpts, cfg.Server, cfg.AI)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
