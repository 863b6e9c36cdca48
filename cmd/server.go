package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/hostbuddy-notifier/internal/config"
	"github.com/example/hostbuddy-notifier/internal/hospitable"
	"github.com/example/hostbuddy-notifier/internal/router"
	"github.com/example/hostbuddy-notifier/internal/slack"
	"github.com/example/hostbuddy-notifier/internal/web"
	"github.com/example/hostbuddy-notifier/internal/weekthread"
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			loc, err := time.LoadLocation(cfg.Routing.Timezone)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			slackClient := slack.New(cfg.SlackBotToken, cfg.SlackUserToken)
			lookup := hospitable.New(cfg.HospitableToken)
			threads := weekthread.NewLocator(slackClient, cfg.Routing.ReviewChannel, cfg.Routing.ReviewChannelName, loc)

			rt := router.New(cfg.Routing, lookup, slackClient, threads)

			ws := &web.Server{Router: rt, Slack: slackClient, Routing: cfg.Routing}
			return web.Start(ctx, cfg.HTTPAddr, ws.Routes())
		},
	}
}
