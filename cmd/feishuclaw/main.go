// feishuclaw runs a Feishu/Lark channel: it connects to the platform event
// stream, filters inbound messages through the access policies and logs
// every message that would be handed to an application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/feishuclaw/pkg/api"
	"github.com/sipeed/feishuclaw/pkg/app"
	"github.com/sipeed/feishuclaw/pkg/config"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

const stopTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("feishuclaw", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "feishuclaw.yaml", "path to the YAML config file (optional, env FEISHUCLAW_* overrides)")
	flagSet.StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "Usage: feishuclaw [flags]")
		flagSet.PrintDefaults()
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.NewFeishuChannel(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	return serve(ctx, c)
}

func serve(ctx context.Context, c *app.Container) error {
	if err := c.Channel.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		c.Channel.Stop(stopCtx)
	}()

	if c.Config.Monitor.Enabled {
		srv := api.NewServer(c.Config.Monitor, c.Kernel)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
		defer srv.Stop()
	}

	out := make(chan channel.InboundMessage, c.Config.Channel.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(out)
		return c.Channel.Listen(gctx, out)
	})
	g.Go(func() error {
		for msg := range out {
			logger.InfoCF("feishuclaw", "Message delivered", map[string]interface{}{
				"id":        msg.ID,
				"sender":    msg.Sender,
				"chat_id":   msg.ChatID,
				"chat_kind": msg.ChatKind.String(),
				"content":   msg.Content,
			})
		}
		return nil
	})

	logger.InfoCF("feishuclaw", "Channel running", map[string]interface{}{
		"mode":         string(c.Config.Feishu.ConnectionMode),
		"capabilities": c.Kernel.Names(),
	})
	err := g.Wait()
	logger.InfoC("feishuclaw", "Shutting down")
	return err
}
