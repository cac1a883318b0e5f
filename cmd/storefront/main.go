// Command storefront is an interactive terminal client for the storefront
// API. It browses the catalog, signs in, and manages the buyer's cart
// through the gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/storefront/internal/client/account"
	"github.com/utafrali/storefront/internal/client/agent"
	"github.com/utafrali/storefront/internal/client/basket"
	"github.com/utafrali/storefront/internal/client/catalog"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions("storefront", logger.Options{
		Level:  cfg.LogLevel,
		Format: logger.FormatText,
		Writer: os.Stderr,
	})

	agentCfg := agent.DefaultConfig(cfg.APIURL)
	session := account.NewHolder(cfg.Token)
	agentCfg.Token = session.Token
	a, err := agent.New(agentCfg, log)
	if err != nil {
		log.Error("failed to create api agent", slog.String("error", err.Error()))
		os.Exit(1)
	}
	session.SetGateway(account.NewHTTPGateway(a))

	state := catalog.NewState(catalog.NewHTTPGateway(a))
	if cfg.PageSize != state.Params().PageSize {
		state.SetProductParams(catalog.ParamsPatch{PageSize: &cfg.PageSize})
	}
	cart := basket.NewStore(basket.NewHTTPGateway(a))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repl := NewREPL(state, cart, session, os.Stdout, log)
	fmt.Fprintf(os.Stdout, "storefront at %s, type help for commands\n", cfg.APIURL)
	_ = repl.Boot(ctx)

	if err := repl.Run(ctx, os.Stdin); err != nil {
		log.Error("read input", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
