package panel

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"comandero/internal/order/adapter/identity"
	"comandero/internal/order/app/core"
	"comandero/internal/panel/client"
	"comandero/internal/panel/reconciler"
	"comandero/internal/panel/subscriber"
	"comandero/internal/xpkg/config"
	"comandero/internal/xpkg/logger"
	pkgmodels "comandero/pkg/models"

	"golang.org/x/sync/errgroup"
)

type params struct {
	configPath string
	baseURL    string
	role       string
	tenantID   int64
	actorID    int64
	status     string
	cfg        *config.Config
}

// Execute runs an authenticated panel surface: one snapshot fetch merged with
// one live change-feed subscription.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := parseParams(args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}

	claims := core.Claims{Role: p.role, TenantID: p.tenantID, ActorID: p.actorID}
	token := identity.Encode(claims)

	baseURL := p.baseURL
	if baseURL == "" && p.cfg.Panel != nil {
		baseURL = p.cfg.Panel.BaseURL
	}
	if baseURL == "" {
		return errors.New("order service base url is required")
	}

	snapClient := client.New(baseURL, token)
	filter := reconciler.Filter{
		TenantID: p.tenantID,
		Role:     p.role,
		ActorID:  p.actorID,
		Status:   p.status,
	}
	rec := reconciler.New(filter, snapClient, mylog)
	sub := subscriber.New(p.cfg.RMQ, mylog)
	defer sub.Teardown()

	key := subscriber.Key{Identity: token, Filter: p.status}

	// Feed first, snapshot second: the insert-dedup rule tolerates overlap
	// between the two, while the reverse order could drop a row committed
	// between snapshot and subscribe. The group scopes startup only; the
	// subscription session stays live until Teardown.
	g, gCtx := errgroup.WithContext(newCtx)
	g.Go(func() error {
		return sub.Subscribe(gCtx, key, func(evCtx context.Context, event pkgmodels.ChangeEvent) {
			rec.Apply(evCtx, event)
			mylog.Action("view_updated").Debug("Panel view reconciled",
				"op", string(event.Op), "order_id", event.OrderID, "rows", len(rec.Orders()))
		})
	})
	g.Go(func() error {
		snapshot, err := snapClient.Snapshot(gCtx, p.status)
		if err != nil {
			return err
		}
		rec.Seed(snapshot)
		mylog.Action("snapshot_seeded").Info("Panel snapshot loaded", "rows", len(snapshot))
		return nil
	})
	if err := g.Wait(); err != nil {
		mylog.Action("panel_failed").Error("Panel startup failed", err)
		return err
	}

	<-newCtx.Done()
	mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
	return nil
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("panel-view", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	baseURL := fs.String("base-url", "", "order service base URL")
	role := fs.String("role", core.RoleAdmin, "panel role: admin | waiter | rider")
	tenantID := fs.Int64("tenant-id", 0, "restaurant id the panel is scoped to")
	actorID := fs.Int64("actor-id", 0, "waiter or rider id for ownership checks")
	status := fs.String("status", "", "optional status display filter")

	if err := fs.Parse(args); err != nil {
		return nil, errors.New("cannot parse arguments")
	}
	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}
	if *tenantID <= 0 {
		return nil, errors.New("tenant-id is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	return &params{
		configPath: *configPath,
		baseURL:    *baseURL,
		role:       *role,
		tenantID:   *tenantID,
		actorID:    *actorID,
		status:     *status,
		cfg:        cfg,
	}, nil
}
