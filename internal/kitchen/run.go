package kitchen

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"comandero/internal/kitchen/alert"
	"comandero/internal/kitchen/client"
	"comandero/internal/kitchen/poller"
	"comandero/internal/order/app/core"
	"comandero/internal/xpkg/config"
	"comandero/internal/xpkg/logger"
)

type params struct {
	configPath   string
	baseURL      string
	restaurantID int64
	intervalSec  int
	cfg          *config.Config
}

// Execute runs the kitchen display: a fixed-interval poll loop plus a small
// stdin command reader for marking and hiding tickets.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := parseParams(args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}

	kc := client.New(p.baseURL, p.restaurantID)
	pl := poller.New(kc, alert.NewBell(), time.Duration(p.intervalSec)*time.Second, mylog)

	go readCommands(newCtx, pl, mylog)

	mylog.Action("kitchen_display_started").Info("Kitchen display polling",
		"restaurant_id", p.restaurantID, "interval_sec", p.intervalSec)
	return pl.Run(newCtx)
}

// readCommands accepts "ready <id>" and "hide <id>" lines from the display
// terminal.
func readCommands(ctx context.Context, pl *poller.Poller, mylog logger.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			mylog.Action("command_ignored").Warn("Ticket id must be numeric", "input", fields[1])
			continue
		}

		switch fields[0] {
		case "ready":
			if err := pl.MarkReady(ctx, id); err != nil {
				mylog.Action("mark_ready_failed").Error("Failed to mark ticket ready", err, "order_id", id)
			}
		case "hide":
			pl.Hide(id)
		}
	}
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("kitchen-display", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	baseURL := fs.String("base-url", "", "order service base URL")
	restaurantID := fs.Int64("restaurant-id", 0, "tenant the display belongs to")
	interval := fs.Int("interval", 0, "poll interval in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, errors.New("cannot parse arguments")
	}
	if *showHelp {
		fs.Usage()
		return nil, core.ErrHelp
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	p := &params{
		configPath:   *configPath,
		baseURL:      *baseURL,
		restaurantID: *restaurantID,
		intervalSec:  *interval,
		cfg:          cfg,
	}
	if cfg.Kitchen != nil {
		if p.baseURL == "" {
			p.baseURL = cfg.Kitchen.BaseURL
		}
		if p.restaurantID == 0 {
			p.restaurantID = cfg.Kitchen.RestaurantID
		}
		if p.intervalSec == 0 {
			p.intervalSec = cfg.Kitchen.PollIntervalSec
		}
	}
	if p.baseURL == "" {
		return nil, errors.New("order service base url is required")
	}
	if p.restaurantID <= 0 {
		return nil, errors.New("restaurant-id is required")
	}
	if p.intervalSec <= 0 {
		p.intervalSec = 5
	}
	return p, nil
}
