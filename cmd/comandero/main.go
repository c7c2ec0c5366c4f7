package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"comandero/internal/kitchen"
	"comandero/internal/order"
	"comandero/internal/order/app/core"
	"comandero/internal/panel"
	"comandero/internal/xpkg/logger"
)

func main() {
	mylogger, err := logger.New("DEBUG")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}

	fs := flag.NewFlagSet("main", flag.ExitOnError)
	mode := fs.String("mode", "", "service to run: order-service | panel-view | kitchen-display")

	// Only parse up to --mode; the rest goes to the selected service.
	args := os.Args[1:]
	modeArgs := []string{}
	for i, arg := range args {
		if strings.HasPrefix(arg, "--mode") || strings.HasPrefix(arg, "-mode") {
			modeArgs = args[:i+1]
			break
		}
	}
	if err := fs.Parse(modeArgs); err != nil {
		mylogger.Action("comandero_failed").Error("Failed to parse flags", err)
		help(fs)
		return
	}
	if *mode == "" {
		mylogger.Action("comandero_failed").Error("Failed to start", errors.New("mode flag is required"))
		help(fs)
		return
	}

	remainingArgs := args[len(modeArgs):]

	ctx := context.Background()
	switch *mode {
	case "order-service", "os":
		l := mylogger.With("service", "order-service")
		l.Action("order_service_started").Info("Successfully started")
		if err := order.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("order_service_failed").Error("Error in order-service", err)
			if !errors.Is(err, core.ErrHelp) {
				os.Exit(1)
			}
		}

	case "panel-view", "pv":
		l := mylogger.With("service", "panel-view")
		l.Action("panel_view_started").Info("Successfully started")
		if err := panel.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("panel_view_failed").Error("Error in panel-view", err)
			if !errors.Is(err, core.ErrHelp) {
				os.Exit(1)
			}
		}

	case "kitchen-display", "kd":
		l := mylogger.With("service", "kitchen-display")
		l.Action("kitchen_display_started").Info("Successfully started")
		if err := kitchen.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("kitchen_display_failed").Error("Error in kitchen-display", err)
			if !errors.Is(err, core.ErrHelp) {
				os.Exit(1)
			}
		}

	default:
		mylogger.Action("comandero_failed").Error("Failed to start", fmt.Errorf("unknown mode: %s", *mode))
		help(fs)
	}
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExample:")
	fmt.Println("  ./comandero --mode=order-service --port=3000")
	fmt.Println("  ./comandero --mode=panel-view --tenant-id=1 --role=admin --status=pendiente")
	fmt.Println("  ./comandero --mode=kitchen-display --restaurant-id=1 --interval=5")
}
