// Package main provides the Home Energy Management System (HEMS) entry point
// and CLI interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jdboer/hems/scheduler"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (empty = built-in defaults)")
		once       = flag.Bool("once", false, "Run the optimization once, print results and exit")
		serverOnly = flag.Bool("serverOnly", false, "Run only the web server; runs are triggered via API or cron")
		compare    = flag.String("compare", "", "Run a second pass under this objective and print the delta")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config := scheduler.DefaultConfig()
	if *configFile != "" {
		loaded, err := scheduler.LoadConfig(*configFile)
		if err != nil {
			fmt.Println("Error loading configuration:", err)
			os.Exit(1)
		}
		config = loaded
	} else {
		config.SecurityToken = os.Getenv("ENTSOE_SECURITY_TOKEN")
		if err := config.Validate(); err != nil {
			fmt.Println("Invalid default configuration:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Home Energy Management System\n")
	fmt.Printf("  Date range : %s .. %s (%s)\n", config.StartDate, config.EndDate, config.Timezone)
	fmt.Printf("  Resolution : %d min (%d steps/day)\n", config.StepMinutes, config.StepsPerDay())
	fmt.Printf("  Objective  : %s\n", config.Objective)
	fmt.Printf("  Bidding zone: %s\n", config.BiddingZone)
	fmt.Println()

	logger := log.New(os.Stdout, "[HEMS] ", log.LstdFlags)

	if *once || *compare != "" {
		runOnce(config, logger, *compare)
		return
	}

	runServer(config, logger, *serverOnly)
}

// runOnce executes a single run (plus an optional comparison pass under a
// different objective) and prints the per-day table and summary.
func runOnce(config *scheduler.Config, logger *log.Logger, compareObjective string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(config, logger)
	result, err := sched.Run(ctx)
	if err != nil {
		logger.Printf("Run failed: %v", err)
		os.Exit(1)
	}

	printDayTable(result)
	fmt.Println()
	fmt.Print(result.Summary())

	if compareObjective == "" {
		return
	}

	altConfig := *config
	altConfig.Objective = compareObjective
	if err := altConfig.Validate(); err != nil {
		logger.Printf("Comparison objective rejected: %v", err)
		os.Exit(1)
	}

	fmt.Println()
	logger.Printf("Running comparison pass (objective=%s)", compareObjective)
	altResult, err := scheduler.NewScheduler(&altConfig, logger).Run(ctx)
	if err != nil {
		logger.Printf("Comparison run failed: %v", err)
		os.Exit(1)
	}
	fmt.Print(altResult.Summary())

	delta := scheduler.Compare(result, altResult)
	fmt.Println()
	fmt.Printf("Comparison (%s -> %s):\n", config.Objective, compareObjective)
	fmt.Printf("  Import : %+.1f kWh\n", delta.DeltaImportKWh)
	fmt.Printf("  Export : %+.1f kWh\n", delta.DeltaExportKWh)
	fmt.Printf("  Cost   : EUR %+.2f (%+.1f%%)\n", delta.DeltaCost, delta.CostChangePct)
}

// runServer starts the HTTP server and, unless serverOnly is set, kicks off
// one run immediately. It blocks until SIGINT or SIGTERM.
func runServer(config *scheduler.Config, logger *log.Logger, serverOnly bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(config, logger)
	server := scheduler.NewWebServer(sched, logger, config.ServerPort)
	if server == nil {
		logger.Printf("Server port disabled in configuration; use -once for a single run")
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		logger.Printf("Server start failed: %v", err)
		os.Exit(1)
	}

	if !serverOnly {
		go func() {
			if _, err := sched.Run(ctx); err != nil {
				logger.Printf("Initial run failed: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Printf("Running. Press Ctrl+C to stop...")
	<-sigChan
	logger.Printf("Shutdown signal received, stopping...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
	}
	logger.Printf("Stopped")
}

func printDayTable(result *scheduler.RunResult) {
	fmt.Println("┌────────────┬─────────┬──────────┬──────────┬──────────┬──────────┬──────────┐")
	fmt.Println("│    Date    │ Status  │  Import  │  Export  │  Demand  │   Cost   │  Solve   │")
	fmt.Println("│            │         │   (kWh)  │   (kWh)  │   (kWh)  │   (EUR)  │          │")
	fmt.Println("├────────────┼─────────┼──────────┼──────────┼──────────┼──────────┼──────────┤")

	for _, day := range result.Days {
		var imp, exp, dem float64
		dt := 24.0 / float64(len(day.Import))
		for t := range day.Import {
			imp += day.Import[t] * dt
			exp += day.Export[t] * dt
			dem += day.Demand[t] * dt
		}
		fmt.Printf("│ %10s │ %-7s │  %6.1f  │  %6.1f  │  %6.1f  │  %6.2f  │ %8s │\n",
			day.Date.Format("2006-01-02"),
			day.Status,
			imp,
			exp,
			dem,
			day.Cost,
			day.SolveTime.Round(time.Millisecond),
		)
	}
	fmt.Println("└────────────┴─────────┴──────────┴──────────┴──────────┴──────────┴──────────┘")
}

func showHelp() {
	fmt.Println("Home Energy Management System (HEMS) - Rolling-horizon household energy optimization")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Optimizes a household's energy flows over a historical date range, one day at a")
	fmt.Println("  time, with battery and EV state carried forward between days. Day-ahead prices")
	fmt.Println("  come from the ENTSO-E transparency platform, irradiance and temperature from the")
	fmt.Println("  Open-Meteo archive.")
	fmt.Println()
	fmt.Println("  Key Features:")
	fmt.Println("  - Mixed-integer optimization of battery, EV charging and PV curtailment")
	fmt.Println("  - Cost, self-consumption and self-reliance objectives")
	fmt.Println("  - Dutch tariff model with supplier presets and net metering")
	fmt.Println("  - Heat pump thermal simulation driving the electrical load")
	fmt.Println("  - Live battery state seed via Modbus inverter readout")
	fmt.Println("  - Web dashboard with charts and websocket progress")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  hems [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Single run with built-in defaults (last week, Amsterdam)")
	fmt.Println("  hems -once")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  hems -config=config.yaml -once")
	fmt.Println()
	fmt.Println("  # Compare the configured objective against pure cost")
	fmt.Println("  hems -config=config.yaml -compare=cost")
	fmt.Println()
	fmt.Println("  # Web server with API-triggered runs only")
	fmt.Println("  hems -serverOnly")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  hems -help")
}
