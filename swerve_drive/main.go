package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"swerve-fusion-core/utils"
)

func main() {
	var (
		iface    = flag.String("iface", "", "SocketCAN interface override (default: robot config)")
		robot    = flag.String("robot", "config/robot.yaml", "Path to robot.yaml")
		scenPath = flag.String("scenario", "config/scenarios/figure_sweep_30s.json", "Drive scenario JSON file")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error")
		logFile  = flag.String("logfile", "swerve_drive.log", "Log file path (empty for stdout only)")
	)
	flag.Parse()

	log, err := utils.NewLogger(*logLevel, *logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open log output: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:    *iface,
		RobotPath:    *robot,
		ScenarioPath: *scenPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
