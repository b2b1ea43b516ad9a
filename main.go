// carbon-pulse — Carbon Intensity Monitoring Pipeline
//
// Usage:
//
//	carbon-pulse init                         # Create starter monitor.yaml
//	carbon-pulse validate monitor.yaml        # Validate monitor spec
//	carbon-pulse seed-zones monitor.yaml      # Load zone reference data
//	carbon-pulse ingest monitor.yaml data.csv # Validate + transform + store a batch
//	carbon-pulse serve monitor.yaml           # Start the query API
//	carbon-pulse summarize monitor.yaml       # Print per-zone rollups
//	carbon-pulse export monitor.yaml          # Archive readings to Parquet/CSV/JSONL
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/internal/cli"
	"github.com/ajosegun/carbon-pulse/pkg/aggregate"
	"github.com/ajosegun/carbon-pulse/pkg/api"
	"github.com/ajosegun/carbon-pulse/pkg/config"
	"github.com/ajosegun/carbon-pulse/pkg/export"
	"github.com/ajosegun/carbon-pulse/pkg/pipeline"
	"github.com/ajosegun/carbon-pulse/pkg/source"
	"github.com/ajosegun/carbon-pulse/pkg/store"
)

func main() {
	// Local deployments keep DSNs and ports in a .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		cli.PrintBanner()
		printUsage()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit(args)
	case "validate":
		err = cmdValidate(args)
	case "seed-zones":
		err = cmdSeedZones(args)
	case "ingest":
		err = cmdIngest(args)
	case "serve":
		err = cmdServe(args)
	case "summarize":
		err = cmdSummarize(args)
	case "export":
		err = cmdExport(args)
	case "version":
		fmt.Printf("carbon-pulse %s\n", cli.Version)
	case "help", "--help", "-h":
		cli.PrintBanner()
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: carbon-pulse <command> [options]

Commands:
  init                           Create a starter monitor.yaml
  validate   <file>              Validate monitor specification
  seed-zones <file>              Load zone reference data into the store
  ingest     <file> <data>       Ingest a readings batch (.csv, .jsonl, glob)
  serve      <file>              Start the query API
  summarize  <file> [hours]      Print per-zone rollups (default window 24h)
  export     <file>              Archive readings per the export block
  version                        Print version

Examples:
  carbon-pulse init
  carbon-pulse validate monitor.yaml
  carbon-pulse seed-zones monitor.yaml
  carbon-pulse ingest monitor.yaml readings/2024-03-01.csv
  carbon-pulse ingest monitor.yaml 'readings/*.jsonl'
  carbon-pulse serve monitor.yaml
  carbon-pulse summarize monitor.yaml 48
  carbon-pulse export monitor.yaml`)
}

func newLogger() *zap.Logger {
	if os.Getenv("CARBON_PULSE_DEBUG") != "" {
		log, _ := zap.NewDevelopment()
		return log
	}
	log, _ := zap.NewProduction()
	return log
}

// loadSpec loads and validates a monitor spec; invalid specs are fatal.
func loadSpec(path string) (*v1.MonitorSpec, error) {
	spec, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	result := config.Validate(spec)
	if !result.IsValid() {
		printValidation(path, spec.Monitor.Name, result)
		return nil, result.Err()
	}
	return spec, nil
}

// openStore builds and opens the spec's store.
func openStore(ctx context.Context, spec *v1.MonitorSpec) (store.Store, error) {
	st, err := store.FromSpec(spec.Monitor.Storage)
	if err != nil {
		return nil, err
	}
	if err := st.Open(ctx); err != nil {
		return nil, fmt.Errorf("open %s storage: %w", spec.Monitor.Storage.Type, err)
	}
	return st, nil
}

// ═══════════════════════════════════════════
// init — Create starter monitor YAML
// ═══════════════════════════════════════════

func cmdInit(args []string) error {
	filename := "monitor.yaml"
	if len(args) > 0 {
		filename = args[0]
	}

	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("%s already exists", filename)
	}

	if err := os.WriteFile(filename, []byte(starterMonitor), 0644); err != nil {
		return err
	}

	fmt.Printf("✅ Created %s\n", filename)
	fmt.Println("   Edit it, then run: carbon-pulse validate", filename)
	return nil
}

const starterMonitor = `# Carbon Pulse Monitor Specification
apiVersion: carbonpulse/v1
kind: Monitor

monitor:
  name: carbon-pulse
  owner: data-platform

  # Carbon intensity tiers in gCO2eq/kWh. A reading exactly at a
  # boundary lands in the upper bucket.
  thresholds:
    lowCarbon: 200
    highCarbon: 400

  # Zones to seed reference data for. Empty means the built-in
  # major-zone list.
  zones: [US, DE, FR, GB, SE]

  storage:
    type: duckdb
    path: data/carbon_pulse.duckdb
    # type: postgres
    # dsn: ${POSTGRES_DSN}

  server:
    addr: ":8000"

  ingest:
    batchSize: 500

  export:
    path: data/exports/readings.parquet
    format: parquet          # parquet|csv|jsonl
    compression: snappy      # snappy|zstd|gzip|none
`

// ═══════════════════════════════════════════
// validate — Check monitor YAML
// ═══════════════════════════════════════════

func cmdValidate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: carbon-pulse validate <file>")
	}

	spec, err := config.Load(args[0])
	if err != nil {
		return err
	}

	result := config.Validate(spec)
	printValidation(args[0], spec.Monitor.Name, result)
	if !result.IsValid() {
		return fmt.Errorf("validation failed")
	}

	fmt.Println("\n✅ Monitor spec valid")
	return nil
}

func printValidation(path, name string, result *config.ValidationResult) {
	fmt.Printf("\n📋 %s (%s)\n", name, path)

	for _, e := range result.Errors {
		fmt.Printf("   ❌ %s: %s\n", e.Field, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Printf("   ⚠️  %s: %s\n", w.Field, w.Message)
	}
	if result.IsValid() && len(result.Warnings) == 0 {
		fmt.Println("   ✅ Valid")
	}
}

// ═══════════════════════════════════════════
// seed-zones — Load zone reference data
// ═══════════════════════════════════════════

func cmdSeedZones(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: carbon-pulse seed-zones <file>")
	}

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer st.Close()

	zones := config.SeedZones(spec.Monitor.Zones)
	if err := st.UpsertZones(ctx, zones); err != nil {
		return fmt.Errorf("seed zones: %w", err)
	}

	fmt.Printf("✅ Seeded %d zone(s) into %s storage\n", len(zones), spec.Monitor.Storage.Type)
	return nil
}

// ═══════════════════════════════════════════
// ingest — Run one batch through the pipeline
// ═══════════════════════════════════════════

func cmdIngest(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: carbon-pulse ingest <file> <data file|glob>")
	}

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	readings, err := source.Read(args[1])
	if err != nil {
		return err
	}

	log := newLogger()
	defer log.Sync()

	ctx := context.Background()
	st, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := pipeline.New(st, spec.Monitor.Thresholds,
		pipeline.WithBatchSize(spec.Monitor.Ingest.BatchSize),
		pipeline.WithLogger(log))

	report, err := engine.Run(ctx, readings)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Run %s: %d in → %d accepted, %d rejected, %d inserted, %d skipped\n",
		report.RunID, report.ReadingsIn, report.Accepted, report.Rejected,
		report.Inserted, report.Skipped)
	for _, rej := range report.Rejections {
		for _, failure := range rej.Failures {
			fmt.Printf("   ❌ record %d (%s): %s\n", rej.Index, rej.ID, failure.Message)
		}
	}
	return nil
}

// ═══════════════════════════════════════════
// serve — Start the query API
// ═══════════════════════════════════════════

func cmdServe(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: carbon-pulse serve <file>")
	}

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	log := newLogger()
	defer log.Sync()

	ctx := context.Background()
	st, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := pipeline.New(st, spec.Monitor.Thresholds,
		pipeline.WithBatchSize(spec.Monitor.Ingest.BatchSize),
		pipeline.WithLogger(log))

	server := api.NewServer(spec.Monitor.Name, spec.Monitor.Server.Addr, st, engine, log)
	if err := server.Start(); err != nil {
		return err
	}
	server.SetReady(true)

	cli.PrintBanner()
	fmt.Fprintf(os.Stderr, "📋 Monitor:  %s\n", spec.Monitor.Name)
	fmt.Fprintf(os.Stderr, "💾 Storage:  %s\n", spec.Monitor.Storage.Type)
	fmt.Fprintf(os.Stderr, "🌐 API:      http://localhost%s\n", spec.Monitor.Server.Addr)
	fmt.Fprintf(os.Stderr, "📊 Metrics:  http://localhost%s/metrics\n", spec.Monitor.Server.Addr)
	fmt.Fprintf(os.Stderr, "✅ Serving. Press Ctrl+C to stop.\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintf(os.Stderr, "\n⏹️  Shutting down gracefully...\n")
	server.SetReady(false)
	if err := server.Stop(); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✅ Stopped.\n")
	return nil
}

// ═══════════════════════════════════════════
// summarize — Print per-zone rollups
// ═══════════════════════════════════════════

func cmdSummarize(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: carbon-pulse summarize <file> [hours]")
	}

	hours := 24
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("hours must be a positive integer, got %q", args[1])
		}
		hours = parsed
	}

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer st.Close()

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := st.Window(ctx, since)
	if err != nil {
		return err
	}
	zones, err := st.Zones(ctx)
	if err != nil {
		return err
	}

	summaries := aggregate.SummarizeAll(readings, zones)
	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ═══════════════════════════════════════════
// export — Archive readings
// ═══════════════════════════════════════════

func cmdExport(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: carbon-pulse export <file>")
	}

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	if spec.Monitor.Export == nil {
		return fmt.Errorf("monitor.export is not configured in %s", args[0])
	}

	ctx := context.Background()
	st, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer st.Close()

	readings, err := st.Window(ctx, time.Time{})
	if err != nil {
		return err
	}
	if err := export.WriteFile(*spec.Monitor.Export, readings); err != nil {
		return err
	}

	fmt.Printf("✅ Exported %d reading(s) to %s (%s)\n",
		len(readings), spec.Monitor.Export.Path, spec.Monitor.Export.Format)
	return nil
}
