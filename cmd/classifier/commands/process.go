package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MechanicalMaster/Universal-Classifier/cmd/classifier/ui"
	"github.com/MechanicalMaster/Universal-Classifier/internal/batch"
	"github.com/MechanicalMaster/Universal-Classifier/internal/config"
	"github.com/MechanicalMaster/Universal-Classifier/internal/decompose"
	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
	"github.com/MechanicalMaster/Universal-Classifier/internal/observability"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
)

var (
	model       string
	concurrency int
	retries     int
	outputPath  string
	includeRaw  bool
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process documents and print extraction results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&model, "model", "m", "", "vision model override")
	processCmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent pages")
	processCmd.Flags().IntVar(&retries, "retries", 0, "max retry attempts per page")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the JSON result to a file instead of stdout")
	processCmd.Flags().BoolVar(&includeRaw, "raw", false, "include raw model responses in the output")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	if noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:   level,
		Format:  "console",
		Service: "classifier",
		Output:  os.Stderr,
	})

	limiter, err := ratelimit.New(cfg.Limits.CallsPerMinute)
	if err != nil {
		return err
	}

	inputs := make([]decompose.Input, 0, len(args))
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		inputs = append(inputs, decompose.Input{Name: info.Name(), Path: path, Size: info.Size()})
	}

	opts := domain.Options{
		MaxConcurrentUnits:  concurrency,
		MaxRetryAttempts:    retries,
		ModelSelector:       model,
		IncludeRawResponses: includeRaw,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, finishing in-flight pages...")
		cancel()
	}()

	spin := ui.NewSpinner("preparing documents...")
	spin.Start()

	var bar *ui.ProgressBar
	notify := func(e batch.Event) {
		switch e.Kind {
		case batch.EventBatchStarted:
			spin.Stop()
			bar = ui.NewProgressBar(int64(e.TotalUnits), "extracting")
		case batch.EventUnitCompleted:
			bar.Set(int64(e.CompletedUnits))
		case batch.EventBatchFinished:
			bar.Finish()
		}
	}

	processor := batch.NewProcessor(cfg, limiter, observability.Component(logger, "batch"))
	started := time.Now()
	result, err := processor.Process(ctx, inputs, opts, notify)
	spin.Stop()
	if err != nil {
		return err
	}

	printSummary(result, time.Since(started))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "result written to %s\n", outputPath)
		return nil
	}
	fmt.Println(string(data))
	return nil
}

func printSummary(res *domain.BatchResult, elapsed time.Duration) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	statusStr := func(s domain.ProcessingStatus) string {
		switch s {
		case domain.StatusSuccess:
			return green(string(s))
		case domain.StatusPartial:
			return yellow(string(s))
		default:
			return red(string(s))
		}
	}

	fmt.Fprintln(os.Stderr)
	for _, f := range res.Files {
		line := fmt.Sprintf("  %-40s %s", f.FileName, statusStr(f.Status))
		if len(f.Units) > 0 && f.Units[0].Result != nil {
			line += "  " + f.Units[0].Result.DocumentClass
		}
		if f.Status != domain.StatusSuccess && len(f.Errors) > 0 {
			line += "  (" + string(f.Errors[0].Category) + ")"
		}
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintf(os.Stderr, "\nbatch %s: %s, %d/%d files, %.1f%% pages succeeded, %d API calls, $%.4f, %s\n",
		res.BatchID,
		statusStr(res.Status),
		countFiles(res, domain.StatusSuccess),
		len(res.Files),
		res.Summary.SuccessRate,
		res.Summary.APICallsMade,
		res.Summary.EstimatedCost,
		elapsed.Round(time.Millisecond),
	)
}

func countFiles(res *domain.BatchResult, status domain.ProcessingStatus) int {
	n := 0
	for _, f := range res.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}
