// Command dataset-prep extracts labeled support tickets for a batch and
// writes stratified train/test datasets for the general and low-volume
// routing models.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

type cliFlags struct {
	configPath      string
	threshold       float64
	fallbackLabel   string
	trainFraction   float64
	trainingPeriod  int
	lowVolumePeriod int
	bucket          string
	prefix          string
	outputDir       string
	reportPath      string
	logLevel        string
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("dataset-prep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dataset-prep [flags] <batch_id>\n\n")
		fs.PrintDefaults()
	}

	var f cliFlags
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.Float64Var(&f.threshold, "threshold", 0, "share of tickets below which a label is low volume")
	fs.StringVar(&f.fallbackLabel, "fallback-label", "", "label that absorbs low volume labels when no low volume dataset is built")
	fs.Float64Var(&f.trainFraction, "train-fraction", 0, "fraction of each label assigned to the training set")
	fs.IntVar(&f.trainingPeriod, "training-period", 0, "days of tickets in the general dataset")
	fs.IntVar(&f.lowVolumePeriod, "low-volume-period", 0, "days of tickets in the low volume dataset")
	fs.StringVar(&f.bucket, "bucket", "", "target S3 bucket")
	fs.StringVar(&f.prefix, "prefix", "", "key prefix for dataset objects")
	fs.StringVarP(&f.outputDir, "output-dir", "o", "", "write datasets to this directory instead of S3")
	fs.StringVar(&f.reportPath, "report", "", "write a distribution report (.xlsx) to this path")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	batch, err := ParseBatchID(fs.Arg(0))
	if err != nil {
		log.Printf("Execution failed: %v", err)
		return exitFailure
	}

	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		log.Printf("Execution failed: %v", err)
		return exitFailure
	}
	f.apply(fs, cfg)
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Printf("Execution failed: %v", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	initMetrics(reg)

	result, err := execute(ctx, cfg, batch)
	status := "success"
	if err != nil {
		status = "failure"
	}
	runsTotal.WithLabelValues(status).Inc()

	if cfg.PushgatewayURL != "" {
		if perr := pushMetrics(ctx, cfg.PushgatewayURL, batch.ID, reg); perr != nil {
			log.Printf("Warning: %v", perr)
		}
	}
	if cfg.SlackWebhookURL != "" {
		notifyRun(ctx, newSlackNotifier(cfg.SlackWebhookURL), batch.ID, result, err)
	}

	if err != nil {
		log.Printf("Execution failed: %v", err)
		return exitFailure
	}
	log.Printf("Execution successful")
	return exitOK
}

// apply copies the flags that were set on the command line over cfg.
func (f *cliFlags) apply(fs *flag.FlagSet, cfg *Config) {
	if fs.Changed("threshold") {
		cfg.Threshold = f.threshold
	}
	if fs.Changed("fallback-label") {
		cfg.FallbackLabel = f.fallbackLabel
	}
	if fs.Changed("train-fraction") {
		cfg.TrainFraction = f.trainFraction
	}
	if fs.Changed("training-period") {
		cfg.GeneralPeriodDays = f.trainingPeriod
	}
	if fs.Changed("low-volume-period") {
		cfg.LowVolumePeriodDays = f.lowVolumePeriod
	}
	if fs.Changed("bucket") {
		cfg.TargetBucket = f.bucket
	}
	if fs.Changed("prefix") {
		cfg.KeyPrefix = f.prefix
	}
	if fs.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if fs.Changed("report") {
		cfg.ReportPath = f.reportPath
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

// execute wires the collaborators for cfg and runs the pipeline once.
func execute(ctx context.Context, cfg *Config, batch Batch) (Result, error) {
	var awsCfg aws.Config
	if cfg.needsAWS() {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return Result{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	source, closeSource, err := openTicketSource(ctx, cfg, awsCfg)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Printf("Warning: failed to close ticket source: %v", err)
		}
	}()

	var report *DistributionReport
	if cfg.ReportPath != "" {
		report, err = NewDistributionReport()
		if err != nil {
			return Result{}, err
		}
		defer report.Close()
	}

	pipeline := NewPipeline(cfg, source, openStore(cfg, awsCfg), report)
	result, err := pipeline.Run(ctx, batch)
	if err != nil {
		return result, err
	}

	if report != nil {
		if err := report.Save(cfg.ReportPath); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (cfg *Config) needsAWS() bool {
	switch {
	case cfg.OutputDir == "":
		return true
	case cfg.DatabaseDriver == driverRDSData:
		return true
	case cfg.DatabaseDriver == driverPostgres && cfg.DatabaseURL == "":
		return true
	}
	return false
}

func openTicketSource(ctx context.Context, cfg *Config, awsCfg aws.Config) (TicketSource, func() error, error) {
	opts := SourceOptions{
		GroupIDs: cfg.GroupIDs,
		PageSize: cfg.PageSize,
		Retry:    cfg.RetryPolicy(),
	}
	noop := func() error { return nil }

	switch cfg.DatabaseDriver {
	case driverRDSData:
		database := cfg.DBName
		if database == "" {
			secret, err := LoadDBSecret(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.DBSecretARN)
			if err != nil {
				return nil, nil, err
			}
			database, err = secret.Database()
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", cfg.DBSecretARN, err)
			}
		}
		src, err := NewRDSDataTicketSource(ctx, rdsdata.NewFromConfig(awsCfg), cfg.DBClusterARN, cfg.DBSecretARN, database, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return src, noop, nil

	default:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			secret, err := LoadDBSecret(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.DBSecretARN)
			if err != nil {
				return nil, nil, err
			}
			dsn, err = secret.PostgresDSN(cfg.DBName)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", cfg.DBSecretARN, err)
			}
		}
		src, err := OpenSQLTicketSource(ctx, cfg.DatabaseDriver, dsn, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return src, src.Close, nil
	}
}

func openStore(cfg *Config, awsCfg aws.Config) DatasetStore {
	if cfg.OutputDir != "" {
		return NewFileStore(cfg.OutputDir, cfg.KeyPrefix)
	}

	var opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		})
	}
	return NewS3Store(s3.NewFromConfig(awsCfg, opts...), cfg.TargetBucket, cfg.KeyPrefix, uuid.NewString())
}
