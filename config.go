package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
	driverRDSData  = "rdsdata"
)

// Config holds everything a run needs. It is built once in main and passed
// down; nothing below main reads the environment.
type Config struct {
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`
	DBClusterARN   string `yaml:"db_cluster_arn"`
	DBSecretARN    string `yaml:"db_secret_arn"`
	DBName         string `yaml:"db_name"`

	TargetBucket         string `yaml:"target_bucket"`
	S3Region             string `yaml:"s3_region"`
	S3Endpoint           string `yaml:"s3_endpoint"` // For testing with MinIO
	KeyPrefix            string `yaml:"key_prefix"`
	OutputDir            string `yaml:"output_dir"` // Write to disk instead of S3
	GeneralDatasetName   string `yaml:"general_dataset_name"`
	LowVolumeDatasetName string `yaml:"low_volume_dataset_name"`

	Threshold           float64 `yaml:"low_volume_threshold"`
	FallbackLabel       string  `yaml:"low_volume_fallback_label"`
	// RouteLabel replaces FallbackLabel in the general dataset when the low
	// volume dataset is built. Set it to "0" to send those tickets to the low
	// volume model as the legacy preparation job did.
	RouteLabel          string  `yaml:"low_volume_route_label"`
	TrainFraction       float64 `yaml:"train_fraction"`
	GeneralPeriodDays   int     `yaml:"training_period_days"`
	LowVolumePeriodDays int     `yaml:"low_volume_period_days"`
	GroupIDs            []int64 `yaml:"group_ids"`
	PageSize            int     `yaml:"page_size"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryMultiplier  float64       `yaml:"retry_multiplier"`

	PushgatewayURL  string `yaml:"pushgateway_url"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	ReportPath      string `yaml:"report_path"`
	LogLevel        string `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		S3Region:             "us-east-1",
		KeyPrefix:            "training",
		GeneralDatasetName:   "gata-general",
		LowVolumeDatasetName: "gata-low-vol",
		Threshold:            0.033,
		TrainFraction:        0.9,
		GeneralPeriodDays:    90,
		LowVolumePeriodDays:  365,
		PageSize:             50,
		RetryMaxAttempts:     10,
		RetryDelay:           3 * time.Second,
		RetryMultiplier:      1,
		LogLevel:             "info",
	}
}

// LoadConfig layers defaults, the optional YAML file at path and the
// environment. An empty path falls back to CONFIG_PATH. A missing file is
// only an error when the path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, inputErrorf("parse %s: %v", path, err)
			}
			log.Printf("Loaded config from %s", path)
		case explicit:
			return nil, inputErrorf("read config: %v", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.inferDriver()
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	envString(&cfg.DatabaseDriver, "DATABASE_DRIVER")
	envString(&cfg.DatabaseURL, "DATABASE_URL")
	envString(&cfg.DBClusterARN, "DB_ARN")
	envString(&cfg.DBSecretARN, "DB_SECRET_ARN")
	envString(&cfg.DBName, "DB_NAME")
	envString(&cfg.TargetBucket, "TARGET_BUCKET")
	envString(&cfg.S3Region, "S3_REGION")
	envString(&cfg.S3Endpoint, "S3_ENDPOINT")
	envString(&cfg.KeyPrefix, "KEY_PREFIX")
	envString(&cfg.OutputDir, "OUTPUT_DIR")
	envString(&cfg.GeneralDatasetName, "GENERAL_DATASET_NAME")
	envString(&cfg.LowVolumeDatasetName, "LOW_VOLUME_DATASET_NAME")
	envString(&cfg.FallbackLabel, "LOW_VOLUME_FALLBACK_LABEL")
	envString(&cfg.RouteLabel, "LOW_VOLUME_ROUTE_LABEL")
	envString(&cfg.PushgatewayURL, "PUSHGATEWAY_URL")
	envString(&cfg.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	envString(&cfg.ReportPath, "REPORT_PATH")
	envString(&cfg.LogLevel, "LOG_LEVEL")

	return errors.Join(
		envFloat(&cfg.Threshold, "LOW_VOLUME_THRESHOLD"),
		envFloat(&cfg.TrainFraction, "TRAIN_FRACTION"),
		envInt(&cfg.GeneralPeriodDays, "TRAINING_PERIOD"),
		envInt(&cfg.LowVolumePeriodDays, "LOW_VOLUME_PERIOD"),
		envInt(&cfg.PageSize, "PAGE_SIZE"),
		envInt(&cfg.RetryMaxAttempts, "DB_RETRY_MAX_ATTEMPTS"),
		envDuration(&cfg.RetryDelay, "DB_RETRY_DELAY"),
		envFloat(&cfg.RetryMultiplier, "DB_RETRY_MULTIPLIER"),
		envInt64List(&cfg.GroupIDs, "GROUP_IDS"),
	)
}

func (cfg *Config) inferDriver() {
	if cfg.DatabaseDriver != "" {
		cfg.DatabaseDriver = strings.ToLower(cfg.DatabaseDriver)
		return
	}
	switch {
	case cfg.DBClusterARN != "":
		cfg.DatabaseDriver = driverRDSData
	case strings.HasPrefix(cfg.DatabaseURL, "sqlite:") || strings.HasPrefix(cfg.DatabaseURL, "file:"):
		cfg.DatabaseDriver = driverSQLite
	default:
		cfg.DatabaseDriver = driverPostgres
	}
}

// Validate reports every configuration problem at once as an InputError.
func (cfg *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch cfg.DatabaseDriver {
	case driverRDSData:
		if cfg.DBClusterARN == "" {
			addf("DB_ARN is required for the rdsdata driver")
		}
		if cfg.DBSecretARN == "" {
			addf("DB_SECRET_ARN is required for the rdsdata driver")
		}
	case driverPostgres:
		if cfg.DatabaseURL == "" && cfg.DBSecretARN == "" {
			addf("DATABASE_URL or DB_SECRET_ARN is required for the postgres driver")
		}
	case driverSQLite:
		if cfg.DatabaseURL == "" {
			addf("DATABASE_URL is required for the sqlite driver")
		}
	default:
		addf("unknown database driver %q", cfg.DatabaseDriver)
	}

	if cfg.TargetBucket == "" && cfg.OutputDir == "" {
		addf("TARGET_BUCKET or OUTPUT_DIR is required")
	}
	if cfg.FallbackLabel == "" {
		addf("LOW_VOLUME_FALLBACK_LABEL is required")
	} else if _, err := strconv.ParseInt(cfg.FallbackLabel, 10, 64); err != nil {
		addf("LOW_VOLUME_FALLBACK_LABEL %q is not a label ID", cfg.FallbackLabel)
	}
	if cfg.RouteLabel != "" {
		if _, err := strconv.ParseInt(cfg.RouteLabel, 10, 64); err != nil {
			addf("LOW_VOLUME_ROUTE_LABEL %q is not a label ID", cfg.RouteLabel)
		}
	}
	if cfg.GeneralDatasetName == "" || cfg.LowVolumeDatasetName == "" {
		addf("dataset names must not be empty")
	} else if cfg.GeneralDatasetName == cfg.LowVolumeDatasetName {
		addf("general and low volume dataset names must differ")
	}
	if !(cfg.Threshold > 0 && cfg.Threshold < 1) {
		addf("LOW_VOLUME_THRESHOLD %v must be between 0 and 1", cfg.Threshold)
	}
	if !(cfg.TrainFraction > 0 && cfg.TrainFraction < 1) {
		addf("TRAIN_FRACTION %v must be between 0 and 1", cfg.TrainFraction)
	}
	if cfg.GeneralPeriodDays <= 0 {
		addf("TRAINING_PERIOD must be positive")
	}
	if cfg.LowVolumePeriodDays < cfg.GeneralPeriodDays {
		addf("LOW_VOLUME_PERIOD (%d) must not be shorter than TRAINING_PERIOD (%d)",
			cfg.LowVolumePeriodDays, cfg.GeneralPeriodDays)
	}
	if cfg.PageSize <= 0 {
		addf("PAGE_SIZE must be positive")
	}
	if cfg.RetryMaxAttempts < 1 {
		addf("DB_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RetryDelay < 0 || cfg.RetryMultiplier < 1 {
		addf("retry delay must be non-negative and multiplier at least 1")
	}

	if len(problems) > 0 {
		return &InputError{Msg: strings.Join(problems, "; ")}
	}
	return nil
}

// RetryPolicy builds the database resume policy from the config.
func (cfg *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Delay:       cfg.RetryDelay,
		Multiplier:  cfg.RetryMultiplier,
	}
}

func envString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func envInt(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return inputErrorf("invalid integer for %s: %s", key, value)
	}
	*target = v
	return nil
}

func envFloat(target *float64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return inputErrorf("invalid number for %s: %s", key, value)
	}
	*target = v
	return nil
}

func envDuration(target *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	if dur, err := time.ParseDuration(value); err == nil {
		*target = dur
		return nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		*target = time.Duration(secs) * time.Second
		return nil
	}
	return inputErrorf("invalid duration for %s: %s", key, value)
}

func envInt64List(target *[]int64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return inputErrorf("invalid group id in %s: %s", key, part)
		}
		ids = append(ids, id)
	}
	*target = ids
	return nil
}
