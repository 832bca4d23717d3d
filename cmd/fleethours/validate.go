package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/fleethours/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the fleethours configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults())
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	valid := config.Keys()
	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	field := func(name string, value, defaultValue interface{}) {
		dumpField(name, value, defaultValue, yellow, green)
	}

	_, _ = cyan.Println("\n[events.mongo]")
	field("  uri", redactURI(cfg.Events.Mongo.URI), redactURI(defaultCfg.Events.Mongo.URI))
	field("  database", cfg.Events.Mongo.Database, defaultCfg.Events.Mongo.Database)
	field("  collection", cfg.Events.Mongo.Collection, defaultCfg.Events.Mongo.Collection)
	field("  connect_timeout", cfg.Events.Mongo.ConnectTimeout, defaultCfg.Events.Mongo.ConnectTimeout)
	field("  query_timeout", cfg.Events.Mongo.QueryTimeout, defaultCfg.Events.Mongo.QueryTimeout)

	_, _ = cyan.Println("\n[storage.redis]")
	field("  host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	field("  port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	field("  password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password))
	field("  db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	field("  pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	field("  min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	field("  dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	field("  read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	field("  write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)
	field("  report_ttl", cfg.Storage.Redis.ReportTTL, defaultCfg.Storage.Redis.ReportTTL)

	_, _ = cyan.Println("\n[identity]")
	field("  cache_size", cfg.Identity.CacheSize, defaultCfg.Identity.CacheSize)
	field("  cache_ttl", cfg.Identity.CacheTTL, defaultCfg.Identity.CacheTTL)

	_, _ = cyan.Println("\n[report]")
	field("  timezone", cfg.Report.Timezone, defaultCfg.Report.Timezone)
	field("  locations", cfg.Report.Locations, defaultCfg.Report.Locations)
	field("  fetch_concurrency", cfg.Report.FetchConcurrency, defaultCfg.Report.FetchConcurrency)
	field("  fetch_timeout", cfg.Report.FetchTimeout, defaultCfg.Report.FetchTimeout)

	_, _ = cyan.Println("\n[scheduler]")
	field("  enabled", cfg.Scheduler.Enabled, defaultCfg.Scheduler.Enabled)
	field("  run_time", cfg.Scheduler.RunTime, defaultCfg.Scheduler.RunTime)
	field("  kinds", cfg.Scheduler.Kinds, defaultCfg.Scheduler.Kinds)

	_, _ = cyan.Println("\n[server]")
	field("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort)
	field("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress)

	_, _ = cyan.Println("\n[logging]")
	field("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	field("  format", cfg.Logging.Format, defaultCfg.Logging.Format)

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}

// redactURI hides credentials embedded in a connection string
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	authority := rest
	if i := strings.Index(rest, "/"); i >= 0 {
		authority = rest[:i]
	}
	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***REDACTED***@" + rest[at+1:]
}
