// Command reconforge is the thin CLI wrapper around the enrichment
// engine, built the way the teacher's cmd/root.go wires cobra + viper
// + fatih/color: cobra owns argument parsing, viper owns
// config/env-var loading, and color highlights warnings/errors in the
// human-readable output. This binary is glue, not part of the engine's
// tested core (SPEC_FULL.md §2.4).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/duskline/reconforge/internal/cache"
	"github.com/duskline/reconforge/internal/config"
	"github.com/duskline/reconforge/internal/logger"
	"github.com/duskline/reconforge/internal/orchestrator"
	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/provider/certprov"
	"github.com/duskline/reconforge/internal/provider/dnsprov"
	"github.com/duskline/reconforge/internal/provider/geoipprov"
	"github.com/duskline/reconforge/internal/provider/portprov"
	"github.com/duskline/reconforge/internal/provider/rdapprov"
	"github.com/duskline/reconforge/internal/provider/threatprov"
	"github.com/duskline/reconforge/internal/provider/whoisprov"
	"github.com/duskline/reconforge/internal/ratelimit"
	"github.com/duskline/reconforge/internal/record"
	"github.com/duskline/reconforge/internal/target"
)

var (
	flagConfigFile   string
	flagTargetFile   string
	flagTargetType   string
	flagProviders    []string
	flagOutputJSON   bool
	flagNoCache      bool
	flagRefreshCache bool
)

func main() {
	root := &cobra.Command{
		Use:   "reconforge [target]",
		Short: "OSINT enrichment engine",
	}
	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a YAML config file")

	enrich := &cobra.Command{
		Use:   "enrich [target]",
		Short: "Enrich one or more targets across every applicable provider",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnrich,
	}
	enrich.Flags().StringVar(&flagTargetFile, "target-file", "", "file of newline-separated targets")
	enrich.Flags().StringVar(&flagTargetType, "type", "", "target type: domain, ip, url, or email (auto-detected if omitted)")
	enrich.Flags().StringSliceVar(&flagProviders, "providers", nil, "comma-separated provider names (default: all applicable)")
	enrich.Flags().BoolVar(&flagOutputJSON, "json", false, "emit JSON instead of a summary table")
	enrich.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass cache reads and writes for this run")
	enrich.Flags().BoolVar(&flagRefreshCache, "refresh-cache", false, "bypass cache reads but keep writing fresh results")

	root.AddCommand(enrich)

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		if errors.Is(err, errNoProviderData) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// errNoProviderData signals that every target in the run finished
// without a single provider succeeding, per §7's requirement for a
// distinct non-success exit code.
var errNoProviderData = errors.New("no provider produced data for any target")

func buildRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(dnsprov.New("", 0))
	registry.Register(whoisprov.New(0))
	registry.Register(rdapprov.New(0))
	registry.Register(geoipprov.New(0))
	registry.Register(threatprov.New(0))
	registry.Register(certprov.New(0))
	registry.Register(portprov.New(0))
	return registry
}

// buildCacheStore selects a cache.Store backend per §6.3/§6.4's
// cache_backend/cache_dir/redis_addr keys. "memory" (the default) needs
// nothing further; "file" persists entries under cache_dir so a scan's
// cache survives process restarts; "redis" shares entries across
// processes/hosts via a client dialed against redis_addr.
func buildCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return cache.NewMemoryStore(10000)
	case "file":
		dir := cfg.CacheDir
		if dir == "" {
			return nil, fmt.Errorf("cache_backend=file requires cache_dir")
		}
		return cache.NewFileStore(dir)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("cache_backend=redis requires redis_addr")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisStore(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown cache_backend %q", cfg.CacheBackend)
	}
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	targets, err := gatherTargets(args, flagTargetFile)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets given: pass one as an argument or via --target-file")
	}

	store, err := buildCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	limiter := ratelimit.NewManager(ratelimit.DefaultConfigs())

	engine := orchestrator.NewEngine(buildRegistry(), store, limiter)
	engine.Log = log
	engine.DefaultWorkers = cfg.MaxWorkers
	engine.DefaultTimeout = cfg.Timeout
	engine.DefaultCacheTTL = cfg.CacheTTL

	creds := make(map[string]provider.Credentials)
	for name, key := range cfg.Credentials {
		creds[name] = provider.Credentials{"api_key": key}
	}

	opts := orchestrator.Options{
		Providers:    flagProviders,
		Credentials:  creds,
		NoCache:      cfg.NoCache || flagNoCache,
		RefreshCache: cfg.RefreshCache || flagRefreshCache,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(targets))*cfg.Timeout*2)
	defer cancel()

	anySucceeded := false
	for _, t := range targets {
		typ, err := resolveType(t, flagTargetType)
		if err != nil {
			color.Yellow("skipping %q: %v", t, err)
			continue
		}

		merged, meta, err := engine.Enrich(ctx, t, typ, opts)
		if err != nil {
			color.Red("%s: %v", t, err)
			continue
		}
		if meta.ProvidersSucceeded > 0 {
			anySucceeded = true
		}

		if flagOutputJSON {
			printJSON(merged, meta)
		} else {
			printSummary(t, merged, meta)
		}
	}

	if !anySucceeded {
		return errNoProviderData
	}
	return nil
}

func gatherTargets(args []string, targetFile string) ([]string, error) {
	var targets []string
	if len(args) == 1 {
		targets = append(targets, strings.TrimSpace(args[0]))
	}
	if targetFile != "" {
		f, err := os.Open(targetFile)
		if err != nil {
			return nil, fmt.Errorf("open target file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			targets = append(targets, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read target file: %w", err)
		}
	}
	return targets, nil
}

func resolveType(raw, explicit string) (record.Type, error) {
	if explicit != "" {
		return record.Type(explicit), nil
	}
	return target.Detect(raw)
}

func printJSON(merged *record.Record, meta *orchestrator.Metadata) {
	out := struct {
		Record   *record.Record         `json:"record"`
		Metadata *orchestrator.Metadata `json:"metadata"`
	}{merged, meta}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		color.Red("marshal result: %v", err)
		return
	}
	fmt.Println(string(data))
}

func printSummary(t string, merged *record.Record, meta *orchestrator.Metadata) {
	fmt.Printf("%s  (confidence %.0f%%, %d/%d providers, %dms)\n",
		color.CyanString(t), meta.Confidence*100, meta.ProvidersSucceeded, meta.ProvidersAttempted, meta.ElapsedMS)

	if ips := merged.Resolved.IP.Values(); len(ips) > 0 {
		fmt.Printf("  ips: %s\n", strings.Join(ips, ", "))
	}
	if merged.Whois.Registrar != nil {
		fmt.Printf("  registrar: %s\n", *merged.Whois.Registrar)
	}
	if merged.Risk.Score != nil {
		fmt.Printf("  risk score: %d\n", *merged.Risk.Score)
	}

	for _, status := range meta.PerProviderStatus {
		switch status.Outcome {
		case orchestrator.OutcomeFailed:
			color.Red("  %s: failed (%s)", status.Provider, status.Message)
		case orchestrator.OutcomeSkipped:
			color.Yellow("  %s: skipped (%s)", status.Provider, status.Kind)
		}
	}
}
