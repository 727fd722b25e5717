package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"internship-digest/internal/config"
	"internship-digest/internal/extract"
	"internship-digest/internal/notify"
	"internship-digest/internal/pipeline"
	"internship-digest/internal/secrets"
	"internship-digest/internal/source"

	"github.com/joho/godotenv"
)

const usage = `usage: digest <command> [flags]

commands:
  run      fetch, extract and deliver one digest, then exit
  serve    run the daily scheduler and the local API
  secret   set <url> | delete   manage the webhook url in the OS keychain
`

const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	// A missing .env is normal; the variable may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[main] .env ignored: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "run":
		return cmdRun(ctx, args[1:], stdout, stderr)
	case "serve":
		return cmdServe(ctx, args[1:], stderr)
	case "secret":
		return cmdSecret(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

type commonFlags struct {
	dataDir    string
	defaultCfg string
}

func (c *commonFlags) register(set *flag.FlagSet) {
	dataDir := os.Getenv("DIGEST_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	set.StringVar(&c.dataDir, "data-dir", dataDir, "directory holding config.yml (env DIGEST_DATA_DIR)")
	set.StringVar(&c.defaultCfg, "default-config", filepath.Join("config", "config.yml"), "config copied into the data dir when it has none")
}

// loadConfig bootstraps, loads and validates the user config.
func (c *commonFlags) loadConfig() (string, config.Config, error) {
	userCfgPath, err := config.EnsureUserConfig(c.dataDir, c.defaultCfg)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("config bootstrap failed: %w", err)
	}
	cfg, err := loadValidated(userCfgPath)
	return userCfgPath, cfg, err
}

func loadValidated(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !vr.OK() {
		return cfg, vr
	}
	return cfg, nil
}

func buildPipeline(cfg config.Config, n pipeline.Notifier) *pipeline.Pipeline {
	fetcher := source.New(source.Config{
		RepoURL:    cfg.Source.RepoURL,
		Document:   cfg.Source.Document,
		TempPrefix: cfg.Source.TempPrefix,
	}, source.GitCloner{Depth: cfg.Source.CloneDepth})

	ext := extract.New(extract.Options{
		Header:        cfg.Extract.Header,
		Match:         extract.TableRowWithLink(cfg.Extract.LinkMarker),
		FlattenMarkup: cfg.Extract.FlattenMarkup,
	})

	if n == nil {
		n = webhookNotifier(cfg)
	}
	return &pipeline.Pipeline{Fetcher: fetcher, Extractor: ext, Notifier: n}
}

func webhookNotifier(cfg config.Config) *notify.Webhook {
	endpoint := secrets.Webhook{
		KeyringAccount: cfg.Notify.KeyringAccount,
		EnvVar:         cfg.Notify.WebhookEnv,
	}
	return notify.New(endpoint, notify.Config{
		Timeout:     cfg.NotifyTimeout(),
		MinInterval: cfg.NotifyMinInterval(),
	})
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var common commonFlags
	common.register(fset)
	dryRun := fset.Bool("dry-run", false, "print the message instead of posting it")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	_, cfg, err := common.loadConfig()
	if err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}

	var n pipeline.Notifier
	if *dryRun {
		n = notify.Writer{W: stdout}
	}
	res, err := buildPipeline(cfg, n).Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "run %s failed: %v\n", res.RunID, err)
		return exitRun
	}
	return exitOK
}

func cmdSecret(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("secret", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var common commonFlags
	common.register(fset)
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	rest := fset.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	_, cfg, err := common.loadConfig()
	if err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}
	acct := cfg.Notify.KeyringAccount

	switch {
	case rest[0] == "set" && len(rest) == 2:
		if err := secrets.SetWebhookURL(acct, rest[1]); err != nil {
			fmt.Fprintf(stderr, "store webhook url: %v\n", err)
			return exitRun
		}
		fmt.Fprintf(stdout, "webhook url stored for %s\n", acct)
	case rest[0] == "delete" && len(rest) == 1:
		if err := secrets.DeleteWebhookURL(acct); err != nil {
			fmt.Fprintf(stderr, "delete webhook url: %v\n", err)
			return exitRun
		}
		fmt.Fprintf(stdout, "webhook url deleted for %s\n", acct)
	default:
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	return exitOK
}
