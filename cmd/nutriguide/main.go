// Package main is the nutriguide CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nutriguide/internal/cli"
	"github.com/hyperjump/nutriguide/internal/clinical"
	"github.com/hyperjump/nutriguide/internal/config"
	"github.com/hyperjump/nutriguide/internal/consult"
	"github.com/hyperjump/nutriguide/internal/engine"
	"github.com/hyperjump/nutriguide/internal/extract"
	"github.com/hyperjump/nutriguide/internal/generation"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/server"
	"github.com/hyperjump/nutriguide/internal/storage"
	"github.com/hyperjump/nutriguide/internal/watcher"
	"github.com/hyperjump/nutriguide/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nutriguide/config.yaml"

// loadConfig loads .env files and the config at path. When path is the default and a
// config.yaml exists in the current directory, that file is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "retrieve":
		runRetrieve()
	case "ask":
		runAsk()
	case "patient":
		runPatient()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("nutriguide version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`nutriguide - guideline-grounded nutrition answers for patients

Usage:
  nutriguide server   [--config path] [--debug]
  nutriguide ingest   [--config path] [--force] [--output text|json]
  nutriguide retrieve [--config path] [--server url] [-k n] [--output text|json] <query>
  nutriguide ask      [--config path] [--patient name] <question>
  nutriguide patient  add|show|list|history [flags]
  nutriguide status   [--config path] [--server url] [--output text|json]
  nutriguide version
`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// reorderArgs moves flags that follow positional arguments to the front so that
// "nutriguide retrieve mango -k 2" parses -k.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			return append(reordered, args[:i]...)
		}
	}
	return args
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Engine    *engine.Engine
	Storage   *storage.SQLiteStorage
	Formatter *clinical.Formatter
	Generator *generation.OllamaGenerator
	Consult   *consult.Service
}

// Close releases the engine and the database.
func (c *Components) Close() {
	if c.Engine != nil {
		if err := c.Engine.Close(); err != nil {
			c.Logger.Warn("engine close failed", zap.Error(err))
		}
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

type initOptions struct {
	force      bool
	generation bool
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, o initOptions) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	if o.force {
		cfg.Guidelines.ForceReload = true
	}
	eng, err := engine.New(ctx, engine.OptionsFromConfig(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	c.Engine = eng

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.PatientDBPath), 0o755); err != nil {
		c.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.PatientDBPath)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Storage = store
	c.Formatter = clinical.NewFormatter(store, logger)

	if !o.generation {
		return c, nil
	}
	gen, err := generation.NewOllamaGenerator(cfg.Generation, logger)
	if err != nil {
		logger.Warn("language model unavailable", zap.Error(err))
	}
	c.Generator = gen
	c.Consult = consult.NewService(eng, c.Formatter, gen,
		consult.WithHistory(store),
		consult.WithPatientLookup(store),
		consult.WithTopK(cfg.Retrieval.DefaultK),
		consult.WithLogger(logger),
	)
	return c, nil
}

func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return cfg, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolved := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || *debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, initOptions{generation: true})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Guidelines.Directory, extract.SupportedExtensions,
			func(paths []string) {
				logger.Info("guideline files changed; re-ingest to pick them up", zap.Strings("paths", paths))
				components.Engine.MarkStale()
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
		)
		if err := w.Start(ctx); err != nil {
			logger.Warn("guideline watcher not started", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(server.Deps{
		Engine:    components.Engine,
		Consult:   components.Consult,
		Patients:  components.Storage,
		Contexts:  components.Formatter,
		Generator: components.Generator,
	}, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "rebuild the index from the guideline directory")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()

	// The engine ingests while starting when it creates or (with --force) reloads the index.
	components, err := initializeComponents(ctx, cfg, logger, initOptions{force: *force})
	if err != nil {
		fatalf("Ingestion failed: %v", err)
	}
	defer components.Close()

	if components.Engine.Status().State == models.StateDegraded {
		fatalf("Ingestion failed: engine is degraded (embeddings or index unavailable)")
	}
	res, ok := components.Engine.StartupIngest()
	if !ok {
		res, err = components.Engine.Ingest(ctx)
		if err != nil {
			fatalf("Ingestion failed: %v", err)
		}
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the index directly)")
	k := fs.Int("k", 0, "number of chunks (0 = configured default)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: nutriguide retrieve [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	var res models.Retrieval
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/retrieve", map[string]interface{}{"query": query, "k": *k}, &res); err != nil {
			fatalf("Retrieve failed: %v", err)
		}
	} else {
		cfg, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger, initOptions{})
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		res = components.Engine.Retrieve(ctx, query, *k)
	}
	if err := cli.WriteRetrieval(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	patient := fs.String("patient", "", "registered patient name (empty = general public)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" {
		fmt.Println("Usage: nutriguide ask [--patient name] <question>")
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, initOptions{generation: true})
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	out := bufio.NewWriter(os.Stdout)
	answer, err := components.Consult.Ask(ctx, *patient, question, func(frag string) error {
		if _, err := out.WriteString(frag); err != nil {
			return err
		}
		return out.Flush()
	})
	if err != nil {
		fatalf("\nAsk failed: %v", err)
	}
	fmt.Fprintln(out)
	cli.WriteSources(out, answer.Sources)
	_ = out.Flush()
}

func runPatient() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: nutriguide patient <add|show|list|history> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("patient "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	file := fs.String("file", "", "registration JSON file (add only; - reads stdin)")
	limit := fs.Int("limit", 20, "messages to show (history only; 0 = all)")
	var reg clinical.Registration
	fs.StringVar(&reg.Name, "name", "", "patient name")
	fs.IntVar(&reg.Age, "age", 0, "age in years")
	fs.StringVar(&reg.Gender, "gender", "", "gender")
	fs.Float64Var(&reg.WeightKg, "weight", 0, "weight in kg")
	fs.Float64Var(&reg.HeightCm, "height", 0, "height in cm")
	fs.StringVar(&reg.ActivityLevel, "activity", "", "activity level")
	fs.StringVar(&reg.Condition, "condition", "", "condition (diabetes, hypertension, anaemia, pcos, obesity, ...)")
	fs.StringVar(&reg.Goal, "goal", "", "health goal")
	fs.Float64Var(&reg.HbA1c, "hba1c", 0, "HbA1c percentage (diabetes)")
	fs.StringVar(&reg.Medication, "medication", "", "medication (diabetes)")
	fs.IntVar(&reg.Systolic, "systolic", 0, "systolic BP (hypertension)")
	fs.IntVar(&reg.Diastolic, "diastolic", 0, "diastolic BP (hypertension)")
	fs.Float64Var(&reg.Hemoglobin, "hemoglobin", 0, "hemoglobin g/dL (anaemia)")
	symptoms := fs.String("symptoms", "", "comma-separated symptoms (anaemia)")
	fs.StringVar(&reg.Cycle, "periods", "", "cycle regularity (pcos)")
	fs.BoolVar(&reg.WeightGain, "weight-gain", false, "weight gain (pcos)")
	fs.Float64Var(&reg.TargetWeight, "target-weight", 0, "target weight in kg (obesity)")
	_ = fs.Parse(reorderArgs(os.Args[3:]))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.PatientDBPath), 0o755); err != nil {
		fatalf("Failed to create data dir: %v", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.PatientDBPath)
	if err != nil {
		fatalf("Failed to open patient database: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	switch sub {
	case "add":
		if *file != "" {
			if err := readRegistration(*file, &reg); err != nil {
				fatalf("Failed to read registration: %v", err)
			}
		} else if *symptoms != "" {
			for _, s := range strings.Split(*symptoms, ",") {
				if s = strings.TrimSpace(s); s != "" {
					reg.Symptoms = append(reg.Symptoms, s)
				}
			}
		}
		p, err := reg.Patient()
		if err != nil {
			fatalf("Invalid patient: %v", err)
		}
		if err := store.AddPatient(ctx, p); err != nil {
			if errors.Is(err, storage.ErrPatientExists) {
				fatalf("Patient %q already exists", p.Name)
			}
			fatalf("Add failed: %v", err)
		}
		if err := cli.WritePatient(os.Stdout, p, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "show":
		name := firstNonEmpty(reg.Name, joinArgs(fs.Args()))
		p, err := store.GetPatient(ctx, name)
		if err != nil {
			fatalf("Show failed: %v", err)
		}
		if err := cli.WritePatient(os.Stdout, p, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "list":
		patients, err := store.ListPatients(ctx)
		if err != nil {
			fatalf("List failed: %v", err)
		}
		if err := cli.WritePatients(os.Stdout, patients, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "history":
		name := firstNonEmpty(reg.Name, joinArgs(fs.Args()))
		msgs, err := store.ListMessages(ctx, name, *limit)
		if err != nil {
			fatalf("History failed: %v", err)
		}
		if err := cli.WriteHistory(os.Stdout, msgs, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	default:
		fatalf("Unknown patient subcommand: %s", sub)
	}
}

func readRegistration(path string, reg *clinical.Registration) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(reg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the index directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	var report cli.StatusReport
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &report); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, initOptions{})
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		report.Status = components.Engine.Status()
		if fp, err := storage.MeasureFootprint(cfg.Storage.VectorDBPath, cfg.Storage.PatientDBPath); err == nil {
			report.Disk = &fp
		}
	}
	if err := cli.WriteStatus(os.Stdout, report, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
