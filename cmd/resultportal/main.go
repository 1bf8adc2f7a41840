package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/resultportal/internal/cohort"
	"github.com/pavelanni/resultportal/internal/filestore"
	"github.com/pavelanni/resultportal/internal/flags"
	"github.com/pavelanni/resultportal/internal/gate"
	"github.com/pavelanni/resultportal/internal/handler"
	appI18n "github.com/pavelanni/resultportal/internal/i18n"
	"github.com/pavelanni/resultportal/internal/model"
	"github.com/pavelanni/resultportal/internal/roster"
	"github.com/pavelanni/resultportal/internal/scan"
	"github.com/pavelanni/resultportal/internal/score"
	"github.com/pavelanni/resultportal/internal/store"
	"github.com/pavelanni/resultportal/internal/store/mongostore"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resultportal",
		Short: "Exam result portal: bulk uploads for admins, gated results for students",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), activateCmd(), createAdminCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `resultportal --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("db-driver", "sqlite", "Record store backend (sqlite, mongo)")
	f.String("db", "resultportal.db", "SQLite database path")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	f.String("mongo-database", "resultportal", "MongoDB database name")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP portal",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(f)
	f.String("upload-dir", "uploads", "Directory for OMR sheets and answer keys")
	f.Int("total-questions", score.DefaultScheme.TotalQuestions, "Questions on the paper")
	f.Float64("max-score", score.DefaultScheme.MaxScore, "Highest possible final score")
	f.String("session-secret", "", "HMAC secret for student sessions (or set RESULTPORTAL_SESSION_SECRET)")
	f.Duration("student-session-ttl", 30*time.Minute, "Lifetime of a student session")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /results)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.StringP("lang", "l", "en", "Default UI language (en, hi)")
	f.String("admin-password", "", "Initial admin password (or set RESULTPORTAL_ADMIN_PASSWORD)")
	f.Bool("require-active", false, "Only let students of the active cohort sign in")
	f.String("activation-schedule", "", "Cron spec for the cohort activation job (empty disables it)")
	f.String("timezone", "Asia/Kolkata", "Time zone that defines a calendar day for cohort activation")
	f.Int64("max-upload-mb", 50, "Maximum upload size in megabytes")
	f.Int("omr-max-width", scan.DefaultOptions.MaxWidth, "Downscale OMR images wider than this (0 keeps the original)")
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export student records and results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.Int("total-questions", score.DefaultScheme.TotalQuestions, "Questions on the paper")
	f.Float64("max-score", score.DefaultScheme.MaxScore, "Highest possible final score")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func activateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate today's cohort and deactivate everyone else",
		RunE:  runActivate,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.String("timezone", "Asia/Kolkata", "Time zone that defines a calendar day")
	addLogFlags(f)
	return cmd
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE:  runCreateAdmin,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.String("username", "", "Login name (required)")
	f.String("display-name", "", "Display name (defaults to username)")
	f.String("password", "", "Password (or set RESULTPORTAL_PASSWORD)")
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("RESULTPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("resultportal")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/resultportal")
	v.AddConfigPath("/etc/resultportal")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// openStore opens the configured record store backend.
func openStore(ctx context.Context, v *viper.Viper) (store.Backend, error) {
	switch driver := strings.ToLower(v.GetString("db-driver")); driver {
	case "", "sqlite":
		db, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		slog.Info("using sqlite store", "path", v.GetString("db"))
		return db, nil
	case "mongo", "mongodb":
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		db, err := mongostore.Open(ctx, v.GetString("mongo-uri"), v.GetString("mongo-database"))
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		slog.Info("using mongo store", "database", v.GetString("mongo-database"))
		return db, nil
	default:
		return nil, fmt.Errorf("unknown db-driver %q (want sqlite or mongo)", driver)
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func sessionSecret(v *viper.Viper) (string, error) {
	if s := v.GetString("session-secret"); s != "" {
		return s, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	slog.Warn("no session-secret configured, generated a random one; student sessions end on restart")
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return err
	}

	files, err := filestore.New(v.GetString("upload-dir"))
	if err != nil {
		return fmt.Errorf("open upload dir: %w", err)
	}

	maxUpload := v.GetInt64("max-upload-mb") << 20
	scheme := score.Scheme{
		TotalQuestions: v.GetInt("total-questions"),
		MaxScore:       v.GetFloat64("max-score"),
	}
	if scheme.TotalQuestions <= 0 {
		return fmt.Errorf("total-questions must be positive, got %d", scheme.TotalQuestions)
	}

	secret, err := sessionSecret(v)
	if err != nil {
		return fmt.Errorf("generate session secret: %w", err)
	}
	tokens, err := gate.NewTokens(secret, v.GetDuration("student-session-ttl"))
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	flagSvc := flags.New(db)
	rosterSvc := roster.New(db, files, roster.Config{
		Scheme:       scheme,
		Scan:         scan.Options{MaxWidth: v.GetInt("omr-max-width"), JPEGQuality: scan.DefaultOptions.JPEGQuality},
		MaxFileBytes: maxUpload,
	})
	gateSvc := gate.New(db, flagSvc,
		gate.WithScheme(scheme),
		gate.RequireActive(v.GetBool("require-active")),
	)

	if spec := v.GetString("activation-schedule"); spec != "" {
		sched, err := cohort.NewScheduler(db, spec, loc)
		if err != nil {
			return fmt.Errorf("activation schedule: %w", err)
		}
		sched.Start()
		defer sched.Stop(context.Background())
		slog.Info("cohort activation scheduled", "spec", spec, "next", sched.Next())
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h, err := handler.New(handler.Deps{
		Store:  db,
		Roster: rosterSvc,
		Gate:   gateSvc,
		Tokens: tokens,
		Flags:  flagSvc,
		Files:  files,
	}, model.PortalConfig{
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		MaxUploadBytes: maxUpload,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(v.GetBool("secure-cookies")))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"lang", lang,
			"base_path", basePath,
			"total_questions", scheme.TotalQuestions,
			"max_score", scheme.MaxScore,
			"require_active", v.GetBool("require-active"),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runActivate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return err
	}
	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := cohort.Run(ctx, db, time.Now(), loc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "activated %d, deactivated %d (day starting %s)\n",
		res.Activated, res.Deactivated, res.DayStart.Format(time.RFC3339))
	return nil
}
