package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/ai"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/config"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/devserver"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/session"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "rdimport",
	Short: "Import payroll, employee, project and expense sheets into an R&D study",
	Long: "rdimport uploads a spreadsheet for analysis, lets you review and correct the suggested " +
		"column mapping, and imports the rows into the study.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a file and print the suggested mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Review the mapping of a file and import it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImport,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token for the study API",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE:  runLogout,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past imports",
	RunE:  runHistory,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the analysis response",
	RunE:  runSchema,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stand-in for the study import API",
	RunE:  runDevServer,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load")

	analyzeCmd.Flags().Bool("json", false, "Print the raw analysis as JSON")

	importCmd.Flags().Bool("yes", false, "Import with the suggested mapping without review")

	loginCmd.Flags().String("token", "", "Access token issued by the study service")
	loginCmd.Flags().Duration("expires-in", 0, "Token lifetime, if known (e.g. 8h)")
	loginCmd.Flags().String("study", "", "Also save this study ID as the default")
	_ = loginCmd.MarkFlagRequired("token")

	historyCmd.Flags().String("since", "", `Only imports after this time (e.g. "yesterday", "last week")`)
	historyCmd.Flags().Int("limit", 20, "Maximum number of imports to show (0 for all)")

	devserverCmd.Flags().String("addr", "", "Listen address (default from config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devserverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to w at the configured level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.LogLevel()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newFileLogger keeps log output off the screen while the TUI runs.
func newFileLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	path, err := cfg.LogFile()
	if err != nil {
		return nil, nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return newLogger(cfg, f), func() { f.Close() }, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	w, err := newWorkflow(cfg, logger)
	if err != nil {
		return err
	}

	rec := w.reconciler()
	res, err := w.analyzeFile(cmd.Context(), rec, args[0])
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	st, ok := rec.State().(reconcile.Reviewing)
	if !ok {
		return fmt.Errorf("analysis was not loaded")
	}
	printReview(os.Stdout, st.Review, rec.CommitTarget(), cfg.Import.AcceptanceThreshold)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	if yes {
		if path == "" {
			return fmt.Errorf("--yes needs a file argument")
		}
		w, err := newWorkflow(cfg, newLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		return w.importNow(cmd.Context(), path)
	}

	logger, closeLog, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	w, err := newWorkflow(cfg, logger)
	if err != nil {
		return err
	}

	app := w.newApp(path)
	p := tea.NewProgram(app)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	result := app.GetResult()
	if len(result.Attempts) == 0 {
		fmt.Println("Nothing imported.")
		return nil
	}
	w.finish(cmd.Context(), result.Attempts)
	fmt.Println(result.Summary())
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	expiresIn, _ := cmd.Flags().GetDuration("expires-in")
	studyID, _ := cmd.Flags().GetString("study")

	path, err := config.SessionPath()
	if err != nil {
		return err
	}

	data := &session.TokenData{AccessToken: token}
	if expiresIn > 0 {
		data.ExpiresAt = time.Now().Add(expiresIn).UTC()
	}
	if err := session.NewFileSession(path, nil).Save(data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if studyID != "" {
		if err := config.SaveStudyID(studyID); err != nil {
			return fmt.Errorf("saving study ID: %w", err)
		}
		fmt.Printf("Default study set to %s\n", studyID)
	}

	fmt.Printf("Token saved to %s\n", path)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	path, err := config.SessionPath()
	if err != nil {
		return err
	}
	if err := session.NewFileSession(path, nil).Clear(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	sinceStr, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	var since time.Time
	if sinceStr != "" {
		t, err := naturaldate.Parse(sinceStr, time.Now(), naturaldate.WithDirection(naturaldate.Past))
		if err != nil {
			return fmt.Errorf("parsing --since %q: %w", sinceStr, err)
		}
		since = t
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	db, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	imports, err := db.ListImports(since, limit)
	if err != nil {
		return fmt.Errorf("listing imports: %w", err)
	}

	printHistory(os.Stdout, imports)
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := analysis.Schema()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(config.DefaultFile()), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func runDevServer(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.DevServer.Addr
	}
	logger := newLogger(cfg, os.Stderr)

	key := cfg.DevServer.OpenAIKey
	if cfg.DevServer.Analyzer == "gemini" {
		key = cfg.DevServer.GeminiKey
	}
	provider, err := ai.NewProvider(ai.Options{
		Kind:   cfg.DevServer.Analyzer,
		Model:  cfg.DevServer.Model,
		APIKey: key,
	}, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      devserver.New(provider, cfg.DevServer.Token, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev server listening", "addr", addr, "analyzer", cfg.DevServer.Analyzer)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting dev server: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down dev server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down dev server: %w", err)
	}
	return nil
}
