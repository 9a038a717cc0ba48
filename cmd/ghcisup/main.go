package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ghcisup/internal/config"
	"github.com/ehrlich-b/ghcisup/internal/ghci"
	"github.com/ehrlich-b/ghcisup/internal/ghci/hooks"
	"github.com/ehrlich-b/ghcisup/internal/ghci/history"
	"github.com/ehrlich-b/ghcisup/internal/logger"
	"github.com/ehrlich-b/ghcisup/internal/watch"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		commandFlag     string
		errorFileFlag   string
		enableEvalFlag  bool
		restartGlobFlag []string
		reloadGlobFlag  []string
		noInterruptFlag bool
		clearFlag       bool
		tuiFlag         bool
		hookFlag        []string
		watchFlag       []string
		historyDBFlag   string
	)

	root := &cobra.Command{
		Use:   "ghcisup",
		Short: "ghcisup — a file-watching supervisor for a long-lived REPL session",
		Long:  "Keeps a REPL subprocess warm, reloading or restarting it as your source tree changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd, supervisorFlags{
				command:     commandFlag,
				errorFile:   errorFileFlag,
				enableEval:  enableEvalFlag,
				restartGlob: restartGlobFlag,
				reloadGlob:  reloadGlobFlag,
				noInterrupt: noInterruptFlag,
				clear:       clearFlag,
				tui:         tuiFlag,
				hooks:       hookFlag,
				watch:       watchFlag,
				historyDB:   historyDBFlag,
			})
		},
	}

	root.Flags().StringVar(&commandFlag, "command", "", `REPL launch command, e.g. "cabal repl"`)
	root.Flags().StringVar(&errorFileFlag, "error-file", "", "path to write a ghcid-compatible error log")
	root.Flags().BoolVar(&enableEvalFlag, "enable-eval", false, "collect \">>>\" comment markers from targets after each reload (they are not evaluated automatically)")
	root.Flags().StringArrayVar(&restartGlobFlag, "restart-glob", nil, "glob (or !glob to ignore) that always forces a restart")
	root.Flags().StringArrayVar(&reloadGlobFlag, "reload-glob", nil, "glob (or !glob to ignore) that always forces a reload")
	root.Flags().BoolVar(&noInterruptFlag, "no-interrupt-reloads", false, "let an in-progress reload finish before starting the next one")
	root.Flags().BoolVar(&clearFlag, "clear", false, "clear the screen before each reload/restart")
	root.Flags().BoolVar(&tuiFlag, "tui", false, "accepted but has no effect: output is always plain text")
	root.Flags().StringArrayVar(&hookFlag, "hook", nil, `lifecycle hook as "event:command" with an in-REPL command, e.g. "startup-after::set +s"`)
	root.Flags().StringArrayVar(&watchFlag, "watch", nil, "directory to watch (default: current directory)")
	root.Flags().StringVar(&historyDBFlag, "history-db", "", "path to a SQLite database recording compilation history")

	root.AddCommand(versionCmd(), historyCmd(&historyDBFlag))
	return root
}

type supervisorFlags struct {
	command     string
	errorFile   string
	enableEval  bool
	restartGlob []string
	reloadGlob  []string
	noInterrupt bool
	clear       bool
	tui         bool
	hooks       []string
	watch       []string
	historyDB   string
}

func runSupervisor(cmd *cobra.Command, flags supervisorFlags) error {
	if err := logger.Init("info", ""); err != nil {
		return fmt.Errorf("ghcisup: init logger: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("ghcisup: getwd: %w", err)
	}

	fileCfg, err := config.LoadFile(filepath.Join(cwd, ".ghcisup.yaml"))
	if err != nil {
		return err
	}

	opts, err := buildOptions(cmd, flags, fileCfg, cwd)
	if err != nil {
		return err
	}

	var historyDB *history.DB
	if opts.historyDBPath != "" {
		historyDB, err = history.Open(opts.historyDBPath)
		if err != nil {
			return err
		}
		defer historyDB.Close()
		opts.Options.History = historyDB
	}

	session, err := ghci.New(opts.Options)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Initialize(ctx, nil); err != nil {
		return fmt.Errorf("ghcisup: initialize: %w", err)
	}
	defer session.Shutdown()

	roots := opts.watchRoots
	if len(roots) == 0 {
		roots = []string{cwd}
	}
	manager, err := watch.NewManager(session, cwd, roots, opts.Options.NoInterruptReloads)
	if err != nil {
		return err
	}

	logger.Info("ghcisup started", "command", opts.Options.Command, "watching", roots)
	if err := manager.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

type resolvedOptions struct {
	ghci.Options
	watchRoots    []string
	historyDBPath string
}

func buildOptions(cmd *cobra.Command, flags supervisorFlags, fileCfg *config.FileConfig, cwd string) (resolvedOptions, error) {
	command := flags.command
	if command == "" && len(fileCfg.Command) > 0 {
		command = strings.Join(fileCfg.Command, " ")
	}
	if command == "" {
		command = "cabal repl"
	}

	errorFile := flags.errorFile
	if errorFile == "" {
		errorFile = fileCfg.ErrorFile
	}

	restartGlobs := mergeStrings(flags.restartGlob, fileCfg.RestartGlob)
	reloadGlobs := mergeStrings(flags.reloadGlob, fileCfg.ReloadGlob)
	watchRoots := mergeStrings(flags.watch, fileCfg.Watch)
	for i, r := range watchRoots {
		if !filepath.IsAbs(r) {
			watchRoots[i] = filepath.Join(cwd, r)
		}
	}

	hookOpts, err := buildHooks(flags.hooks, fileCfg.Hooks)
	if err != nil {
		return resolvedOptions{}, err
	}

	historyDB := flags.historyDB

	return resolvedOptions{
		Options: ghci.Options{
			Command:            strings.Fields(command),
			WorkDir:            cwd,
			ErrorLogPath:       errorFile,
			EnableEval:         flags.enableEval || fileCfg.EnableEval,
			RestartGlobs:       restartGlobs,
			ReloadGlobs:        reloadGlobs,
			NoInterruptReloads: flags.noInterrupt || fileCfg.NoInterruptReloads,
			Clear:              flags.clear || fileCfg.Clear,
			Hooks:              hookOpts,
		},
		watchRoots:    watchRoots,
		historyDBPath: historyDB,
	}, nil
}

func mergeStrings(flagValues, fileValues []string) []string {
	if len(flagValues) > 0 {
		return flagValues
	}
	return fileValues
}

func buildHooks(flagHooks []string, fileHooks config.HookList) (hooks.Opts, error) {
	var opts hooks.Opts
	for _, spec := range fileHooks {
		event, ok := hooks.ParseEvent(spec.Event)
		if !ok {
			return hooks.Opts{}, fmt.Errorf("ghcisup: unknown hook event %q in config file", spec.Event)
		}
		opts.Hooks = append(opts.Hooks, hooks.Hook{
			Event:   event,
			Command: hooks.Command{Repl: spec.Repl, Shell: spec.Shell, Background: spec.Background},
		})
	}
	for _, raw := range flagHooks {
		eventName, command, ok := strings.Cut(raw, ":")
		if !ok {
			return hooks.Opts{}, fmt.Errorf("ghcisup: --hook %q must be \"event:command\"", raw)
		}
		event, ok := hooks.ParseEvent(strings.TrimSpace(eventName))
		if !ok {
			return hooks.Opts{}, fmt.Errorf("ghcisup: --hook %q: unknown event %q", raw, eventName)
		}
		opts.Hooks = append(opts.Hooks, hooks.Hook{
			Event:   event,
			Command: hooks.Command{Repl: strings.TrimSpace(command)},
		})
	}
	return opts, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the ghcisup version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("ghcisup " + version)
			return nil
		},
	}
}

func historyCmd(dbPath *string) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "show recent compilation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *dbPath == "" {
				return fmt.Errorf("ghcisup: --history-db is required")
			}
			db, err := history.Open(*dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			entries, err := db.Last(last)
			if err != nil {
				return err
			}
			for _, e := range entries {
				status := "ok"
				if !e.Ok {
					status = "failed"
				}
				fmt.Printf("%s  %-10s %-6s modules=%d diagnostics=%d\n",
					e.OccurredAt.Format("2006-01-02 15:04:05"), e.Kind, status, e.Modules, e.Diagnostics)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "number of most recent entries to show")
	return cmd
}
