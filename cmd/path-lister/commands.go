package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mainbong/path_lister/internal/config"
	"github.com/mainbong/path_lister/internal/files"
	"github.com/mainbong/path_lister/internal/filesystem"
	"github.com/mainbong/path_lister/internal/lister"
	"github.com/mainbong/path_lister/internal/logger"
	"github.com/mainbong/path_lister/internal/terminal"
	"github.com/mainbong/path_lister/internal/watch"
)

const version = "v0.1.0"

// app carries state shared by every command of one invocation
type app struct {
	cfg        *config.Config
	configPath string
	devMode    bool
	noColor    bool
}

// listFlags are the per-run overrides accepted by the list and watch commands
type listFlags struct {
	root      string
	output    string
	join      string
	backupDir string
	stdout    bool
}

type target struct {
	root   string
	output string
	opts   lister.Options
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var flags listFlags

	rootCmd := &cobra.Command{
		Use:   "path-lister [root] [output]",
		Short: "Write every file under a directory as a quoted, comma-terminated line",
		Long: `path-lister walks a directory tree and writes one line per file,
shaped like "svgsicon.svg", so the result can be pasted inside an array literal.

Root and output default to the values in ~/.path-lister/config.json.`,
		Args:              cobra.MaximumNArgs(2),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, args, &flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (.json, .yaml or .toml)")
	rootCmd.PersistentFlags().BoolVar(&a.devMode, "dev", false, "write log files to the current directory")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")
	addListFlags(rootCmd, &flags)
	rootCmd.Flags().BoolVar(&flags.stdout, "stdout", false, "print lines to stdout instead of writing the output file")

	rootCmd.AddCommand(a.newWatchCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func addListFlags(cmd *cobra.Command, flags *listFlags) {
	cmd.Flags().StringVarP(&flags.root, "root", "r", "", "directory to list")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "file that receives the lines (truncated)")
	cmd.Flags().StringVarP(&flags.join, "join", "j", "", "how root and relative path combine: concat, separator or relative")
	cmd.Flags().StringVar(&flags.backupDir, "backup-dir", "", "copy an existing output file here before overwriting it")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// version needs neither config nor logger
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "path-lister %s\n", version)
		},
	}
}

func (a *app) newWatchCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "watch [root] [output]",
		Short: "Write the list, then rewrite it whenever files under root change",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, &flags)
		},
	}
	addListFlags(cmd, &flags)
	return cmd
}

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			path := a.configPath
			if path == "" {
				path = config.GetConfigFile()
			}
			if path == "" {
				return errors.New("no config file to save to: home directory is not set, use --config")
			}
			if err := a.cfg.SaveWithFS(filesystem.NewOSFileSystem(), path); err != nil {
				return err
			}
			logger.Info("Config %s set to %s in %s", args[0], args[1], path)
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := files.Marshal(files.TypeYAML, a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return configCmd
}

// setup loads configuration and starts the logger before any command runs.
// Neither an unusable home directory nor an unusable log directory stops a
// command; the defaults apply and nothing is logged.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	terminal.ConfigureColor(os.Stdout, a.noColor)

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := a.cfg.Level()
	if err != nil {
		return err
	}

	logDir := a.cfg.LogDir
	if a.devMode {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine current directory: %w", err)
		}
		logDir = cwd
	}

	if logDir == "" {
		logger.SetDefault(nil)
		return nil
	}
	if err := logger.Init(logDir, level); err != nil {
		logger.SetDefault(nil)
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "Warning: logging disabled: %v\n", err)
		return nil
	}
	logger.Info("path-lister %s: %s", version, cmd.CommandPath())
	return nil
}

// resolve merges config, positional arguments and flags, in increasing priority
func (a *app) resolve(cmd *cobra.Command, args []string, flags *listFlags) (*target, error) {
	t := &target{
		root:   a.cfg.Root,
		output: a.cfg.Output,
	}
	join := a.cfg.Join
	backupDir := a.cfg.BackupDir

	if len(args) > 0 {
		t.root = args[0]
	}
	if len(args) > 1 {
		t.output = args[1]
	}
	if cmd.Flags().Changed("root") {
		t.root = flags.root
	}
	if cmd.Flags().Changed("output") {
		t.output = flags.output
	}
	if cmd.Flags().Changed("join") {
		join = flags.join
	}
	if cmd.Flags().Changed("backup-dir") {
		backupDir = flags.backupDir
	}

	if t.root == "" {
		return nil, errors.New("no root directory given")
	}
	if t.output == "" && !flags.stdout {
		return nil, errors.New("no output file given")
	}

	mode, err := lister.ParseJoinMode(join)
	if err != nil {
		return nil, err
	}

	t.opts = lister.Options{
		Join:      mode,
		BackupDir: backupDir,
		Notice:    cmd.OutOrStdout(),
	}
	logger.Debug("Resolved root=%s output=%s join=%s backup_dir=%s", t.root, t.output, mode, backupDir)
	return t, nil
}

func (a *app) runList(cmd *cobra.Command, args []string, flags *listFlags) error {
	t, err := a.resolve(cmd, args, flags)
	if err != nil {
		return err
	}

	if flags.stdout {
		t.opts.Notice = nil
		count, err := lister.New(t.opts).WriteTo(t.root, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		logger.Info("Printed %d files from %s", count, t.root)
		return nil
	}

	_, err = lister.New(t.opts).List(t.root, t.output)
	return err
}

func (a *app) runWatch(cmd *cobra.Command, args []string, flags *listFlags) error {
	t, err := a.resolve(cmd, args, flags)
	if err != nil {
		return err
	}

	l := lister.New(t.opts)
	if _, err := l.List(t.root, t.output); err != nil {
		return err
	}

	// the backup dir may sit under root; its writes must not retrigger a run
	w, err := watch.NewWatcher(t.root, t.output, t.opts.BackupDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.New(color.FgHiBlack).Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", t.root)
	logger.Info("Watching %s", t.root)

	err = w.Run(ctx, func() {
		if _, err := l.List(t.root, t.output); err != nil {
			// keep watching; the next change may fix it
			color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("Stopped watching %s", t.root)
		return nil
	}
	return err
}
