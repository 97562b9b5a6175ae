package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"wake-go/internal/app"
	"wake-go/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a WakeApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CreateAlarm", "Sync").
func newApp(cmd *cobra.Command, operation string) (*app.WakeApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewWakeApp(cmd.Context(), cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("passphrase required but stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:           "wake",
	Short:         "Alarm clock that keeps OS notifications in sync",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration, database and backup keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		passphrase, err := readPassphrase("Backup key passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if err := app.InitStorage(cfg, passphrase); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		fmt.Printf("Platform:  %s\n", cfg.Platform.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Platform:  %s\n", cfg.Platform.Type)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Snooze:    %s\n", cfg.Alarms.Snooze())
		fmt.Printf("Autostart: %t\n", cfg.Boot.Autostart)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:     %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configAutostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Run 'wake boot' at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		enable, _ := cmd.Flags().GetBool("enable")
		disable, _ := cmd.Flags().GetBool("disable")
		if enable == disable {
			return fmt.Errorf("pass exactly one of --enable or --disable")
		}

		cfg, path, err := readConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "SetAutostart")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetAutostart(enable); err != nil {
			return err
		}
		cfg.Boot.Autostart = enable
		if err := config.Save(path, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Autostart: %t\n", enable)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile OS notifications with the alarm list",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Printf("Created %d, cancelled %d, unchanged %d\n", report.Created, report.Cancelled, report.Unchanged)
		for _, f := range report.Failures {
			fmt.Printf("  failed: %s\n", f.Error())
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how each alarm compares to the OS",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Platform: %s\n\n", report.Platform)
		if len(report.Alarms) == 0 {
			fmt.Println("No alarms.")
		}
		for _, s := range report.Alarms {
			next := "-"
			if !s.NextTrigger.IsZero() {
				next = s.NextTrigger.Local().Format("Mon 2006-01-02 15:04")
			}
			fmt.Printf("%-9s %s  %s %s  %-10s next %s\n",
				s.State, shortID(s.Alarm.ID), s.Alarm.Time, s.Alarm.Period, s.Alarm.Schedule, next)
			if s.Err != nil {
				fmt.Printf("          %v\n", s.Err)
			}
		}
		for _, e := range report.Orphans {
			fmt.Printf("orphan    %s\n", e.Handle)
		}
		return nil
	},
}

// boot command
var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Repair OS notifications after login or reboot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Boot")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Boot(cmd.Context())
	},
}

// permissions command
var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Show or request alarm permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		request, _ := cmd.Flags().GetBool("request")
		open, _ := cmd.Flags().GetString("open")

		a, err := newApp(cmd, "Permissions")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if request {
			fmt.Printf("Notifications granted: %t\n", a.RequestPermissions(ctx))
		}
		if open != "" {
			if err := a.OpenSettings(ctx, open); err != nil {
				return err
			}
		}

		p := a.Permissions(ctx)
		fmt.Printf("notifications  %s\n", p.Notifications)
		fmt.Printf("exact-alarm    %s\n", p.ExactAlarms)
		fmt.Printf("full-screen    %s\n", p.FullScreenIntent)
		fmt.Printf("battery        %s\n", p.BatteryOptimization)
		for _, page := range p.Missing() {
			fmt.Printf("  fix with: wake permissions --open %s\n", page)
		}
		return nil
	},
}

// snooze command
var snoozeCmd = &cobra.Command{
	Use:   "snooze ID",
	Short: "Re-fire an alarm after the snooze interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Snooze")
		if err != nil {
			return err
		}
		defer a.Close()

		at, err := a.Snooze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Snoozed until %s\n", at.Local().Format("15:04:05"))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View dismissed alarms",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(h.Completions) == 0 {
			fmt.Println("No completions recorded.")
			return nil
		}

		for _, c := range h.Completions {
			fmt.Printf("%s  %s  score %3d  reaction %-8s  late %s\n",
				c.Date,
				shortID(c.AlarmID),
				c.CognitiveScore,
				c.ReactionTime.Truncate(time.Second),
				c.ActualTime.Sub(c.TargetTime).Truncate(time.Second),
			)
		}
		fmt.Printf("\n%d completion(s), average score %.1f, best %d, average reaction %s\n",
			h.Summary.Count, h.Summary.AverageScore, h.Summary.BestScore,
			h.Summary.AverageReaction.Truncate(time.Second))
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetOperations")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.Operations(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-7s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot of the alarm database",
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")

		a, err := newApp(cmd, "Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if check {
			if err := a.CheckVault(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Vault reachable.")
			return nil
		}

		res, err := a.Backup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Uploaded %d bytes, version %d\n", res.Size, res.Version)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download this device's snapshot to a new file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp(cmd, "Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.NeedsPassphrase() {
			passphrase, err = readPassphrase("Backup key passphrase: ")
			if err != nil {
				return err
			}
		}

		path, err := a.Restore(cmd.Context(), passphrase, out)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored to %s\n", path)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log to stderr as well")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAutostartCmd)
	configAutostartCmd.Flags().Bool("enable", false, "Register the login item")
	configAutostartCmd.Flags().Bool("disable", false, "Remove the login item")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(alarmCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(permissionsCmd)
	permissionsCmd.Flags().Bool("request", false, "Show the notification permission prompt")
	permissionsCmd.Flags().String("open", "", "Open a settings page (notifications, exact-alarm, full-screen, battery)")
	rootCmd.AddCommand(osCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(ringCmd)
	rootCmd.AddCommand(snoozeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of completions to show")
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().Bool("check", false, "Only verify the vault is reachable")
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("out", "o", "", "Path for the restored database (must not exist)")
	restoreCmd.MarkFlagRequired("out")
}
