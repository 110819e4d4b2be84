package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rowjay/kibana-dashboard-backup/internal/app"
	"github.com/rowjay/kibana-dashboard-backup/internal/config"
	"github.com/rowjay/kibana-dashboard-backup/internal/convert"
	"github.com/rowjay/kibana-dashboard-backup/internal/docstore"
	"github.com/rowjay/kibana-dashboard-backup/internal/logging"
	"github.com/rowjay/kibana-dashboard-backup/internal/notify"
	"github.com/rowjay/kibana-dashboard-backup/internal/storage"
	"github.com/rowjay/kibana-dashboard-backup/internal/version"
)

// errUnhealthy makes verify-backups exit 1 without cobra's error banner; the
// reason has already been printed.
var errUnhealthy = errors.New("backup verification failed")

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	ESHost      string
	ESPort      int
	Index       string
	Host        string
	Storage     string
	LocalPath   string
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	Prefix      string
	Compression string
}

func main() {
	os.Exit(execute(newRootCmd(os.Stdout, os.Stderr)))
}

// execute runs the command tree and returns the process exit code. Errors
// from run have already been logged; argument and flag errors from cobra
// have not, so they are printed here.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var logged *loggedError
	if !errors.Is(err, errUnhealthy) && !errors.As(err, &logged) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return 1
}

// loggedError marks an error that run has already reported.
type loggedError struct{ err error }

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:           "kdb",
		Short:         "Back up, restore and migrate Kibana dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.ESHost, "es-host", "", "Elasticsearch host")
	rootCmd.PersistentFlags().IntVar(&overrides.ESPort, "es-port", 0, "Elasticsearch port")
	rootCmd.PersistentFlags().StringVar(&overrides.Index, "index", "", "Index holding the dashboards")
	rootCmd.PersistentFlags().StringVar(&overrides.Host, "host", "", "Host name used in backup keys (default: this machine)")
	rootCmd.PersistentFlags().StringVar(&overrides.Storage, "storage", "", "Storage backend (s3, local)")
	rootCmd.PersistentFlags().StringVar(&overrides.LocalPath, "storage-path", "", "Local storage path")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Bucket, "bucket", "", "S3 bucket")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Region, "s3-region", "", "S3 region")
	rootCmd.PersistentFlags().StringVar(&overrides.Prefix, "prefix", "", "Key prefix for backups")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newVerifyCmd(root, overrides))
	rootCmd.AddCommand(newListBackupsCmd(root, overrides))
	rootCmd.AddCommand(newPrintBackupCmd(root, overrides))
	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newListDashboardsCmd(root, overrides))
	rootCmd.AddCommand(newDeleteDashboardsCmd(root, overrides))
	rootCmd.AddCommand(newExportCmd(root, overrides))
	rootCmd.AddCommand(newImportCmd(root, overrides))
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// run loads and validates config, builds the clients and hands the app to
// fn under the operation timeout. Once the logger exists, failures are logged
// and returned as loggedError so execute does not print them twice.
func run(cmd *cobra.Command, root *rootFlags, overrides *overrideFlags, fn func(ctx context.Context, svc *app.App) error) error {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return err
	}
	logger := logging.ConfigureWriter(cmd.ErrOrStderr(), cfg.Global.LogLevel, cfg.Global.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return &loggedError{err}
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("storage setup failed")
		return &loggedError{err}
	}
	svc := app.New(cfg, docstore.New(cfg.Search), store, logger, notify.FromConfig(cfg.Notifications))

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Global.OperationTimeout)
	defer cancel()

	if err := fn(ctx, svc); err != nil {
		if errors.Is(err, errUnhealthy) {
			return err
		}
		logger.Error().Err(err).Str("command", cmd.Name()).Msg("command failed")
		return &loggedError{err}
	}
	return nil
}

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [format...]",
		Short: "Snapshot every dashboard to the bucket",
		Long: `Snapshot every dashboard and upload it once per format.

Formats are strftime patterns rendered in lower case, so "%A" keeps one
backup per weekday, "%B" one per month, and a literal such as "today" is
rewritten on every run. Defaults: %A %B today.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				res, err := svc.Backup(ctx, args)
				if err != nil {
					return err
				}
				for _, key := range res.Keys {
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded backup to %s\n", key)
				}
				svc.Log.Info().Strs("keys", res.Keys).Int("dashboards", res.Documents).Int64("size", res.SizeBytes).Msg("backup completed")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&overrides.Compression, "compression", "", "Snapshot compression (none, gzip, zstd)")
	return cmd
}

func newVerifyCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-backups",
		Short: "Check that today's backup exists, is non-empty and recent (exit 1 otherwise)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				health, err := svc.Verify(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), capitalize(health.Reason))
				if health.ExitCode() != 0 {
					return errUnhealthy
				}
				return nil
			})
		},
	}
}

func newListBackupsCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List dashboard backups under the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				items, err := svc.ListBackups(ctx)
				if err != nil {
					return err
				}
				for _, item := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "Kibana dashboard backup: %s (%s, %s)\n",
						item.Key, humanize.Bytes(uint64(item.Size)), item.Modified.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func newPrintBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "print-backup <key>",
		Short: "Print the contents of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				return svc.PrintBackup(ctx, args[0], cmd.OutOrStdout())
			})
		},
	}
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "restore-dashboards <key>",
		Short: "Restore every dashboard in a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				if dryRun {
					svc.Cfg.Restore.DryRun = true
				}
				res, err := svc.Restore(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d dashboards from %s (%d failed)\n", res.Restored, res.Key, res.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log what would be restored without writing")
	return cmd
}

func newListDashboardsCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-dashboards",
		Short: "List dashboards stored in Elasticsearch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				ids, err := svc.ListDashboards(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Dashboards:")
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
				}
				return nil
			})
		},
	}
}

func newDeleteDashboardsCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-dashboards",
		Short: "Delete every dashboard from Elasticsearch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				res, err := svc.DeleteDashboards(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d dashboards (%d failed)\n", res.Deleted, res.Failed)
				return nil
			})
		},
	}
}

func newExportCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export-dashboard <id> <path>",
		Short: "Write one dashboard's JSON to a file (.gz/.zst compress)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				if err := svc.ExportDashboard(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dashboard exported to: %s\n", args[1])
				return nil
			})
		},
	}
}

func newImportCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import-dashboard <id> <path>",
		Short: "Create or replace one dashboard from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, overrides, func(ctx context.Context, svc *app.App) error {
				if err := svc.ImportDashboard(ctx, args[0], args[1]); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "FAILED.")
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Success.")
				return nil
			})
		},
	}
}

func newConvertCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "convert-v0-to-v1 <in> <out>",
		Short: "Rewrite a dashboard from logstash event-v0 to event-v1 field names",
		Long: `Rewrite a dashboard from logstash event-v0 to event-v1 field names.

--mode text (default) rewrites the raw file with patterns and matches files
converted by earlier tooling byte for byte, but also rewrites any "@" inside
string values. --mode structural parses the JSON and only touches keys and
values that are field references; its output is re-encoded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := convert.ByName(mode)
			if err != nil {
				return err
			}
			if err := app.ConvertFile(args[0], args[1], conv); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s (%s)\n", args[0], args[1], conv.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", convert.ModeText, "Conversion mode (text, structural)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kdb %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.ESHost != "" {
		cfg.Search.Host = overrides.ESHost
	}
	if overrides.ESPort != 0 {
		cfg.Search.Port = overrides.ESPort
	}
	if overrides.Index != "" {
		cfg.Search.Index = overrides.Index
	}
	if overrides.Host != "" {
		cfg.Backup.Host = overrides.Host
	}

	if overrides.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(overrides.Storage)
	}
	if overrides.LocalPath != "" {
		cfg.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3Region != "" {
		cfg.Storage.S3.Region = overrides.S3Region
	}
	if overrides.Prefix != "" {
		cfg.Storage.Prefix = overrides.Prefix
	}
	if overrides.Compression != "" {
		cfg.Backup.Compression = strings.ToLower(overrides.Compression)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
