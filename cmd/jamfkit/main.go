// jamfkit - extraction and migration jobs for Jamf Pro
//
// Main CLI entrypoint. Provides commands for running jobs, issuing the
// software update plan, and exposing saved exports via MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/macadmin-tools/jamfkit/internal/config"
	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/jamf"
	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/job/custom"
	"github.com/macadmin-tools/jamfkit/internal/logging"
	"github.com/macadmin-tools/jamfkit/internal/mcpserver"
	"github.com/macadmin-tools/jamfkit/internal/message"
	"github.com/macadmin-tools/jamfkit/internal/migrate"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	csvreport "github.com/macadmin-tools/jamfkit/internal/report/csv"
	htmlreport "github.com/macadmin-tools/jamfkit/internal/report/html"
	jsonreport "github.com/macadmin-tools/jamfkit/internal/report/json"
	"github.com/macadmin-tools/jamfkit/internal/updateplan"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitFailure     = 1
	exitAuth        = 2
	exitEnumeration = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		message.Error("%v", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jamfkit",
		Short: "jamfkit - extraction and migration jobs for Jamf Pro",
		Long: `jamfkit runs one-shot jobs against the Jamf Pro API: it authenticates,
lists a collection, fetches every resource and writes the records a job
keeps to CSV, JSON or HTML.

` + config.EnvHelp,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the YAML config file (default "+config.DefaultFile+" if present)")
	flags.String("url", "", "Jamf Pro URL (or set JAMF_URL)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", logging.FormatText, "Log format: text or json")
	flags.Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newRunCmd(),
		newJobsCmd(),
		newPlanCmd(),
		newMCPCmd(),
	)
	return rootCmd
}

// --- Helper Functions ---

// exitCode maps fatal run errors to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, jamf.ErrAuth):
		return exitAuth
	case errors.Is(err, jamf.ErrEnumeration):
		return exitEnumeration
	default:
		return exitFailure
	}
}

// loadConfig layers the config file, the environment and the --url flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		cfg.URL = u
	}
	cfg.ResolveAuthMethod()
	return cfg, nil
}

// newLogger builds the run's logger from the global flags and configures the
// console messages to match.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	noColor, _ := cmd.Flags().GetBool("no-color")

	message.SetNoColor(noColor || !logging.IsTerminal(os.Stderr))
	return logging.New(os.Stderr, level, format, noColor)
}

// resolveJob returns the ad hoc job in jobFile, or the registered job name.
func resolveJob(name, jobFile string, p job.Params) (*job.Job, error) {
	if jobFile == "" {
		if name == "" {
			return nil, fmt.Errorf("a job name or --job-file is required; available: %v", job.List())
		}
		return job.Build(name, p)
	}

	def, err := custom.LoadFile(jobFile)
	if err != nil {
		return nil, err
	}
	j, err := def.Job()
	if err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// runJob executes j against the configured instance and wraps the result in
// an export.
func runJob(ctx context.Context, cfg config.Config, j *job.Job, logger *slog.Logger, opts ...jamf.Option) (*export.Export, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	client, err := jamf.NewClient(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	res, err := migrate.New(client, logger).Run(ctx, j)
	if err != nil {
		return nil, err
	}

	e := export.New(j.Name, j.Endpoint.Collection, client.BaseURL(), runID)
	e.Columns = j.Columns
	e.KeyField = j.KeyField
	e.Summary = res.Summary
	e.Records = res.Records
	return e, nil
}

// generateReport renders e in the given format.
func generateReport(w io.Writer, e *export.Export, format string, raw bool) error {
	switch format {
	case job.FormatCSV:
		reporter := &csvreport.Reporter{}
		return reporter.Generate(w, e)
	case job.FormatJSON:
		reporter := &jsonreport.Reporter{Raw: raw}
		return reporter.Generate(w, e)
	case job.FormatHTML:
		reporter := &htmlreport.Reporter{}
		return reporter.Generate(w, e)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeReport writes e to output, or to stdout when output is "-".
func writeReport(e *export.Export, output, format string, raw bool) error {
	if output == "-" {
		return generateReport(os.Stdout, e, format, raw)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := generateReport(f, e, format, raw); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	return f.Close()
}

// outputSettings resolves the report format and raw mode for j. Flags that
// were not set fall back to the job's defaults.
func outputSettings(cmd *cobra.Command, j *job.Job) (string, bool, error) {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = j.Format
	}
	switch format {
	case job.FormatCSV, job.FormatJSON, job.FormatHTML:
	default:
		return "", false, fmt.Errorf("unsupported output format: %s", format)
	}
	if format == job.FormatCSV && len(j.Columns) == 0 {
		return "", false, fmt.Errorf("job %s emits whole resources and cannot be written as csv", j.Name)
	}

	raw := j.Raw
	if cmd.Flags().Changed("raw") {
		raw, _ = cmd.Flags().GetBool("raw")
	}
	return format, raw, nil
}

// defaultOutput names the output file after the job.
func defaultOutput(jobName, format string) string {
	return filepath.Clean(jobName + "." + format)
}

// --- Commands ---

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [job]",
		Short: "Run a job (authenticate + enumerate + fetch + write)",
		Long: `Connects to a Jamf Pro instance, lists the job's collection, fetches
every resource and writes the records the job keeps.

Resources that cannot be fetched, decoded or transformed are skipped and
reported; authentication and enumeration failures abort the run without
writing output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("source-site") {
				cfg.SourceSite, _ = cmd.Flags().GetInt("source-site")
			}
			if cmd.Flags().Changed("search-id") {
				cfg.SearchID, _ = cmd.Flags().GetInt("search-id")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var name string
			if len(args) > 0 {
				name = args[0]
			}
			jobFile, _ := cmd.Flags().GetString("job-file")
			j, err := resolveJob(name, jobFile, job.Params{SourceSite: cfg.SourceSite, SearchID: cfg.SearchID})
			if err != nil {
				return err
			}

			format, raw, err := outputSettings(cmd, j)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = defaultOutput(j.Name, format)
			}
			exportOutput, _ := cmd.Flags().GetString("save-export")

			message.Info("Running %s against %s", j.Name, cfg.URL)
			e, err := runJob(ctx, cfg, j, logger)
			if err != nil {
				return err
			}

			if exportOutput != "" {
				if err := export.Save(e, exportOutput); err != nil {
					return err
				}
				message.Info("Export saved to %s", exportOutput)
			}

			if err := writeReport(e, output, format, raw); err != nil {
				return err
			}

			s := e.Summary
			message.Success("%d of %d resources written to %s", s.Emitted, s.Listed, output)
			if s.ByReason[outcome.Declined] > 0 {
				message.Info("%d resources declined by the job", s.ByReason[outcome.Declined])
			}
			if s.Replaced > 0 {
				message.Warning("%d records replaced by a later record with the same %s", s.Replaced, e.KeyField)
			}
			if failed := s.Failed(); failed > 0 {
				message.Warning("%d resources skipped because of errors; see the log for details", failed)
			}
			return nil
		},
	}

	cmd.Flags().String("job-file", "", "Run the job defined in this YAML file instead of a registered job")
	cmd.Flags().String("output", "", "Output file path, or - for stdout (default <job>.<format>)")
	cmd.Flags().String("format", "", "Output format: csv, json or html (default: the job's format)")
	cmd.Flags().Bool("raw", false, "With --format json, write only the array of records (default: the job's setting)")
	cmd.Flags().Int("source-site", 0, "Site ID whose resources are migrated (or set JAMF_SOURCE_SITE)")
	cmd.Flags().Int("search-id", 0, "Advanced search ID to enumerate instead of the whole collection")
	cmd.Flags().String("save-export", "", "Also save the full export envelope to this JSON file")

	return cmd
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage and list available jobs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJobs(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}

func printJobs(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	names := job.List()
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, job.Description(name))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal: %d jobs\n", len(names))
	return err
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Issue a managed software update plan for a group",
		Long: `Posts a plan that downloads and installs the latest OS update on a
computer or mobile device group, forced at 22:00 on the upcoming Saturday in
the configured UTC offset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			plan, err := buildPlan(cmd, cfg.UpdatePlan, time.Now())
			if err != nil {
				return err
			}

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling plan: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			client, err := jamf.NewClient(cfg, logger)
			if err != nil {
				return err
			}
			cred, err := client.Authenticate(ctx)
			if err != nil {
				return err
			}
			status, err := updateplan.Issue(ctx, client, cred, plan, logger)
			if err != nil {
				return err
			}
			message.Success("Update plan for group %s accepted (HTTP %d), deadline %s",
				plan.Group.GroupID, status, plan.Config.ForceInstallLocalDateTime)
			return nil
		},
	}

	cmd.Flags().Int("group-id", 0, "Smart group to target (or update_plan.group_id in the config file)")
	cmd.Flags().String("object-type", "", "COMPUTER_GROUP or MOBILE_DEVICE_GROUP (default COMPUTER_GROUP)")
	cmd.Flags().String("utc-offset", "", "UTC offset the deadline is expressed in (default "+updateplan.DefaultUTCOffset+")")
	cmd.Flags().Bool("dry-run", false, "Print the plan payload without posting it")

	return cmd
}

// buildPlan merges the plan flags over the configured settings and computes
// the deadline from now.
func buildPlan(cmd *cobra.Command, settings config.UpdatePlan, now time.Time) (updateplan.Plan, error) {
	if cmd.Flags().Changed("group-id") {
		settings.GroupID, _ = cmd.Flags().GetInt("group-id")
	}
	if v, _ := cmd.Flags().GetString("object-type"); v != "" {
		settings.ObjectType = v
	}
	if v, _ := cmd.Flags().GetString("utc-offset"); v != "" {
		settings.UTCOffset = v
	}
	if settings.ObjectType == "" {
		settings.ObjectType = updateplan.ComputerGroup
	}
	if settings.UTCOffset == "" {
		settings.UTCOffset = updateplan.DefaultUTCOffset
	}

	loc, err := updateplan.Zone(settings.UTCOffset)
	if err != nil {
		return updateplan.Plan{}, err
	}
	return updateplan.NewPlan(settings.GroupID, settings.ObjectType, updateplan.NextDeadline(now, loc))
}

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp <export.json>",
		Short: "Start the MCP server for AI-assisted export analysis",
		Long: `Starts a Model Context Protocol (MCP) server over stdio.
Loads an export saved with run --save-export and exposes its records and
skipped resources as MCP tools and resources.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}

			e, err := export.Load(args[0])
			if err != nil {
				return err
			}
			logger.Info("Loaded export", "path", args[0], "job", e.Job, "records", len(e.Records))

			mcpSrv := mcpserver.NewMCPServer(e, version)

			logger.Info("Starting MCP server on stdio")
			if err := server.ServeStdio(mcpSrv); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	return cmd
}
