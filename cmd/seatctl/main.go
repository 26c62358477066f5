// Command seatctl runs seating maintenance tasks against the configured
// database without going through the HTTP API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-seating-api/internal/app"
	"github.com/noah-isme/sma-seating-api/internal/dto"
	"github.com/noah-isme/sma-seating-api/internal/service"
	"github.com/noah-isme/sma-seating-api/pkg/config"
	"github.com/noah-isme/sma-seating-api/pkg/export"
	"github.com/noah-isme/sma-seating-api/pkg/logger"
)

const (
	Version = "1.0.0"
	appName = "seatctl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// opener builds the wired subsystem. Tests replace it.
type opener func(ctx context.Context, migrate bool) (*app.App, error)

func openApp(ctx context.Context, migrate bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(ctx, cfg, logr, app.Options{ApplySchema: migrate})
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Seating maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		migrateCmd(openApp),
		provisionCmd(openApp),
		healthCmd(openApp),
		repairCmd(openApp),
		seedCmd(openApp),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// withApp opens the subsystem for the lifetime of fn and cancels on SIGINT.
func withApp(cmd *cobra.Command, open opener, migrate bool, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := open(ctx, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("close seating resources", zap.Error(err))
		}
		_ = a.Logger.Sync()
	}()
	return fn(ctx, a)
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, true, func(ctx context.Context, a *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func provisionCmd(open opener) *cobra.Command {
	var start, count int
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a contiguous range of seats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, false, func(ctx context.Context, a *app.App) error {
				seats, err := a.Provisioner.ProvisionBatch(ctx, dto.ProvisionSeatsRequest{StartNumber: start, Count: count})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d seats (%s..%s)\n", len(seats), seats[0].ID, seats[len(seats)-1].ID)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 1, "First seat number")
	cmd.Flags().IntVar(&count, "count", 0, "Number of seats to create")
	_ = cmd.MarkFlagRequired("count")
	return cmd
}

func healthCmd(open opener) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Audit seats against the assignment ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, false, func(ctx context.Context, a *app.App) error {
				report, err := a.Auditor.RunHealthCheck(ctx)
				if err != nil {
					return err
				}
				if format == "json" {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				body, err := export.NewCSVExporter().Render(service.HealthReportDataset(*report))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(body)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format (csv, json)")
	return cmd
}

func repairCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Audit and repair ORPHANED and MISMATCH issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, false, func(ctx context.Context, a *app.App) error {
				summary, err := a.Repairer.RunAutoRepair(ctx)
				if summary != nil {
					if werr := writeJSON(cmd.OutOrStdout(), summary); werr != nil && err == nil {
						err = werr
					}
				}
				return err
			})
		},
	}
}

func seedCmd(open opener) *cobra.Command {
	var (
		file       string
		initialize bool
	)
	cmd := &cobra.Command{
		Use:   "seed [student-id...]",
		Short: "Bulk assign students to seats in seat-number order",
		Long: `Pairs the given students with active seats in seat-number order.
Student ids may also be read from a file, one per line. With --initialize
every existing assignment is removed first; this requires
SEATING_ALLOW_DESTRUCTIVE=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := append([]string{}, args...)
			if file != "" {
				fromFile, err := readStudentIDs(file)
				if err != nil {
					return err
				}
				ids = append(ids, fromFile...)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no student ids given")
			}
			return withApp(cmd, open, false, func(ctx context.Context, a *app.App) error {
				req := dto.BulkAssignRequest{StudentIDs: ids}
				run := a.Provisioner.BulkAssign
				if initialize {
					run = a.Provisioner.Initialize
				}
				items, err := run(ctx, req)
				fmt.Fprintf(cmd.OutOrStdout(), "assigned %d of %d students\n", len(items), len(ids))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one student id per line")
	cmd.Flags().BoolVar(&initialize, "initialize", false, "Wipe existing assignments first")
	return cmd
}

func readStudentIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open student list: %w", err)
	}
	defer f.Close()
	return parseStudentIDs(f)
}

// parseStudentIDs reads one id per line. Blank lines and # comments are skipped.
func parseStudentIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read student list: %w", err)
	}
	return ids, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
