package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsdash/internal/core"
	"github.com/JonMunkholm/opsdash/internal/database"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newIngestCmd(a *app) *cobra.Command {
	var promote bool
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Stage a CSV or XLSX inventory file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				staged, err := svc.Ingest(cmd.Context(), filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				out := map[string]any{"ingest": staged}
				if promote {
					promoted, err := svc.Promote(cmd.Context(), staged.JobID)
					if err != nil {
						return err
					}
					out["promote"] = promoted
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&promote, "promote", false, "Promote the valid rows once staged")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file>",
		Short: "Show what ingesting a file would do, without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				res, err := svc.Preview(cmd.Context(), filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newPromoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <job>",
		Short: "Promote a job's valid staged rows into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				res, err := svc.Promote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newJobsCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List import jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				jobs, err := svc.ListJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), jobs)
				}
				return writeJobTable(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs (default from STAGING_LIST_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeJobTable(w io.Writer, jobs []database.ImportJob) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFILE\tTOTAL\tVALID\tINVALID\tPROCESSED\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			j.ID, j.Status, j.Filename,
			j.TotalRows, j.ValidRows, j.InvalidRows, j.ProcessedRows,
			j.CreatedAt.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func newInvalidRowsCmd(a *app) *cobra.Command {
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "invalid-rows <job>",
		Short: "Print the rows a job rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				rows, err := svc.ListInvalidRows(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asCSV {
					return core.WriteInvalidRowsCSV(cmd.OutOrStdout(), rows)
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Print CSV with the original columns")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete <job> | --all",
		Short: "Delete a job and its staged rows",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all takes no job id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected one job id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service) error {
				var (
					res core.DeleteResult
					err error
				)
				if all {
					res, err = svc.DeleteAllJobs(cmd.Context())
				} else {
					res, err = svc.DeleteJob(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every job")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an import template",
		Args:  cobra.NoArgs,
		// No configuration or database needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := core.ParseTemplateFormat(format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return core.WriteTemplate(cmd.OutOrStdout(), f)
			}

			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := core.WriteTemplate(file, f); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Template format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
