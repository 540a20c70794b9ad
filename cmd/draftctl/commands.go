package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fieldops/field-reports/internal/container"
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/review"
)

var errNotConfirmed = errors.New("refusing to delete without --yes")

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "draftctl",
		Short: "Inspect and manage field report drafts",
		Long: `draftctl works directly against the configured draft store.

Available subcommands:
  schemas  - List the registered report types
  list     - List the drafts of a report type
  show     - Print a draft as its review or as JSON
  validate - Report the required fields a draft is missing
  export   - Write a draft as an xlsx workbook
  submit   - Send a draft to the reports API
  delete   - Remove a draft
  withdraw - Delete a submitted report from the reports API`,
		SilenceUsage: true,
	}

	root.AddCommand(
		schemasCmd(open),
		listCmd(open),
		showCmd(open),
		validateCmd(open),
		exportCmd(open),
		submitCmd(open),
		deleteCmd(open),
		withdrawCmd(open),
	)
	return root
}

// withApp runs fn against a started container and closes it afterwards.
func withApp(cmd *cobra.Command, open opener, fn func(app *container.Container) error) error {
	app, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func schemasCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the registered report types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TYPE\tTITLE\tSECTIONS\tSIGNATURE\tPHOTOS")
				for _, s := range app.Services().Drafts.Schemas() {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ReportType, s.Title, len(s.DynamicSections),
						yesNo(s.RequiresSignature), yesNo(s.RequiresPhotos))
				}
				return w.Flush()
			})
		},
	}
}

func listCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list <type>",
		Short: "List the drafts of a report type, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				drafts, err := app.Services().Drafts.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSAVED\tVERSION\tPROJECT\tDATE\tPHOTOS\tSERVER ID")
				for _, d := range drafts {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
						d.ID, d.SavedAt, d.Version, d.Project, d.Date, d.Photos, d.ServerID)
				}
				return w.Flush()
			})
		},
	}
}

func showCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <type> <id>",
		Short: "Print a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				if asJSON {
					d, err := app.Services().Drafts.Get(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(d)
				}
				view, err := app.Services().Reviews.View(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !view.Found {
					return &entity.NotFoundError{ReportType: args[0], ID: args[1]}
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored draft as JSON")
	return cmd
}

func validateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <type> <id>",
		Short: "Report the required fields a draft is missing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				err := app.Services().Drafts.Validate(cmd.Context(), args[0], args[1])
				var verr *entity.ValidationError
				if errors.As(err, &verr) {
					for _, f := range verr.Fields {
						fmt.Fprintf(cmd.OutOrStdout(), "missing: %s (%s)\n", f.Label, f.Field)
					}
					return fmt.Errorf("%d required fields missing", len(verr.Fields))
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func exportCmd(open opener) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <type> <id>",
		Short: "Write a draft as an xlsx workbook",
		Long: `Write a draft as an xlsx workbook to --out, or archive it under the
configured export directory when --out is omitted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				if out == "" {
					path, err := app.Services().Reviews.Archive(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
					return nil
				}
				return exportToFile(cmd, app, args[0], args[1], out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	return cmd
}

func exportToFile(cmd *cobra.Command, app *container.Container, reportType, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := app.Services().Reviews.Export(cmd.Context(), reportType, id, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func submitCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <type> <id>",
		Short: "Send a draft to the reports API and remove it locally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(app *container.Container) error {
				result, err := app.Services().Reviews.Submit(cmd.Context(), args[0], args[1], 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted as %s (%d photos)\n", result.ServerID, result.Photos)
				return nil
			})
		},
	}
}

func deleteCmd(open opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Remove a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withApp(cmd, open, func(app *container.Container) error {
				if err := app.Services().Drafts.Delete(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", entity.Key(args[0], args[1]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func withdrawCmd(open opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "withdraw <server-id>",
		Short: "Delete a submitted report from the reports API",
		Long: `Delete a report the reports API already holds, by the server id that
submit printed. Local drafts are not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withApp(cmd, open, func(app *container.Container) error {
				client := app.ReportClient()
				if client == nil {
					return errors.New("reports API client is not configured")
				}
				if err := client.DeleteReport(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "withdrew report %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func printView(w io.Writer, v review.View) {
	fmt.Fprintf(w, "%s (%s)\n", v.Title, v.DraftID)
	if v.SavedAt != "" {
		fmt.Fprintf(w, "Last saved %s\n", v.SavedAt)
	}
	for _, g := range v.Groups {
		fmt.Fprintf(w, "\n%s\n", g.Title)
		for _, item := range g.Items {
			fmt.Fprintf(w, "  %s: %s\n", item.Label, dash(item.Value))
		}
		for _, t := range g.Tables {
			printTable(w, t)
		}
	}
	for _, t := range v.Sections {
		printTable(w, t)
	}
	if len(v.Summaries) > 0 {
		fmt.Fprintln(w, "\nSummary")
		for _, item := range v.Summaries {
			fmt.Fprintf(w, "  %s: %s\n", item.Label, dash(item.Value))
		}
	}
	fmt.Fprintf(w, "\nPrepared by: %s\nDate: %s\nSigned: %s\nPhotos: %d\n",
		dash(v.PreparedBy), dash(v.SigDate), yesNo(v.Signature != ""), len(v.Photos))
}

func printTable(w io.Writer, t review.Table) {
	fmt.Fprintf(w, "\n%s\n", t.Label)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range t.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c.Label)
	}
	fmt.Fprintln(tw)
	for _, row := range t.Rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, dash(cell))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
