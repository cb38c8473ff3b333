// Command takeoff inspects project files from the command line: project
// summaries, per-condition quantity reports, and title block extraction.
package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"plan-takeoff/internal/page"
	"plan-takeoff/internal/project"
	"plan-takeoff/internal/titleblock"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "takeoff",
		Short:         "Inspect plan-takeoff project files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(infoCmd(), reportCmd(), sheetsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <project.takeoff>",
		Short: "Print a project summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Project:      %s\n", proj.Name)
			fmt.Printf("Pages:        %d\n", len(proj.Pages))
			fmt.Printf("Conditions:   %d\n", len(proj.Conditions))
			fmt.Printf("Calibrations: %d\n", len(proj.Calibrations))
			fmt.Printf("Measurements: %d\n", len(proj.Measurements))
			fmt.Printf("Annotations:  %d\n", len(proj.Annotations))

			for _, pg := range proj.Pages {
				if pg.SheetNumber == "" && pg.SheetName == "" {
					continue
				}
				fmt.Printf("  page %d: %s %s\n", pg.Number, pg.SheetNumber, pg.SheetName)
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var byPage bool
	cmd := &cobra.Command{
		Use:   "report <project.takeoff>",
		Short: "Print net quantity totals per condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}

			type key struct {
				condID string
				page   int
			}
			totals := make(map[key]float64)
			counts := make(map[key]int)
			for i := range proj.Measurements {
				m := &proj.Measurements[i]
				k := key{condID: m.ConditionID}
				if byPage {
					k.page = m.Page
				}
				totals[k] += m.Net()
				counts[k]++
			}

			keys := make([]key, 0, len(totals))
			for k := range totals {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				if keys[i].condID != keys[j].condID {
					return keys[i].condID < keys[j].condID
				}
				return keys[i].page < keys[j].page
			})

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			if byPage {
				fmt.Fprintln(w, "CONDITION\tPAGE\tCOUNT\tNET TOTAL\tUNIT")
			} else {
				fmt.Fprintln(w, "CONDITION\tCOUNT\tNET TOTAL\tUNIT")
			}
			for _, k := range keys {
				name, unit := condLabel(proj, k.condID)
				if byPage {
					fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%s\n", name, k.page, counts[k], totals[k], unit)
				} else {
					fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", name, counts[k], totals[k], unit)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&byPage, "by-page", false, "break totals down per page")
	return cmd
}

func sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <pages-dir>",
		Short: "Read sheet numbers and names from page title blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := page.NewDirRenderer(args[0])
			if err != nil {
				return err
			}
			engine, err := titleblock.NewEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAGE\tSHEET\tNAME")
			for i := 1; i <= r.PageCount(); i++ {
				img, err := r.Render(i, 0)
				if err != nil {
					fmt.Fprintf(w, "%d\t(error: %v)\t\n", i, err)
					continue
				}
				info, err := engine.Extract(img)
				if err != nil {
					fmt.Fprintf(w, "%d\t(error: %v)\t\n", i, err)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, info.SheetNumber, info.SheetName)
			}
			return w.Flush()
		},
	}
}

func condLabel(proj *project.File, condID string) (name, unit string) {
	for i := range proj.Conditions {
		if proj.Conditions[i].ID == condID {
			return proj.Conditions[i].Name, proj.Conditions[i].Unit
		}
	}
	return condID + " (deleted)", ""
}
