package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"geodash/internal/filter"
	"geodash/internal/loader"
	"geodash/internal/sheet"
)

func newExportCommand() *cobra.Command {
	var (
		out      string
		format   string
		places   []string
		types    []string
		search   string
		kwMin    float64
		kwMax    float64
		yearFrom int
		yearTo   int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the loaded (and optionally filtered) records",
		Example: `  # Everything as a workbook
  geodash export --out anschluesse.xlsx

  # Only Worth, 2022 onwards, as CSV on stdout
  geodash export --format csv --ort Worth --year-from 2022`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			s := filter.State{Places: places, Types: types, Search: search}
			s.Years = filter.YearRange{From: yearFrom, To: yearTo}
			if cmd.Flags().Changed("kw-min") {
				s.KW.Min = &kwMin
			}
			if cmd.Flags().Changed("kw-max") {
				s.KW.Max = &kwMax
			}

			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			}
			if format == "" {
				format = "xlsx"
			}
			if format != "xlsx" && format != "csv" {
				return fmt.Errorf("unknown export format %q (want xlsx or csv)", format)
			}
			if format == "xlsx" && (out == "" || out == "-") {
				return fmt.Errorf("--out is required for xlsx")
			}

			src, closeSrc, err := a.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSrc()

			res := a.newLoader(src).Load(cmd.Context(), loader.LogNotifier{Log: a.log})
			recs := filter.Apply(res.Records, s, time.Now())

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "csv" {
				err = sheet.WriteCSV(w, recs)
			} else {
				err = sheet.WriteWorkbook(w, recs)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			a.log.Info().Int("records", len(recs)).Int("loaded", res.Total).Str("format", format).Msg("export finished")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&out, "out", "", "Output file; - or empty writes CSV to stdout")
	f.StringVar(&format, "format", "", "xlsx or csv (default from --out extension)")
	f.StringSliceVar(&places, "ort", nil, "Only these places")
	f.StringSliceVar(&types, "art", nil, "Only these connection types")
	f.StringVar(&search, "search", "", "Free-text search")
	f.Float64Var(&kwMin, "kw-min", 0, "Minimum KW")
	f.Float64Var(&kwMax, "kw-max", 0, "Maximum KW")
	f.IntVar(&yearFrom, "year-from", 0, "First year")
	f.IntVar(&yearTo, "year-to", 0, "Last year")
	return cmd
}
