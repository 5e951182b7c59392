package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/reporter"
)

type options struct {
	file       string
	regions    []string
	categories []string
	monthOrder string
	top        int
	currency   string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "report",
		Short:        "Print KPIs and grouped totals for a sales CSV",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel := pipeline.Selection{}
			if cmd.Flags().Changed("region") {
				sel[pipeline.FieldRegion] = opts.regions
			}
			if cmd.Flags().Changed("category") {
				sel[pipeline.FieldCategory] = opts.categories
			}
			return run(out, opts, sel)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "sales CSV to read (required)")
	flags.StringSliceVar(&opts.regions, "region", nil, "only include these regions (repeatable)")
	flags.StringSliceVar(&opts.categories, "category", nil, "only include these categories (repeatable)")
	flags.StringVar(&opts.monthOrder, "month-order", string(pipeline.MonthOrderDiscovery), "order of the monthly trend: discovery or calendar")
	flags.IntVar(&opts.top, "top", 10, "number of products to list, 0 for all")
	flags.StringVar(&opts.currency, "currency", "₹", "currency symbol printed before amounts")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(out io.Writer, opts options, sel pipeline.Selection) error {
	monthOrder, err := pipeline.ParseMonthOrder(opts.monthOrder)
	if err != nil {
		return err
	}
	if opts.top < 0 {
		return fmt.Errorf("--top must not be negative")
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	dataset, err := pipeline.Load(f)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.file, err)
	}

	report, err := pipeline.BuildReport(dataset, sel, pipeline.Options{
		MonthOrder:  monthOrder,
		TopProducts: opts.top,
	})
	if err != nil {
		return fmt.Errorf("report %s: %w", opts.file, err)
	}

	return reporter.New(out, opts.currency).Write(filepath.Base(opts.file), report)
}
