// Command contract_fields inspects contract templates: the AcroForm fields of
// a PDF, and how each configured contract type's template lines up with the
// field catalog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/config"
	"github.com/cesuma/contratos-api/internal/pdf/form"
	"github.com/cesuma/contratos-api/internal/service"
	"github.com/cesuma/contratos-api/internal/templates"
)

type options struct {
	format      string
	templateDir string
	catalogFile string
	sortFields  bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "contract_fields",
		Short: "Inspect contract template form fields",
		Long: `contract_fields lists the AcroForm fields of contract templates and checks
them against the field catalog.

Examples:
  contract_fields inspect templates/contrato_doctorado.pdf
  contract_fields fields maestria --format json
  contract_fields verify --templates ./templates`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text, json")
	root.PersistentFlags().StringVar(&opts.templateDir, "templates", config.DefaultTemplateDir, "Template directory")
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "Catalog file (default is the embedded catalog)")

	inspect := &cobra.Command{
		Use:   "inspect <pdf_file>",
		Short: "List the form fields of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), opts, args[0])
		},
	}
	inspect.Flags().BoolVar(&opts.sortFields, "sort", false, "Order fields by name instead of document order")

	root.AddCommand(
		inspect,
		&cobra.Command{
			Use:   "fields <contract_type>",
			Short: "List the fields of a contract type's template with catalog coverage",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runFields(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check every configured template",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runVerify(cmd.Context(), cmd.OutOrStdout(), opts)
			},
		},
	)

	return root
}

func runInspect(out io.Writer, opts *options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	found, err := form.InspectBytes(data)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if opts.sortFields {
		form.SortByName(found)
	}

	if opts.format == "json" {
		abs, _ := filepath.Abs(path)
		return writeJSON(out, struct {
			FilePath   string       `json:"file_path"`
			FieldCount int          `json:"field_count"`
			Fields     []form.Field `json:"fields"`
		}{abs, len(found), found})
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d field(s)\n", path, len(found))
	writeFields(out, found)
	return nil
}

func runFields(ctx context.Context, out io.Writer, opts *options, contractType string) error {
	gen, err := newGenerator(opts)
	if err != nil {
		return err
	}
	tf, err := gen.TemplateFields(ctx, contractType)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(out, tf)
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s): %d field(s)\n", tf.Type, tf.Location, len(tf.Fields))
	writeFields(out, tf.Fields)
	if len(tf.Missing) > 0 {
		fmt.Fprintf(out, "\nMissing from template:\n  %s\n", strings.Join(tf.Missing, "\n  "))
	}
	if len(tf.Unmapped) > 0 {
		fmt.Fprintf(out, "\nNot mapped by the catalog:\n  %s\n", strings.Join(tf.Unmapped, "\n  "))
	}
	return nil
}

func runVerify(ctx context.Context, out io.Writer, opts *options) error {
	gen, err := newGenerator(opts)
	if err != nil {
		return err
	}
	results, verr := gen.Verify(ctx)

	if opts.format == "json" {
		if err := writeJSON(out, results); err != nil {
			return err
		}
		return verr
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	for _, v := range results {
		status := "ok"
		switch {
		case !v.OK():
			status = "FAILED: " + v.Error
		case len(v.Missing) > 0 || len(v.Unmapped) > 0:
			status = fmt.Sprintf("%d missing, %d unmapped", len(v.Missing), len(v.Unmapped))
		}
		fmt.Fprintf(out, "%-14s %s\n", v.Type, status)
	}
	return verr
}

func newGenerator(opts *options) (*service.Generator, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if opts.catalogFile != "" {
		cat, err = catalog.LoadFile(opts.catalogFile)
	} else {
		cat, err = catalog.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	src, err := templates.NewFSSource(opts.templateDir, config.DefaultMaxTemplateSize)
	if err != nil {
		return nil, err
	}
	reg, err := templates.NewRegistry(cat, src)
	if err != nil {
		return nil, err
	}
	return service.NewGenerator(reg, nil, nil, nil, nil)
}

func writeFields(out io.Writer, fields []form.Field) {
	for i, f := range fields {
		fmt.Fprintf(out, "%3d. %-32q %-9s", i+1, f.Name, f.Type)
		if f.Value != "" {
			fmt.Fprintf(out, " value=%q", f.Value)
		}
		if len(f.Pages) > 0 {
			fmt.Fprintf(out, " pages=%v", f.Pages)
		}
		if f.Required {
			fmt.Fprint(out, " required")
		}
		fmt.Fprintln(out)
	}
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func checkFormat(format string) error {
	if format != "text" {
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}
