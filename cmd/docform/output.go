package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/pkg/schema"
	"github.com/faciam-dev/docform/sdk"
)

func jsonOutput(cmd *cobra.Command) bool {
	out, _ := cmd.Root().PersistentFlags().GetString("output")
	return out == "json"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()
}

func yesNo(f schema.Flag) string {
	if f {
		return "yes"
	}
	return ""
}

// printFields lists descriptors the way the schema command shows them.
func printFields(w io.Writer, fields []schema.FieldDescriptor) {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{
			f.FieldName, f.Label, string(f.FieldType), strings.ReplaceAll(f.Options, "\n", "|"),
			yesNo(f.Required), yesNo(f.ReadOnly), yesNo(f.Hidden), f.DependsOn,
		})
	}
	renderTable(w, []string{"Field", "Label", "Type", "Options", "Reqd", "Read only", "Hidden", "Depends on"}, rows)
}

// printForm renders the visible fields of f with their values, then every
// child table with its list columns.
func printForm(cmd *cobra.Command, f *sdk.Form) error {
	w := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		visible := make([]string, 0)
		for _, fd := range f.VisibleFields() {
			visible = append(visible, fd.FieldName)
		}
		return printJSON(w, map[string]any{
			"doctype": f.DocType(),
			"name":    f.Name(),
			"mode":    f.Mode(),
			"state":   f.State().String(),
			"visible": visible,
			"values":  f.Snapshot(),
		})
	}

	fmt.Fprintf(w, "%s %s (%s, %s)\n", f.DocType(), f.Name(), f.Mode(), f.State())
	var rows [][]string
	var tables []schema.FieldDescriptor
	for _, fd := range f.VisibleFields() {
		switch {
		case fd.FieldType == schema.Table:
			tables = append(tables, fd)
		case fd.FieldType.Layout():
			if fd.Label != "" {
				rows = append(rows, []string{"", "-- " + fd.Label + " --"})
			}
		default:
			v, _ := f.Value(fd.FieldName)
			label := fd.Label
			if fd.Required {
				label += " *"
			}
			rows = append(rows, []string{label, widgets.Str(v)})
		}
	}
	renderTable(w, []string{"Field", "Value"}, rows)

	for _, fd := range tables {
		ed, err := f.Table(fd.FieldName)
		if err != nil {
			return err
		}
		cols := ed.Columns()
		header := []string{"#"}
		for _, c := range cols {
			header = append(header, c.Label)
		}
		var body [][]string
		for i, r := range ed.Value() {
			line := []string{fmt.Sprint(i)}
			for _, c := range cols {
				line = append(line, widgets.Str(r[c.FieldName]))
			}
			body = append(body, line)
		}
		fmt.Fprintf(w, "\n%s\n", fd.Label)
		renderTable(w, header, body)
	}

	if errs := f.ConditionErrors(); len(errs) > 0 {
		fmt.Fprintln(w)
		for _, e := range errs {
			fmt.Fprintf(w, "hidden by failing rule: %s (%s)\n", e.Field, e.Expr)
		}
	}
	return nil
}

// printRecords shows search results with columns in the order asked for.
func printRecords(cmd *cobra.Command, fields []string, rs []schema.Record) error {
	w := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return printJSON(w, rs)
	}
	if len(fields) == 0 && len(rs) > 0 {
		for k := range rs[0] {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		line := make([]string, len(fields))
		for i, k := range fields {
			line[i] = widgets.Str(r[k])
		}
		rows = append(rows, line)
	}
	renderTable(w, fields, rows)
	return nil
}
