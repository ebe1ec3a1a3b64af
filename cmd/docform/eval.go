package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/condition"
)

func newEvalCmd() *cobra.Command {
	var (
		set []string
		doc string
	)
	cmd := &cobra.Command{
		Use:   "eval <depends_on>",
		Short: "Evaluate a depends_on rule against a document snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := map[string]any{}
			if doc != "" {
				dec := json.NewDecoder(strings.NewReader(doc))
				dec.UseNumber()
				if err := dec.Decode(&snap); err != nil {
					return fmt.Errorf("--doc: %w", err)
				}
				normalizeNumbers(snap)
			}
			for _, s := range set {
				k, v, err := splitAssignment(s)
				if err != nil {
					return err
				}
				snap[k] = v
			}

			x, err := condition.Compile(args[0])
			if err != nil {
				return err
			}
			var deps []string
			if x != nil {
				deps = x.Dependencies()
				sort.Strings(deps)
			}
			visible, evalErr := x.Eval(snap)

			if jsonOutput(cmd) {
				out := map[string]any{"visible": visible, "dependencies": deps}
				if evalErr != nil {
					out["error"] = evalErr.Error()
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "visible: %t\n", visible && evalErr == nil)
			if len(deps) > 0 {
				fmt.Fprintf(w, "reads: %s\n", strings.Join(deps, ", "))
			}
			if evalErr != nil {
				fmt.Fprintf(w, "error: %v\n", evalErr)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "Snapshot value: name=value (repeatable)")
	cmd.Flags().StringVar(&doc, "doc", "", "Snapshot as a JSON object")
	return cmd
}

// normalizeNumbers turns json.Number into int64 or float64 the way the
// widget codec stores them.
func normalizeNumbers(m map[string]any) {
	for k, v := range m {
		m[k] = normalizeNumber(v)
	}
}

func normalizeNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		normalizeNumbers(t)
	case []any:
		for i := range t {
			t[i] = normalizeNumber(t[i])
		}
	}
	return v
}
