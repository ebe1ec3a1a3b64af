package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/sdk"
)

// editFlags are the mutations shared by new and edit.
type editFlags struct {
	set    []string
	addRow []string
	row    []string
	dryRun bool
	diff   bool
}

func (e *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&e.set, "set", nil, "Set a field: name=value (repeatable)")
	cmd.Flags().StringArrayVar(&e.addRow, "add-row", nil, "Append a row to a table field (repeatable)")
	cmd.Flags().StringArrayVar(&e.row, "row", nil, "Set a cell: table.index.field=value (repeatable)")
	cmd.Flags().BoolVar(&e.dryRun, "dry-run", false, "Show the form without submitting")
	cmd.Flags().BoolVar(&e.diff, "diff", false, "Print a unified diff of the pending changes")
}

func splitAssignment(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	return strings.TrimSpace(k), v, nil
}

type cellRef struct {
	table string
	index int
	field string
}

func parseCell(s string) (cellRef, string, error) {
	k, v, err := splitAssignment(s)
	if err != nil {
		return cellRef{}, "", err
	}
	parts := strings.Split(k, ".")
	if len(parts) != 3 {
		return cellRef{}, "", fmt.Errorf("expected table.index.field=value, got %q", s)
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil {
		return cellRef{}, "", fmt.Errorf("row index %q: %w", parts[1], err)
	}
	return cellRef{table: parts[0], index: i, field: parts[2]}, v, nil
}

// apply sets plain fields through Form.Set, so read-only fields and the
// mutation validators apply, then runs the table mutations.
func (e *editFlags) apply(f *sdk.Form) error {
	for _, s := range e.set {
		k, v, err := splitAssignment(s)
		if err != nil {
			return err
		}
		if err := f.Set(k, v); err != nil {
			return err
		}
	}
	for _, name := range e.addRow {
		ed, err := f.Table(name)
		if err != nil {
			return err
		}
		ed.AddRow()
	}
	for _, s := range e.row {
		ref, v, err := parseCell(s)
		if err != nil {
			return err
		}
		ed, err := f.Table(ref.table)
		if err != nil {
			return err
		}
		if err := ed.UpdateCell(ref.index, ref.field, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *editFlags) submit(cmd *cobra.Command, f *sdk.Form) error {
	if e.diff {
		d, err := f.Diff()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), d)
	}
	if e.dryRun {
		return printForm(cmd, f)
	}
	rec, err := f.Save(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n", f.DocType(), f.Name())
	return nil
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <doctype> <name>",
		Short: "Load a document and show its visible fields",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			f, err := sess.form()
			if err != nil {
				return err
			}
			if err := f.LoadEdit(cmd.Context(), args[0], args[1]); err != nil {
				if f.State() != sdk.StateReady {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return printForm(cmd, f)
		},
	}
}

func newNewCmd() *cobra.Command {
	var ef editFlags
	cmd := &cobra.Command{
		Use:   "new <doctype>",
		Short: "Create a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			f, err := sess.form()
			if err != nil {
				return err
			}
			if err := f.LoadCreate(cmd.Context(), args[0], nil); err != nil {
				return err
			}
			if err := ef.apply(f); err != nil {
				return err
			}
			return ef.submit(cmd, f)
		},
	}
	ef.register(cmd)
	return cmd
}

func newEditCmd() *cobra.Command {
	var ef editFlags
	cmd := &cobra.Command{
		Use:   "edit <doctype> <name>",
		Short: "Change fields of a document and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			f, err := sess.form()
			if err != nil {
				return err
			}
			if err := f.LoadEdit(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if err := ef.apply(f); err != nil {
				return err
			}
			return ef.submit(cmd, f)
		},
	}
	ef.register(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doctype> <name>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			f, err := sess.form()
			if err != nil {
				return err
			}
			if err := f.LoadEdit(cmd.Context(), args[0], args[1]); err != nil && f.State() != sdk.StateReady {
				return err
			}
			if err := f.Delete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], args[1])
			return nil
		},
	}
}
