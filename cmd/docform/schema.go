package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/logger"
	"github.com/faciam-dev/docform/internal/metadata"
	"github.com/faciam-dev/docform/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <doctype>",
		Short: "Show the fields of a doctype and of its child tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			loader := metadata.NewLoader(sess.client,
				metadata.WithWorkers(sess.settings.SchemaWorkers),
				metadata.WithLogger(logger.L))
			fs, err := loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				children := map[string][]schema.FieldDescriptor{}
				for _, fd := range fs.Ordered() {
					if fd.FieldType == schema.Table {
						children[fd.Options] = fs.ChildFields(fd.Options)
					}
				}
				out := map[string]any{
					"doctype":     fs.DocType(),
					"fields":      fs.Ordered(),
					"children":    children,
					"permissions": fs.Permissions(),
				}
				if err := fs.ChildErrors(); err != nil {
					out["child_errors"] = err.Error()
				}
				return printJSON(w, out)
			}

			fmt.Fprintln(w, fs.DocType())
			printFields(w, fs.Ordered())
			for _, fd := range fs.Ordered() {
				if fd.FieldType != schema.Table {
					continue
				}
				fmt.Fprintf(w, "\n%s -> %s\n", fd.FieldName, fd.Options)
				if err := fs.ChildError(fd.Options); err != nil {
					fmt.Fprintf(w, "unavailable: %v\n", err)
					continue
				}
				printFields(w, fs.ChildFields(fd.Options))
			}

			rows := make([][]string, 0, len(fs.Permissions()))
			for _, g := range fs.Permissions() {
				rows = append(rows, []string{g.Role, fmt.Sprint(g.PermLevel), yesNo(g.Read), yesNo(g.Write), yesNo(g.Create), yesNo(g.Delete), yesNo(g.IfOwner)})
			}
			fmt.Fprintln(w)
			renderTable(w, []string{"Role", "Level", "Read", "Write", "Create", "Delete", "If owner"}, rows)
			return nil
		},
	}
}
