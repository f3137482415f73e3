package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
)

func newCompileCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile DIR",
		Short: "Print the preview document compiled from DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := bundle.LoadDir(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			doc := compiler.Compile(b)
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(doc.Bytes())
				return err
			}
			return os.WriteFile(output, doc.Bytes(), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	return cmd
}

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in starter bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := bundle.Templates()
			if err != nil {
				return err
			}
			for _, tpl := range templates {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", tpl.Name, tpl.Description)
			}
			return nil
		},
	}
}
