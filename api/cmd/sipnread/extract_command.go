package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		cf   clientFlags
		text string
	)
	cmd := &cobra.Command{
		Use:   "extract [--text ...]",
		Short: "Extract symbol names and clock positions from a narrative (stdin when --text is empty)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.client(ctx)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				b, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
				if err != nil {
					return err
				}
				text = string(b)
			}
			symbols, err := c.ExtractSymbols(cmd.Context(), text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(symbols) == 0 {
				fmt.Fprintln(out, "no symbols found")
				return nil
			}
			for _, s := range symbols {
				if s.Position != nil {
					fmt.Fprintf(out, "%s\t%d o'clock\n", s.SymbolName, *s.Position)
				} else {
					fmt.Fprintf(out, "%s\t-\n", s.SymbolName)
				}
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVarP(&text, "text", "t", "", "Narrative text")
	return cmd
}
