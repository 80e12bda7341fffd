package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sipnread/api/internal/client"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/submit"
)

type clientFlags struct {
	server string
	token  string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", os.Getenv("SIPNREAD_SERVER"), "API base URL (default $SIPNREAD_SERVER or http://localhost:<port>)")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("SIPNREAD_TOKEN"), "Google ID token (default $SIPNREAD_TOKEN)")
}

func (f *clientFlags) client(ctx *commandContext) (*client.Client, error) {
	server := strings.TrimSpace(f.server)
	if server == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		server = "http://localhost:" + cfg.Port
	}
	if strings.TrimSpace(f.token) == "" {
		return nil, errors.New("an ID token is required (--token or SIPNREAD_TOKEN)")
	}
	return client.New(server, f.token), nil
}

func newReadCommand(ctx *commandContext) *cobra.Command {
	var (
		cf          clientFlags
		images      []string
		question    string
		symbols     []string
		personalize bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "read --image cup.jpg [--image side.jpg] [--question ...] [--symbol Anchor]",
		Short: "Read tea leaves from photos of a cup",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.client(ctx)
			if err != nil {
				return err
			}
			data := make([][]byte, 0, len(images))
			for _, p := range images {
				b, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				data = append(data, b)
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			p := submit.New(c, c, c,
				submit.WithLogger(ctx.logger()),
				submit.WithProgress(func(i int, s submit.Stage) {
					if i >= 0 {
						fmt.Fprintf(errOut, "image %d %s\n", i+1, s)
					} else {
						fmt.Fprintf(errOut, "%s\n", s)
					}
				}))

			res, err := p.Run(cmd.Context(), submit.Input{Images: data, Question: question, Symbols: symbols})
			if err != nil {
				return errors.New(submit.ClassifyError(err) + " (" + err.Error() + ")")
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res.Result); err != nil {
					return err
				}
			} else {
				printReading(out, res.Result)
			}
			if !res.Saved {
				fmt.Fprintf(errOut, "warning: reading was not saved: %v\n", res.SaveError)
				return nil
			}
			fmt.Fprintf(errOut, "saved as %s\n", res.ReadingID)

			if personalize {
				pr, err := c.RequestPersonalization(cmd.Context(), res.ReadingID, question)
				if err != nil {
					return err
				}
				fmt.Fprintf(errOut, "personalized reading requested: %s (%s)\n", pr.ID, pr.Status)
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "Photo of the cup (repeat up to 4 times)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to focus the reading")
	cmd.Flags().StringArrayVarP(&symbols, "symbol", "s", nil, "Symbol you believe you see (repeat up to 4 times)")
	cmd.Flags().BoolVar(&personalize, "personalize", false, "Also request a personalized reading from a tassologist")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func printReading(w io.Writer, res types.InterpretationResult) {
	if len(res.Symbols) > 0 {
		fmt.Fprintln(w, "Symbols:")
		for _, s := range res.Symbols {
			tag := ""
			if s.Origin == types.OriginUserConfirmed {
				tag = " (you saw this too)"
			}
			fmt.Fprintf(w, "  - %s%s: %s [%s]\n", s.Name, tag, s.Meaning, s.Position)
		}
		fmt.Fprintln(w)
	}
	if len(res.Unconfirmed) > 0 {
		fmt.Fprintf(w, "Not found in your cup: %s\n\n", strings.Join(res.Unconfirmed, ", "))
	}
	fmt.Fprintln(w, res.Interpretation)
}
