package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"snapbook/internal/app"
	"snapbook/internal/auth"
	"snapbook/internal/config"
	"snapbook/internal/model"
	"snapbook/internal/yearbook"
)

type cli struct {
	out  io.Writer
	cfg  config.App
	open func(ctx context.Context) (*app.Runtime, error)
}

// withRuntime opens the backends for one command and closes them after.
func (c *cli) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx := cmd.Context()
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "snapbookctl",
		Short:        "Administer a snapbook event",
		SilenceUsage: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.out)
	root.AddCommand(
		adminTokenCmd(c),
		statsCmd(c),
		quotesCmd(c),
		submissionsCmd(c),
		yearbookCmd(c),
	)
	return root
}

func adminTokenCmd(c *cli) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Issue(subject, auth.RoleAdmin, c.cfg.JWTIssuer, c.cfg.JWTSigningKey, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, tok.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", c.cfg.AdminTokenTTL, "token lifetime")
	return cmd
}

func statsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show submission counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Service.Stats(ctx)
				if err != nil {
					return err
				}
				settings, err := rt.Service.Settings(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Participants:\t%d\n", st.TotalUsers)
				fmt.Fprintf(w, "Photos:\t%d\n", st.TotalPhotos)
				fmt.Fprintf(w, "Completed:\t%d\n", st.CompletedSubmissions)
				fmt.Fprintf(w, "Accepting submissions:\t%t\n", settings.AcceptingSubmissions)
				fmt.Fprintf(w, "Yearbook generated:\t%t\n", settings.YearbookGenerated)
				return w.Flush()
			})
		},
	}
}

func quotesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "quotes", Short: "Manage the yearbook quote pool"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List quotes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
					qs, err := rt.Service.Quotes(ctx)
					if err != nil {
						return err
					}
					if len(qs) == 0 {
						fmt.Fprintln(c.out, "No quotes; the default pool is used.")
						return nil
					}
					for _, q := range qs {
						fmt.Fprintf(c.out, "%d\t%s\n", q.ID, q.Text)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <text>",
			Short: "Add a quote",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
					q, err := rt.Service.AddQuote(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "Added quote %d\n", q.ID)
					return nil
				})
			},
		},
	)
	return cmd
}

func submissionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "submissions", Short: "Control photo submissions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Open or close submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Service.ToggleSubmissions(ctx)
				if err != nil {
					return err
				}
				printSubmissionState(c.out, st)
				return nil
			})
		},
	})
	return cmd
}

func printSubmissionState(w io.Writer, st model.Settings) {
	if st.AcceptingSubmissions {
		fmt.Fprintln(w, "Submissions are open.")
		return
	}
	fmt.Fprintln(w, "Submissions are closed.")
}

func yearbookCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "yearbook", Short: "Generate, reset or print the yearbook"}

	var pageSize int
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the generated yearbook page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pageSize <= 0 {
				return fmt.Errorf("--page-size must be positive")
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Service.Yearbook(ctx)
				if err != nil {
					return err
				}
				printYearbook(c.out, yearbook.Paginate(entries, pageSize))
				return nil
			})
		},
	}
	printCmd.Flags().IntVar(&pageSize, "page-size", c.cfg.YearbookPageSize, "entries per page")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate",
			Short: "Publish the yearbook",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
					if _, err := rt.Service.GenerateYearbook(ctx); err != nil {
						return err
					}
					fmt.Fprintln(c.out, "Yearbook generated.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Withdraw the yearbook",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
					if _, err := rt.Service.ResetYearbook(ctx); err != nil {
						return err
					}
					fmt.Fprintln(c.out, "Yearbook reset.")
					return nil
				})
			},
		},
		printCmd,
	)
	return cmd
}

func printYearbook(w io.Writer, pages [][]yearbook.Entry) {
	if len(pages) == 0 {
		fmt.Fprintln(w, "The yearbook is empty.")
		return
	}
	for i, page := range pages {
		fmt.Fprintf(w, "Page %d\n", i+1)
		for _, e := range page {
			fmt.Fprintf(w, "  %s: %q\n", e.StudentName, e.Quote)
		}
	}
}
