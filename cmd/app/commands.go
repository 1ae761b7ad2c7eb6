package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

// cliSession scopes unlocks made by one CLI invocation.
const cliSession = "cli"

var errNoID = errors.New("document id is required")

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools on stdin/stdout",
		Action: func(_ context.Context, cmd *cli.Command) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.MCP().ServeStdio()
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List or search documents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Fuzzy search query"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output format: table or json", Value: "table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			docs, err := app.Docs.List(ctx, cmd.String("query"))
			if err != nil {
				return err
			}
			return printDocuments(os.Stdout, cmd.String("output"), docs)
		},
	}
}

func printDocuments(w io.Writer, output string, docs []docservice.Summary) error {
	switch output {
	case "", "table":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = false
		tw.AppendHeader(table.Row{"ID", "TITLE", "TAGS", "LOCKED", "UPDATED AT"})
		for _, d := range docs {
			locked := ""
			if d.Locked {
				locked = "yes"
			}
			tw.AppendRow(table.Row{
				d.ID,
				d.Title,
				strings.Join(d.Tags, ", "),
				locked,
				d.UpdatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		_, err := fmt.Fprintln(w, tw.Render())
		return err
	case "json":
		out, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a JSON export of the old browser-local store",
		ArgsUsage: "<file.json>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("export file is required")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			docs, err := docservice.ParseLegacy(f)
			if err != nil {
				return err
			}

			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Docs.Import(ctx, docs)
			if err != nil {
				return err
			}
			printReport(os.Stdout, report)
			return nil
		},
	}
}

func printReport(w io.Writer, r docservice.ImportReport) {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(table.Row{"ID", "RESULT", "REASON"})
	for _, id := range r.Imported {
		tw.AppendRow(table.Row{id, "imported", ""})
	}
	for _, id := range r.Skipped {
		tw.AppendRow(table.Row{id, "skipped", "already exists"})
	}
	failed := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		tw.AppendRow(table.Row{id, "failed", r.Failed[id]})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d imported, %d skipped, %d failed", len(r.Imported), len(r.Skipped), len(r.Failed)), ""})
	fmt.Fprintln(w, tw.Render())
}

func lockCommand() *cli.Command {
	return &cli.Command{
		Name:      "lock",
		Usage:     "Set, change or remove the password of a document",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "remove", Usage: "Remove the password"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errNoID
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx = session.WithID(ctx, cliSession)
			head, err := app.Docs.Head(ctx, id)
			if err != nil {
				return err
			}
			if head.Locked {
				current, err := readPassword("Current password: ")
				if err != nil {
					return err
				}
				if _, err := app.Docs.Unlock(ctx, id, current); err != nil {
					return err
				}
			}

			doc, err := app.Docs.Get(ctx, id)
			if err != nil {
				return err
			}
			in := docservice.Input{Title: doc.Title, Tags: doc.Tags, Content: doc.Content}
			if !cmd.Bool("remove") {
				if in.Lock, err = readNewPassword(); err != nil {
					return err
				}
			}
			if _, err := app.Docs.Update(ctx, id, in, doc.Checksum); err != nil {
				return err
			}

			if in.Lock.Locked {
				fmt.Printf("%s is locked\n", id)
			} else {
				fmt.Printf("%s is unlocked\n", id)
			}
			return nil
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print the argon2id hash of a password",
		Action: func(_ context.Context, _ *cli.Command) error {
			req, err := readNewPassword()
			if err != nil {
				return err
			}
			if req.Password == "" {
				return errors.New("password is required")
			}
			if req.Password != req.Confirm {
				return errors.New("passwords do not match")
			}
			hash, err := lockgate.Hash(req.Password)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Sign a bearer token for jwt auth mode",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "User id carried by the token", Required: true},
			&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 24 * time.Hour},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			token, err := auth.Sign(cfg.Auth.JWTSecret, cmd.String("subject"), cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

var stdin = bufio.NewReader(os.Stdin)

// readPassword prompts on stderr and reads without echo from a terminal, or
// one line from piped input.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readNewPassword() (lockgate.LockRequest, error) {
	pw, err := readPassword("New password: ")
	if err != nil {
		return lockgate.LockRequest{}, err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return lockgate.LockRequest{}, err
	}
	return lockgate.LockRequest{Locked: true, Password: pw, Confirm: confirm}, nil
}
