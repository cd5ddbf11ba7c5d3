package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/deepdive-md/deepdive/internal/chat"
	"github.com/deepdive-md/deepdive/internal/rulebook"
)

// defaults are read from the environment before flags override them.
type defaults struct {
	Relay    string `env:"DEEPDIVE_RELAY" envDefault:"http://localhost:8080/ai"`
	APIKey   string `env:"DEEPDIVE_API_KEY"`
	Rulebook string `env:"RULEBOOK_PATH" envDefault:"config/rulebook.json"`
}

type options struct {
	relayURL     string
	apiKey       string
	rulebookPath string
	raw          bool
	timeout      time.Duration
}

func newRootCmd() (*cobra.Command, error) {
	var def defaults
	if err := env.Parse(&def); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask the configured AI model through a Deep Dive relay",
		Long: "Send a prompt through a Deep Dive relay using the rulebook's default provider " +
			"and render the reply as markdown. Without arguments the prompt is read from stdin.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, args)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.rulebookPath, "rulebook", def.Rulebook, "path to the rulebook")
	cmd.Flags().StringVar(&opts.relayURL, "relay", def.Relay, "relay endpoint")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", def.APIKey, "upstream API key")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the reply without markdown rendering")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	cmd.AddCommand(newProvidersCmd(opts))
	return cmd, nil
}

func newProvidersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the providers in the rulebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := rulebook.Load(opts.rulebookPath)
			if err != nil {
				return err
			}
			return printProviders(cmd.OutOrStdout(), book)
		},
	}
}

func runAsk(cmd *cobra.Command, opts *options, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(in))
	}
	if prompt == "" {
		return fmt.Errorf("no prompt given")
	}

	book, err := rulebook.Load(opts.rulebookPath)
	if err != nil {
		return err
	}

	svc, err := chat.NewService(book, opts.relayURL, opts.apiKey,
		chat.WithHTTPClient(&http.Client{Timeout: opts.timeout}))
	if err != nil {
		return err
	}

	reply, err := svc.GenerateResponse(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.raw {
		_, err = fmt.Fprintln(out, reply)
		return err
	}

	rendered, err := renderMarkdown(reply)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render(md)
}

func printProviders(w io.Writer, book *rulebook.RuleBook) error {
	var b strings.Builder
	b.WriteString("\nProviders:\n")
	b.WriteString(strings.Repeat("=", 70) + "\n")
	for i, p := range book.Providers {
		marker := ""
		if p.Key == book.DefaultProvider {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, p.Key, marker)
		if p.Name != "" {
			fmt.Fprintf(&b, "   %s\n", p.Name)
		}
		fmt.Fprintf(&b, "   Model: %s\n", p.Model)
		fmt.Fprintf(&b, "   Base URL: %s\n", p.BaseURL)
		if p.Description != "" {
			fmt.Fprintf(&b, "   %s\n", p.Description)
		}
		b.WriteString(strings.Repeat("-", 70) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
