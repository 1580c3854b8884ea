// Package authcmder provides the auth command for storing API credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hypedigitaly/streamer/pkg/cliui"
	"github.com/hypedigitaly/streamer/pkg/credentials"
)

const authLongDesc string = `Store API credentials for the proxy's upstream services.

Credentials are stored in credentials.toml in the .streamer/ directory and
used by "streamer serve" when no environment variable provides a key.

A key stored with --project is used for requests naming that project (or key
type); other requests use the provider's default key. Environment variables
always win: ANTHROPIC_API_KEY_<PROJECT> before the stored project key, and
ANTHROPIC_API_KEY before the stored default.

Supported providers: anthropic, voiceflow

Examples:
  streamer auth anthropic                      Prompt for the default Anthropic key
  streamer auth anthropic --project teplice    Prompt for the key of project teplice
  streamer auth voiceflow                      Prompt for the Voiceflow API key
  streamer auth --list                         List stored credentials
  streamer auth --remove anthropic             Remove all stored Anthropic keys
  echo $KEY | streamer auth anthropic          Pipe API key from stdin`

const authShortDesc string = "Store API credentials for Anthropic and Voiceflow"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string
	var project string

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, project, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("provider argument required\n\nSupported providers: %s",
						strings.Join(credentials.SupportedProviders(), ", "))
				}
				return runAuth(out, cmd.InOrStdin(), args[0], project, configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")
	cmd.Flags().StringVar(&project, "project", "", "Store or remove the key of one project instead of the default")

	return cmd
}

func runAuth(out io.Writer, in io.Reader, provider, project, configDir string) error {
	provider = normalize(provider)
	project = strings.TrimSpace(project)

	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	apiKey, err := readAPIKey(out, in, provider, project)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(provider, project, apiKey); err != nil {
		return err
	}

	name := provider
	if project != "" {
		name = provider + "/" + project
	}
	fmt.Fprintf(out, "\n  %s Stored %s credentials %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.DimStyle.Render("(overridden by "+envVar(provider, project)+")"),
	)

	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'streamer auth <provider>' to store credentials.\n")
		fmt.Fprintf(out, "  Supported providers: %s\n\n", strings.Join(credentials.SupportedProviders(), ", "))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, p := range providers {
		key, err := mgr.GetKey(p, "")
		if err != nil {
			return err
		}
		mark := cliui.SuccessMark
		if key == "" {
			mark = cliui.DimStyle.Render("-")
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			mark,
			cliui.NameStyle.Render(p),
			cliui.DimStyle.Render("← "+envVar(p, "")),
		)

		projects, err := mgr.ListProjects(p)
		if err != nil {
			return err
		}
		for _, project := range projects {
			fmt.Fprintf(out, "     %s  %s  %s\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(project),
				cliui.DimStyle.Render("← "+envVar(p, project)),
			)
		}
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, provider, project, configDir string) error {
	provider = normalize(provider)
	project = strings.TrimSpace(project)

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(provider, project); err != nil {
		return err
	}

	name := provider
	if project != "" {
		name = provider + "/" + project
	}
	fmt.Fprintf(out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))

	return nil
}

// readAPIKey reads an API key from in. On a terminal it prompts with hidden
// input; otherwise it reads the first line.
func readAPIKey(out io.Writer, in io.Reader, provider, project string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		target := provider
		if project != "" {
			target = provider + " project " + project
		}
		fmt.Fprintf(out, "Enter API key for %s (%s): ", target, envVar(provider, project))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	// Piped input
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

// envVar names the environment variable that takes precedence over the key.
func envVar(provider, project string) string {
	v := credentials.EnvVarForProvider(provider)
	if project == "" {
		return v
	}
	return v + "_" + credentials.EnvSuffix(project)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
