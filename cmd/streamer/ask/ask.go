// Package askcmder provides the ask command, a terminal host for the stream
// client: it sends one prompt through a running proxy and renders the answer
// as it streams in.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hypedigitaly/streamer/pkg/cliui"
	"github.com/hypedigitaly/streamer/pkg/config"
	"github.com/hypedigitaly/streamer/pkg/dotdir"
	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/stream"
	"github.com/hypedigitaly/streamer/proxy"
)

type askCommander struct {
	proxyTarget string
	project     string
	origin      string
	keyType     string
	model       string
	maxTokens   int
	temperature float64
	system      string
	userID      string
	variable    string
	debugMode   bool

	tui       bool
	last      bool
	clearLast bool

	hasTemperature bool
	debug          bool
	configDir      string

	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

const askLongDesc string = `Stream an answer through a running proxy.

The prompt is taken from the arguments, or from stdin when no arguments are
given. On a terminal the answer is rendered as markdown while it streams; when
output is piped the plain answer is written once the stream ends. With --tui
the answer streams into a scrollable view that follows new text unless you
scroll away from the bottom.

The proxy only accepts allow-listed origins. Pass --origin with one of them,
or run the proxy with the development preset.

The last prompt and answer are saved in the .streamer/ directory and can be
shown again with --last.

Examples:
  streamer ask "Kdy má otevřeno podatelna?" --project teplice --origin https://www.teplice.cz
  echo "Summarize the opening hours" | streamer ask --model claude-3-5-haiku-20241022
  streamer ask --tui --user-id 42 "Tell me about recycling"
  streamer ask --last`

const askShortDesc string = "Stream an answer through a running proxy"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: askShortDesc,
		Long:  askLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, config.ClientFlags.Keys())

			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.proxyTarget = cfg.Client.ProxyTarget
			cmder.project = cfg.Client.ProjectName
			cmder.hasTemperature = cmd.Flags().Changed("temperature")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				cmder.debug = false
			}
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			switch {
			case cmder.clearLast:
				return cmder.runClearLast()
			case cmder.last:
				return cmder.runLast()
			default:
				return cmder.run(cmd.Context(), args)
			}
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagProxyTarget, &cmder.proxyTarget)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagProjectName, &cmder.project)
	cmd.Flags().StringVar(&cmder.origin, "origin", "", "Origin header sent to the proxy (e.g. https://www.teplice.cz)")
	cmd.Flags().StringVar(&cmder.keyType, "key-type", "", "Credential key type used when no project is given")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (default: the proxy's default model)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate (default: the proxy's default)")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature between 0 and 1")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt")
	cmd.Flags().StringVar(&cmder.userID, "user-id", "", "Voiceflow user to write the finished answer to")
	cmd.Flags().StringVar(&cmder.variable, "variable", "", "Variable written with the finished answer")
	cmd.Flags().BoolVar(&cmder.debugMode, "debug-mode", false, "Ask the proxy for status lines and request logging")
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Stream into a scrollable full screen view")
	cmd.Flags().BoolVar(&cmder.last, "last", false, "Show the last saved prompt and answer")
	cmd.Flags().BoolVar(&cmder.clearLast, "clear-last", false, "Delete the last saved prompt and answer")

	return cmd
}

func (c *askCommander) run(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	prompt, err := c.readPrompt(args)
	if err != nil {
		return err
	}

	payload := c.payload(prompt)
	endpoint := strings.TrimRight(c.proxyTarget, "/") + proxy.StreamPath

	c.logger.Debug("asking",
		"endpoint", endpoint,
		"project", payload.Selector(),
		"model", payload.Model,
		"tui", c.tui,
	)

	var (
		final     stream.View
		streamErr error
	)
	if c.tui {
		final, streamErr = c.runTUI(ctx, endpoint, payload)
	} else {
		final, streamErr = c.runTerminal(ctx, endpoint, payload)
	}

	c.saveExchange(payload, final)

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) {
			return nil
		}
		return fmt.Errorf("stream failed: %w", streamErr)
	}
	return nil
}

// readPrompt joins the arguments, or reads stdin when there are none.
func (c *askCommander) readPrompt(args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		return prompt, nil
	}

	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("prompt required: pass it as an argument or pipe it on stdin")
	}

	data, err := io.ReadAll(c.in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}

	prompt = strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt required: pass it as an argument or pipe it on stdin")
	}
	return prompt, nil
}

func (c *askCommander) payload(prompt string) *stream.Payload {
	p := &stream.Payload{
		Model:        c.model,
		MaxTokens:    c.maxTokens,
		UserData:     prompt,
		SystemPrompt: c.system,
		ProjectName:  c.project,
		KeyType:      c.keyType,
		UserID:       c.userID,
		VariableName: c.variable,
	}
	if c.hasTemperature {
		t := c.temperature
		p.Temperature = &t
	}
	if c.debugMode {
		p.DebugMode = 1
	}
	return p
}

func (c *askCommander) newClient(endpoint string, host stream.Host, opts ...stream.Option) *stream.Client {
	transport := http.DefaultTransport
	if c.origin != "" {
		transport = &originTransport{base: transport, origin: c.origin}
	}

	opts = append([]stream.Option{
		stream.WithHTTPClient(&http.Client{Transport: transport}),
		stream.WithLogger(c.logger),
	}, opts...)

	return stream.NewClient(endpoint, host, opts...)
}

// runTerminal streams into the terminal, redrawing in place when out is a
// color terminal and printing the plain answer at the end otherwise.
func (c *askCommander) runTerminal(ctx context.Context, endpoint string, payload *stream.Payload) (stream.View, error) {
	live := cliui.ColorEnabled(c.out)
	mount := newTerminalMount(c.out, live)

	var opts []stream.Option
	if live {
		md, err := cliui.NewMarkdown(terminalWidth())
		if err != nil {
			return stream.View{}, fmt.Errorf("creating markdown renderer: %w", err)
		}
		opts = append(opts, stream.WithRenderer(md))
	} else {
		opts = append(opts, stream.WithRenderer(plainRenderer{}), stream.WithThinkingInterval(0))
	}

	client := c.newClient(endpoint, stream.HostFunc(mount.finish), opts...)
	err := client.Initiate(ctx, payload, mount)
	return mount.last, err
}

// saveExchange keeps the finished exchange for "streamer ask --last". A save
// failure is logged and does not fail the command.
func (c *askCommander) saveExchange(payload *stream.Payload, v stream.View) {
	if !v.Phase.Terminal() {
		return
	}

	ex := &dotdir.Exchange{
		Project: payload.Selector(),
		Model:   payload.Model,
		Prompt:  payload.UserData,
		Answer:  v.Text,
		Failed:  v.Phase == stream.PhaseFailed,
		At:      time.Now(),
	}
	if err := dotdir.NewManager().SaveExchange(ex, c.configDir); err != nil {
		c.logger.Warn("could not save exchange", "error", err)
	}
}

func (c *askCommander) runLast() error {
	ex, err := dotdir.NewManager().LoadExchange(c.configDir)
	if err != nil {
		return err
	}
	if ex == nil {
		fmt.Fprintf(c.out, "\n  %s No saved answer.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'streamer ask <prompt>' to ask one.\n\n")
		return nil
	}

	meta := ex.At.Local().Format(time.DateTime)
	if ex.Project != "" {
		meta = ex.Project + " · " + meta
	}
	if ex.Model != "" {
		meta = ex.Model + " · " + meta
	}

	fmt.Fprintf(c.out, "\n  %s %s\n  %s\n\n",
		cliui.KeyStyle.Render("Prompt:"),
		cliui.ValueStyle.Render(ex.Prompt),
		cliui.DimStyle.Render(meta),
	)

	if ex.Failed {
		fmt.Fprintf(c.out, "%s\n", cliui.ErrorStyle.Render(stream.ErrorText))
		if ex.Answer == "" {
			fmt.Fprintln(c.out)
			return nil
		}
		fmt.Fprintf(c.out, "%s\n\n", cliui.DimStyle.Render("Partial answer:"))
	}

	answer := ex.Answer
	if cliui.ColorEnabled(c.out) {
		if rendered, err := cliui.RenderMarkdown(answer); err == nil {
			answer = rendered
		}
	}
	fmt.Fprintf(c.out, "%s\n", strings.TrimRight(answer, "\n"))

	return nil
}

func (c *askCommander) runClearLast() error {
	if err := dotdir.NewManager().ClearExchange(c.configDir); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n  %s Cleared the saved answer.\n\n", cliui.SuccessMark)
	return nil
}

// originTransport sets the Origin header the proxy's allow-list checks.
type originTransport struct {
	base   http.RoundTripper
	origin string
}

func (t *originTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Origin", t.origin)
	return t.base.RoundTrip(req)
}

// plainRenderer leaves the markdown as written, for piped output.
type plainRenderer struct{}

func (plainRenderer) Render(src string) string { return src }

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
