package askcmder

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/hypedigitaly/streamer/pkg/dotdir"
	"github.com/hypedigitaly/streamer/pkg/stream"
	"github.com/hypedigitaly/streamer/pkg/wire"
	"github.com/hypedigitaly/streamer/proxy"
)

// relayServer is a stand-in proxy answering with fixed wire frames.
type relayServer struct {
	*httptest.Server

	mu      sync.Mutex
	path    string
	origin  string
	payload map[string]any

	frames func(w http.ResponseWriter)
}

func newRelayServer(frames func(w http.ResponseWriter)) *relayServer {
	rs := &relayServer{frames: frames}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		rs.mu.Lock()
		rs.path = r.URL.Path
		rs.origin = r.Header.Get("Origin")
		rs.payload = map[string]any{}
		_ = json.Unmarshal(body, &rs.payload)
		frames := rs.frames
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		frames(w)
	}))
	return rs
}

func (rs *relayServer) setFrames(frames func(w http.ResponseWriter)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.frames = frames
}

func (rs *relayServer) received() (string, string, map[string]any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.path, rs.origin, rs.payload
}

var _ = Describe("ask command", func() {
	var (
		configDir string
		out       *bytes.Buffer
		server    *relayServer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := NewAskCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().BoolP("debug", "d", false, "")
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetIn(strings.NewReader(""))
		cmd.SetArgs(append(args, "--config-dir", configDir, "--proxy-target", server.URL))
		return cmd
	}

	answer := func(w http.ResponseWriter) {
		_ = wire.WriteContent(w, "Podatelna má otevřeno ")
		_ = wire.WriteContent(w, "od **8** do 17.")
		_ = wire.WriteDone(w)
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		server = newRelayServer(answer)
		DeferCleanup(server.Close)
	})

	It("streams the answer and prints it when output is piped", func() {
		cmd := newCmd("Kdy", "má", "otevřeno?", "--project", "teplice", "--origin", "https://www.teplice.cz", "--user-id", "42")
		Expect(cmd.Execute()).To(Succeed())

		Expect(out.String()).To(Equal("Podatelna má otevřeno od **8** do 17.\n"))

		path, origin, payload := server.received()
		Expect(path).To(Equal(proxy.StreamPath))
		Expect(origin).To(Equal("https://www.teplice.cz"))
		Expect(payload).To(HaveKeyWithValue("userData", "Kdy má otevřeno?"))
		Expect(payload).To(HaveKeyWithValue("projectName", "teplice"))
		Expect(payload).To(HaveKeyWithValue("user_id", "42"))
		Expect(payload).NotTo(HaveKey("temperature"))
		Expect(payload).NotTo(HaveKey("debugMode"))
	})

	It("sends the optional request fields that were set", func() {
		cmd := newCmd("hello",
			"--model", "claude-3-5-haiku-20241022",
			"--max-tokens", "256",
			"--temperature", "0",
			"--system", "Be brief.",
			"--key-type", "widget",
			"--variable", "answer",
			"--debug-mode",
		)
		Expect(cmd.Execute()).To(Succeed())

		_, origin, payload := server.received()
		Expect(origin).To(BeEmpty())
		Expect(payload).To(HaveKeyWithValue("model", "claude-3-5-haiku-20241022"))
		Expect(payload).To(HaveKeyWithValue("max_tokens", BeNumerically("==", 256)))
		Expect(payload).To(HaveKeyWithValue("temperature", BeNumerically("==", 0)))
		Expect(payload).To(HaveKeyWithValue("systemPrompt", "Be brief."))
		Expect(payload).To(HaveKeyWithValue("keyType", "widget"))
		Expect(payload).To(HaveKeyWithValue("variableName", "answer"))
		Expect(payload).To(HaveKeyWithValue("debugMode", BeNumerically("==", 1)))
	})

	It("reads the prompt from stdin", func() {
		cmd := newCmd()
		cmd.SetIn(strings.NewReader("  piped prompt \n"))
		Expect(cmd.Execute()).To(Succeed())

		_, _, payload := server.received()
		Expect(payload).To(HaveKeyWithValue("userData", "piped prompt"))
	})

	It("requires a prompt", func() {
		Expect(newCmd().Execute()).To(MatchError(ContainSubstring("prompt required")))
	})

	It("saves the exchange", func() {
		Expect(newCmd("hello", "--project", "teplice").Execute()).To(Succeed())

		ex, err := dotdir.NewManager().LoadExchange(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ex).NotTo(BeNil())
		Expect(ex.Prompt).To(Equal("hello"))
		Expect(ex.Project).To(Equal("teplice"))
		Expect(ex.Answer).To(Equal("Podatelna má otevřeno od **8** do 17."))
		Expect(ex.Failed).To(BeFalse())
		Expect(ex.At).To(BeTemporally("~", time.Now(), time.Minute))
	})

	Context("when the relay reports an error", func() {
		BeforeEach(func() {
			server.setFrames(func(w http.ResponseWriter) {
				_ = wire.WriteContent(w, "partial")
				_ = wire.WriteError(w, "upstream overloaded")
			})
		})

		It("prints the error text, fails and saves the partial answer", func() {
			err := newCmd("hello").Execute()
			Expect(err).To(MatchError(ContainSubstring("stream failed")))
			Expect(out.String()).To(Equal(stream.ErrorText + "\n"))

			ex, err := dotdir.NewManager().LoadExchange(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ex.Failed).To(BeTrue())
			Expect(ex.Answer).To(Equal("partial"))
		})
	})

	It("fails on a non-2xx relay status", func() {
		server.setFrames(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusForbidden)
		})

		err := newCmd("hello").Execute()
		Expect(err).To(MatchError(ContainSubstring("403")))
		Expect(out.String()).To(Equal(stream.ErrorText + "\n"))
	})

	Describe("--last", func() {
		It("reports when nothing was saved", func() {
			Expect(newCmd("--last").Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No saved answer."))
		})

		It("shows the saved exchange", func() {
			Expect(dotdir.NewManager().SaveExchange(&dotdir.Exchange{
				Project: "teplice",
				Model:   "claude-3-5-sonnet-20241022",
				Prompt:  "Kdy má otevřeno?",
				Answer:  "Od 8 do 17.",
				At:      time.Now(),
			}, configDir)).To(Succeed())

			Expect(newCmd("--last").Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Kdy má otevřeno?"))
			Expect(out.String()).To(ContainSubstring("teplice"))
			Expect(out.String()).To(ContainSubstring("Od 8 do 17."))
		})

		It("marks a failed exchange", func() {
			Expect(dotdir.NewManager().SaveExchange(&dotdir.Exchange{
				Prompt: "hello",
				Failed: true,
				At:     time.Now(),
			}, configDir)).To(Succeed())

			Expect(newCmd("--last").Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring(stream.ErrorText))
		})
	})

	It("clears the saved exchange", func() {
		Expect(newCmd("hello").Execute()).To(Succeed())
		Expect(newCmd("--clear-last").Execute()).To(Succeed())

		ex, err := dotdir.NewManager().LoadExchange(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ex).To(BeNil())
	})
})
