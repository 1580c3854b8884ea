package authcmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/hypedigitaly/streamer/cmd/streamer/auth"
	"github.com/hypedigitaly/streamer/pkg/cliui"
	"github.com/hypedigitaly/streamer/pkg/credentials"
)

var _ = Describe("Auth Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := authcmder.NewAuthCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .streamer/ config directory")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("NewAuthCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth [provider]"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has --list, --remove and --project flags", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Flags().Lookup("list")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("remove")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("project")).NotTo(BeNil())
		})
	})

	Describe("storing a key", func() {
		It("stores the provider default key from piped input", func() {
			cmd := newCmd("anthropic")
			cmd.SetIn(bytes.NewBufferString("sk-ant-default\n"))
			Expect(cmd.Execute()).To(Succeed())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.GetKey(credentials.ProviderAnthropic, "")).To(Equal("sk-ant-default"))
			Expect(cliui.Plain(out.String())).To(ContainSubstring("Stored anthropic credentials"))
		})

		It("stores a project key without touching the default", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "", "sk-default")).To(Succeed())

			cmd := newCmd("anthropic", "--project", "teplice")
			cmd.SetIn(bytes.NewBufferString("  sk-teplice  \n"))
			Expect(cmd.Execute()).To(Succeed())

			Expect(mgr.GetKey(credentials.ProviderAnthropic, "teplice")).To(Equal("sk-teplice"))
			Expect(mgr.GetKey(credentials.ProviderAnthropic, "")).To(Equal("sk-default"))
			Expect(cliui.Plain(out.String())).To(ContainSubstring("ANTHROPIC_API_KEY_TEPLICE"))
		})

		It("normalizes the provider name", func() {
			cmd := newCmd(" Voiceflow ")
			cmd.SetIn(bytes.NewBufferString("VF.DM.key\n"))
			Expect(cmd.Execute()).To(Succeed())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.GetKey(credentials.ProviderVoiceflow, "")).To(Equal("VF.DM.key"))
		})

		It("rejects an empty key", func() {
			cmd := newCmd("anthropic")
			cmd.SetIn(bytes.NewBufferString("   \n"))
			Expect(cmd.Execute()).To(MatchError("API key cannot be empty"))
		})

		It("fails without input", func() {
			cmd := newCmd("anthropic")
			cmd.SetIn(&bytes.Buffer{})
			Expect(cmd.Execute()).To(MatchError(ContainSubstring("no input")))
		})
	})

	Describe("--list flag", func() {
		It("shows no credentials when none stored", func() {
			Expect(newCmd("--list").Execute()).To(Succeed())
			Expect(cliui.Plain(out.String())).To(ContainSubstring("No stored credentials."))
		})

		It("lists stored providers and projects", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "", "sk-test")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "teplice", "sk-teplice")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderVoiceflow, "", "VF.DM.key")).To(Succeed())

			Expect(newCmd("--list").Execute()).To(Succeed())

			listing := cliui.Plain(out.String())
			Expect(listing).To(ContainSubstring("Stored credentials"))
			Expect(listing).To(ContainSubstring("anthropic"))
			Expect(listing).To(ContainSubstring("teplice"))
			Expect(listing).To(ContainSubstring("VOICEFLOW_API_KEY"))
			Expect(listing).NotTo(ContainSubstring("sk-test"))
		})
	})

	Describe("--remove flag", func() {
		var mgr *credentials.Manager

		BeforeEach(func() {
			var err error
			mgr, err = credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "", "sk-test")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "teplice", "sk-teplice")).To(Succeed())
		})

		It("removes one project key", func() {
			Expect(newCmd("--remove", "anthropic", "--project", "teplice").Execute()).To(Succeed())

			Expect(mgr.GetKey(credentials.ProviderAnthropic, "teplice")).To(BeEmpty())
			Expect(mgr.GetKey(credentials.ProviderAnthropic, "")).To(Equal("sk-test"))
		})

		It("removes every key of a provider", func() {
			Expect(newCmd("--remove", "anthropic").Execute()).To(Succeed())

			Expect(mgr.GetKey(credentials.ProviderAnthropic, "")).To(BeEmpty())
			Expect(mgr.GetKey(credentials.ProviderAnthropic, "teplice")).To(BeEmpty())
		})
	})

	Describe("provider argument validation", func() {
		It("returns error when no provider given", func() {
			err := newCmd().Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("provider argument required"))
		})

		It("returns error for unsupported provider", func() {
			cmd := newCmd("openai")
			cmd.SetIn(bytes.NewBufferString("sk-test\n"))

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported provider"))
		})
	})

	Describe("shell completion", func() {
		It("provides provider name completions", func() {
			cmd := authcmder.NewAuthCmd()
			completions, directive := cmd.ValidArgsFunction(cmd, []string{}, "")
			Expect(completions).To(ConsistOf("anthropic", "voiceflow"))
			Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))
		})

		It("provides no completions after first arg", func() {
			cmd := authcmder.NewAuthCmd()
			completions, directive := cmd.ValidArgsFunction(cmd, []string{"anthropic"}, "")
			Expect(completions).To(BeNil())
			Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))
		})
	})
})
