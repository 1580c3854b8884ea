package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/hypedigitaly/streamer/cmd/streamer/init"
	"github.com/hypedigitaly/streamer/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	readConfig := func() *config.Config {
		cfg := &config.Config{}
		_, err := toml.DecodeFile(filepath.Join(tmpDir, ".streamer", "config.toml"), cfg)
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates a .streamer directory in the current directory", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".streamer"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("creates a config.toml with default values", func() {
		Expect(run()).To(Succeed())

		cfg := readConfig()
		defaults := config.NewDefaultConfig()
		Expect(cfg.Proxy.Listen).To(Equal(defaults.Proxy.Listen))
		Expect(cfg.Proxy.AllowedOrigins).To(Equal(defaults.Proxy.AllowedOrigins))
		Expect(cfg.Variables.Enabled).To(BeTrue())
	})

	It("applies the development preset", func() {
		Expect(run("--preset", "development")).To(Succeed())

		cfg := readConfig()
		Expect(cfg.Proxy.AllowedOrigins).To(BeEmpty())
		Expect(cfg.Variables.Enabled).To(BeFalse())
	})

	It("applies the production preset", func() {
		Expect(run("--preset", "production")).To(Succeed())
		Expect(readConfig().Events.Provider).To(Equal(config.EventsProviderKafka))
	})

	It("rejects an unknown preset without creating anything", func() {
		Expect(run("--preset", "staging")).To(MatchError(ContainSubstring("unknown preset")))

		_, err := os.Stat(filepath.Join(tmpDir, ".streamer"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("leaves an existing directory alone", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".streamer"), 0o755)).To(Succeed())

		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))

		_, err := os.Stat(filepath.Join(tmpDir, ".streamer", "config.toml"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
