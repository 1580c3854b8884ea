package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hypedigitaly/streamer/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .streamer dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".streamer"), 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { _ = os.Chdir(origDir) })

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .streamer dir when it exists", func() {
			local := filepath.Join(tmpDir, ".streamer")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { _ = os.Chdir(origDir) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to ~/.streamer and creates it", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(emptyDir)).To(Succeed())
			DeferCleanup(func() { _ = os.Chdir(origDir) })

			home := filepath.Join(tmpDir, "home")
			Expect(os.Mkdir(home, 0o755)).To(Succeed())
			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", home)).To(Succeed())
			DeferCleanup(func() { _ = os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, ".streamer")))
			Expect(filepath.Join(home, ".streamer")).To(BeADirectory())
		})
	})

	Describe("Exchange", func() {
		It("returns nil when nothing was saved", func() {
			ex, err := m.LoadExchange(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ex).To(BeNil())
		})

		It("round-trips the last exchange with private permissions", func() {
			at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
			Expect(m.SaveExchange(&dotdir.Exchange{
				Project: "teplice",
				Prompt:  "Kdy je otevřeno?",
				Answer:  "**Po–Pá** 8–16",
				At:      at,
			}, tmpDir)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "last_exchange.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			ex, err := m.LoadExchange(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ex.Project).To(Equal("teplice"))
			Expect(ex.Answer).To(Equal("**Po–Pá** 8–16"))
			Expect(ex.At.Equal(at)).To(BeTrue())
		})

		It("rejects a nil exchange", func() {
			Expect(m.SaveExchange(nil, tmpDir)).To(HaveOccurred())
		})

		It("clears the exchange and tolerates a missing file", func() {
			Expect(m.SaveExchange(&dotdir.Exchange{Prompt: "a", Answer: "b"}, tmpDir)).To(Succeed())
			Expect(m.ClearExchange(tmpDir)).To(Succeed())
			Expect(m.ClearExchange(tmpDir)).To(Succeed())

			ex, err := m.LoadExchange(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ex).To(BeNil())
		})
	})
})
