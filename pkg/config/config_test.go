package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/config"
	"github.com/papercomputeco/ollachat/pkg/session"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(body string) string {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		return path
	}

	It("uses defaults when the file is missing", func() {
		cfg, err := config.Load(filepath.Join(dir, "missing.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))

		settings := cfg.Settings()
		Expect(settings.Model).To(Equal("gemma3:latest"))
		Expect(settings.System).To(Equal(session.DefaultSystemPrompt))
		Expect(settings.Temperature).To(Equal(0.5))
		Expect(settings.Stream).To(BeTrue())
	})

	It("overlays the file on the defaults", func() {
		cfg, err := config.Load(write(`
[generation]
model = "llama3:8b"
temperature = 0.2

[generation.options]
num_gpu = 1

[archive]
enabled = true
path = "/tmp/archive.db"
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Generation.Model).To(Equal("llama3:8b"))
		Expect(cfg.Generation.Temperature).To(Equal(0.2))
		Expect(cfg.Generation.System).To(Equal(session.DefaultSystemPrompt))
		Expect(cfg.Generation.Stream).To(BeTrue())
		Expect(cfg.Settings().Options).To(HaveKeyWithValue("num_gpu", int64(1)))
		Expect(cfg.Gateway.Listen).To(Equal(":8080"))
		Expect(cfg.Archive.Enabled).To(BeTrue())
	})

	It("rejects a temperature outside [0, 1]", func() {
		_, err := config.Load(write("[generation]\ntemperature = 1.5\n"))
		Expect(err).To(MatchError(ContainSubstring("temperature")))
	})

	It("reports malformed files", func() {
		_, err := config.Load(write("[generation\n"))
		Expect(err).To(HaveOccurred())
	})

	Describe("ArchivePath", func() {
		It("prefers the flag, then the file", func() {
			cfg := config.Default()
			cfg.Archive.Path = "/from/config.db"

			Expect(cfg.ArchivePath("/from/flag.db")).To(Equal("/from/flag.db"))
			Expect(cfg.ArchivePath("")).To(Equal("/from/config.db"))
		})

		It("falls back to the home directory", func() {
			path, err := config.Default().ArchivePath("")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveSuffix(filepath.Join(".ollachat", "archive.db")))
		})
	})
})
