package cmdconfig

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
)

var _ = Describe("Load", func() {
	var (
		tmpDir string
		logs   bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ollachat-cmdconfig-test-*")
		Expect(err).NotTo(HaveOccurred())
		logs.Reset()

		for _, key := range []string{"OLLAMA_BASE_URL", "OLLAMA_USERNAME", "OLLAMA_PASSWORD"} {
			GinkgoT().Setenv(key, "")
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	write := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	// loadWith runs a bare command carrying the shared flags and returns the
	// Env its RunE built with loader.
	loadWith := func(loader func(*cobra.Command) (*Env, error), args ...string) (*Env, error) {
		var env *Env
		var loadErr error

		cmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, _ []string) error {
				env, loadErr = loader(cmd)
				return nil
			},
		}
		AddPersistentFlags(cmd)
		cmd.SetArgs(append([]string{
			"--config", filepath.Join(tmpDir, "missing-config.toml"),
			"--secrets", filepath.Join(tmpDir, "missing-secrets.toml"),
			"--env-file", filepath.Join(tmpDir, "missing.env"),
		}, args...))
		Expect(cmd.Execute()).To(Succeed())

		if env != nil {
			DeferCleanup(env.Close)
		}
		return env, loadErr
	}

	load := func(args ...string) (*Env, error) {
		return loadWith(func(cmd *cobra.Command) (*Env, error) {
			return Load(cmd, &logs)
		}, args...)
	}

	loadForScreen := func(args ...string) (*Env, error) {
		return loadWith(func(cmd *cobra.Command) (*Env, error) {
			return LoadForScreen(cmd, "chat.log")
		}, args...)
	}

	It("defaults to the local server without auth", func() {
		env, err := load()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Endpoint.BaseURL()).To(Equal("http://localhost:11434"))
		_, ok := env.Endpoint.Auth()
		Expect(ok).To(BeFalse())
		Expect(env.Config.Generation.Model).To(Equal("gemma3:latest"))
	})

	It("prefers flags over the secrets file over the environment", func() {
		secrets := write("secrets.toml", `
OLLAMA_BASE_URL = "http://from-secrets:11434"
OLLAMA_USERNAME = "secret-user"
`)
		dotenv := write(".env", "OLLAMA_USERNAME=env-user\nOLLAMA_PASSWORD=env-pass\n")

		env, err := load("--secrets", secrets, "--env-file", dotenv, "--url", "http://from-flag:11434/")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Endpoint.BaseURL()).To(Equal("http://from-flag:11434"))

		auth, ok := env.Endpoint.Auth()
		Expect(ok).To(BeTrue())
		Expect(auth.Username).To(Equal("secret-user"))
		Expect(auth.Password).To(Equal("env-pass"))
	})

	It("reads generation defaults from the config file", func() {
		cfg := write("config.toml", `
[generation]
model = "llama3.2:1b"
temperature = 0.8
`)
		env, err := load("--config", cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Config.Settings().Model).To(Equal("llama3.2:1b"))
		Expect(env.Config.Settings().Temperature).To(Equal(0.8))
	})

	It("rejects an invalid config file", func() {
		cfg := write("config.toml", "[generation]\ntemperature = 3.0\n")
		_, err := load("--config", cfg)
		Expect(err).To(MatchError(ContainSubstring("temperature")))
	})

	It("logs debug output with --debug", func() {
		_, err := load("--debug")
		Expect(err).NotTo(HaveOccurred())
		Expect(logs.String()).To(ContainSubstring("resolved endpoint"))
	})

	It("writes logs to --log-file", func() {
		logPath := filepath.Join(tmpDir, "ollachat.log")
		env, err := load("--debug", "--log-file", logPath)
		Expect(err).NotTo(HaveOccurred())
		env.Close()

		data, err := os.ReadFile(logPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("resolved endpoint"))
		Expect(logs.String()).To(BeEmpty())
	})

	Describe("for a full-screen command", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("HOME", tmpDir)
		})

		It("logs to the default file instead of the terminal", func() {
			env, err := loadForScreen("--debug")
			Expect(err).NotTo(HaveOccurred())
			env.Logger.Warn("model catalog unavailable")
			env.Close()

			data, err := os.ReadFile(filepath.Join(tmpDir, ".ollachat", "chat.log"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("model catalog unavailable"))
			Expect(logs.String()).To(BeEmpty())
		})

		It("still honours --log-file", func() {
			logPath := filepath.Join(tmpDir, "custom.log")
			env, err := loadForScreen("--log-file", logPath)
			Expect(err).NotTo(HaveOccurred())
			env.Logger.Info("hello")
			env.Close()

			Expect(logPath).To(BeAnExistingFile())
			Expect(filepath.Join(tmpDir, ".ollachat", "chat.log")).NotTo(BeAnExistingFile())
		})
	})

	It("opens the archive at the requested path", func() {
		env, err := load()
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(tmpDir, "nested", "archive.db")
		storer, err := env.OpenArchive(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(storer.Close()).To(Succeed())
		Expect(path).To(BeAnExistingFile())
	})
})

var _ = Describe("flag reads", func() {
	It("returns zero values for flags the command does not define", func() {
		cmd := &cobra.Command{Use: "bare"}
		Expect(stringFlag(cmd, FlagURL)).To(BeEmpty())
		Expect(boolFlag(cmd, FlagDebug)).To(BeFalse())
	})
})
