package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/studynotes/internal/logging"
	"github.com/hrygo/studynotes/internal/profile"
	"github.com/hrygo/studynotes/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "studynotes",
	Short: `A study assistant that answers questions from your notes, retrieving them only when a question needs them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Systemd units provide the environment themselves.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		logging.Setup(logging.OptionsForMode(viper.GetString("mode"), viper.GetString("log-level")))
		return nil
	},
	RunE: runServe,
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)
	viper.SetDefault("log-level", "info")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 28090, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver of the store retrieval backend (sqlite, postgres)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("retrieval-backend", "", "note retrieval backend (chromem, store)")
	flags.String("preset", "", "classifier preset applied at startup")
	flags.String("classifier-config", "", "YAML file with classifier settings, reloaded on change")
	flags.String("preset-file", "", "YAML file with additional classifier presets")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn", "log-level",
		"retrieval-backend", "preset", "classifier-config", "preset-file",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("studynotes")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, classifyCmd, presetsCmd, indexCmd, versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

// loadProfile assembles the profile from flags, environment and defaults.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.Get().Version,
	}
	instanceProfile.FromEnv()

	// Flags win over STUDYNOTES_* defaults applied by FromEnv.
	if v := viper.GetString("retrieval-backend"); v != "" {
		instanceProfile.RetrievalBackend = v
	}
	if v := viper.GetString("preset"); v != "" {
		instanceProfile.Preset = v
	}
	if v := viper.GetString("classifier-config"); v != "" {
		instanceProfile.ClassifierConfigFile = v
	}
	if v := viper.GetString("preset-file"); v != "" {
		instanceProfile.PresetFile = v
	}

	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func printGreetings(profile *profile.Profile, chatEnabled bool) {
	fmt.Printf("StudyNotes %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Retrieval backend: %s\n", profile.RetrievalBackend)
	fmt.Printf("Classifier preset: %s\n", profile.Preset)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if !chatEnabled {
		fmt.Fprint(os.Stderr, "Chat is disabled: set STUDYNOTES_EMBEDDING_API_KEY to enable retrieval\n")
	}

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
