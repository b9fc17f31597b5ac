package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/eventgate/config"
)

var (
	configFile string
	envFiles   []string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "eventgate",
	Short: "eventgate admits visitors who carry a signed, time-limited link",
	Long: `A gate for event sites: visitors arriving through a signed QR code or link
get a session cookie that lasts as long as the link; everyone else is sent
to the access-denied page.

Configuration is read from an optional YAML file, EVENTGATE_* environment
variables (nested keys use a double underscore, e.g. EVENTGATE_GATE__COOKIE_NAME)
and command-line flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCode ends the process with a specific status without printing an
// error. Commands that already reported the outcome return it.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "KEY=value files loaded into the environment (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig merges configuration sources. flagKeys maps flag names of cmd
// to config keys; only flags set on the command line override.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	keys := maps.Clone(flagKeys)
	if keys == nil {
		keys = map[string]string{}
	}
	keys["log-level"] = "log.level"

	overrides := map[string]any{}
	for name, key := range keys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	return config.NewLoader(
		config.WithConfigFile(configFile),
		config.WithDotEnv(envFiles...),
		config.WithFlags(overrides),
	).Load()
}
