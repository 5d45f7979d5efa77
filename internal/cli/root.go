// Package cli wires cosetool's cobra command tree: keygen, sign,
// verify, mac, and headers.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	log     = logrus.New()
)

// NewRootCommand creates the root cobra command.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cosetool",
		Short: "CBOR/COSE inspection and signing tool",
		Long: `cosetool is a command-line tool for working with RFC 8949 CBOR
and RFC 9052 COSE messages: generate keys, sign and verify COSE_Sign1
messages, create COSE_Mac0 messages, and dump a message's header
parameters.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cosetool.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(NewKeygenCommand())
	rootCmd.AddCommand(NewSignCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewMacCommand())
	rootCmd.AddCommand(NewHeadersCommand())

	return rootCmd
}

func initConfig() {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if cfgFile == "" {
		for _, candidate := range []string{"cosetool.yaml", "cosetool.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}

	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			log.WithError(err).Warn("failed to load config, using defaults")
			cfg = config.Default()
			return
		}
		cfg = loaded
		return
	}

	cfg = config.Default()
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
