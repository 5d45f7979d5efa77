package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/cose"
)

type macOptions struct {
	keyHex string
	inPath string
	outPath string
}

// NewMacCommand creates the "cosetool mac" command.
func NewMacCommand() *cobra.Command {
	opts := &macOptions{}

	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Tag a payload as a COSE_Mac0 message (HMAC-SHA256)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMac(opts)
		},
	}

	cmd.Flags().StringVar(&opts.keyHex, "key", "", "hex-encoded HMAC key (required)")
	cmd.Flags().StringVar(&opts.inPath, "in", "", "path to the payload file, or \"-\" for stdin (required)")
	cmd.Flags().StringVar(&opts.outPath, "out", "-", "path to write the COSE_Mac0 message, or \"-\" for stdout")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("in")

	return cmd
}

func runMac(opts *macOptions) error {
	key, err := hex.DecodeString(opts.keyHex)
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}

	payload, err := readInput(opts.inPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	macer := &cose.HMAC256MACer{Key: key}
	data, err := cose.Mac0(&cose.Headers{}, payload, macer, false, nil)
	if err != nil {
		return fmt.Errorf("mac: %w", err)
	}

	return writeOutput(opts.outPath, data)
}
