package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/cose"
)

type signOptions struct {
	keyPath     string
	inPath      string
	outPath     string
	contentType string
	detached    bool
}

// NewSignCommand creates the "cosetool sign" command.
func NewSignCommand() *cobra.Command {
	opts := &signOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a payload as a COSE_Sign1 message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(opts)
		},
	}

	cmd.Flags().StringVar(&opts.keyPath, "key", "", "path to the PEM-encoded ES256 private key (required)")
	cmd.Flags().StringVar(&opts.inPath, "in", "", "path to the payload file, or \"-\" for stdin (required)")
	cmd.Flags().StringVar(&opts.outPath, "out", "-", "path to write the COSE_Sign1 message, or \"-\" for stdout")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "content-type header value")
	cmd.Flags().BoolVar(&opts.detached, "detached", false, "produce a detached-payload COSE_Sign1")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("in")

	return cmd
}

func runSign(opts *signOptions) error {
	privPEM, err := os.ReadFile(opts.keyPath)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	priv, err := cose.DecodeECPrivateKeyPEM(privPEM)
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}

	payload, err := readInput(opts.inPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	h := &cose.Headers{}
	if opts.contentType != "" {
		h.Add(cose.TextParam(cose.HeaderLabelContentType, opts.contentType, true, false))
	}

	signer := &cose.ES256Signer{PrivateKey: priv}
	data, err := cose.Sign1(h, payload, signer, opts.detached, nil)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	return writeOutput(opts.outPath, data)
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return readAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "-" || path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
