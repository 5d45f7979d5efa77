package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/cose"
)

type verifyOptions struct {
	keyPath     string
	inPath      string
	payloadPath string
}

// NewVerifyCommand creates the "cosetool verify" command.
func NewVerifyCommand() *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a COSE_Sign1 message's signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts)
		},
	}

	cmd.Flags().StringVar(&opts.keyPath, "key", "", "path to the PEM-encoded ES256 public key (required)")
	cmd.Flags().StringVar(&opts.inPath, "in", "", "path to the COSE_Sign1 message, or \"-\" for stdin (required)")
	cmd.Flags().StringVar(&opts.payloadPath, "payload", "", "path to the detached payload, if the message omits it")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("in")

	return cmd
}

func runVerify(opts *verifyOptions) error {
	pubPEM, err := os.ReadFile(opts.keyPath)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	pub, err := cose.DecodeECPublicKeyPEM(pubPEM)
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}

	data, err := readInput(opts.inPath)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	msg, err := cose.DecodeSign1(data, nil)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	var externalPayload []byte
	if !msg.PayloadPresent {
		if opts.payloadPath == "" {
			return cose.ErrDetachedPayloadRequired
		}
		externalPayload, err = os.ReadFile(opts.payloadPath)
		if err != nil {
			return fmt.Errorf("read detached payload: %w", err)
		}
	}

	verifier := &cose.ES256Verifier{PublicKey: pub}
	if err := cose.Verify1(msg, verifier, externalPayload); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println("signature valid")
	return nil
}
