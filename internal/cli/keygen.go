package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/cose"
)

type keygenOptions struct {
	privateKeyPath string
	publicKeyPath  string
	kid            string
}

// NewKeygenCommand creates the "cosetool keygen" command.
func NewKeygenCommand() *cobra.Command {
	opts := &keygenOptions{
		privateKeyPath: "private_key.pem",
		publicKeyPath:  "public_key.pem",
	}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ES256 key pair",
		Long: `Generate a new ES256 (ECDSA P-256 with SHA-256) key pair for
signing COSE_Sign1/COSE_Sign messages.

The keys are written as PEM-encoded PKCS#8/SPKI files.

Example:
  cosetool keygen
  cosetool keygen --private-key mykey.pem --public-key mykey-pub.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts)
		},
	}

	cmd.Flags().StringVar(&opts.privateKeyPath, "private-key", opts.privateKeyPath, "path to save the private key")
	cmd.Flags().StringVar(&opts.publicKeyPath, "public-key", opts.publicKeyPath, "path to save the public key")
	cmd.Flags().StringVar(&opts.kid, "kid", "", "key ID (accepted but not recorded anywhere; keygen writes only the PEM files)")

	return cmd
}

func runKeygen(opts *keygenOptions) error {
	log.Debug("generating ES256 key pair")

	priv, err := cose.GenerateES256Key()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	privPEM, err := cose.EncodeECPrivateKeyPEM(priv)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}
	pubPEM, err := cose.EncodeECPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	if err := os.WriteFile(opts.privateKeyPath, privPEM, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(opts.publicKeyPath, pubPEM, 0644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Printf("generated ES256 key pair\n")
	fmt.Printf("  private key: %s\n", opts.privateKeyPath)
	fmt.Printf("  public key:  %s\n", opts.publicKeyPath)
	return nil
}
