package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qcbor-go/qcbor/cose"
)

type headersOptions struct {
	inPath string
}

// NewHeadersCommand creates the "cosetool headers" command, which dumps
// a COSE_Sign1 or COSE_Mac0 message's header parameters without
// verifying anything.
func NewHeadersCommand() *cobra.Command {
	opts := &headersOptions{}

	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Dump a COSE message's protected and unprotected header parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeaders(opts)
		},
	}

	cmd.Flags().StringVar(&opts.inPath, "in", "", "path to the COSE message, or \"-\" for stdin (required)")
	cmd.MarkFlagRequired("in")

	return cmd
}

func runHeaders(opts *headersOptions) error {
	data, err := readInput(opts.inPath)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	var headers *cose.Headers
	if msg, err := cose.DecodeSign1(data, nil); err == nil {
		headers = msg.Headers
	} else if msg, err := cose.DecodeMac0(data, nil); err == nil {
		headers = msg.Headers
	} else {
		return fmt.Errorf("message is neither a valid COSE_Sign1 nor COSE_Mac0: %w", err)
	}

	for _, p := range headers.Params {
		bucket := "unprotected"
		if p.InProtected {
			bucket = "protected"
		}
		critical := ""
		if p.Critical {
			critical = " (critical)"
		}
		fmt.Printf("%-10s label=%-5d %s%s\n", bucket, p.Label, describeValue(p), critical)
	}
	return nil
}

func describeValue(p cose.Parameter) string {
	switch p.Kind {
	case cose.KindInt64:
		return fmt.Sprintf("int=%d", p.Int64)
	case cose.KindBytes:
		return fmt.Sprintf("bytes=%x", p.Bytes)
	case cose.KindText:
		return fmt.Sprintf("text=%q", p.Text)
	default:
		return "special=<non-scalar>"
	}
}
