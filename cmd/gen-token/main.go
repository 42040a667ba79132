// Command gen-token signs session tokens for local and load testing.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/identity"
)

type options struct {
	secret   string
	issuer   string
	audience string
	count    int
	prefix   string
	start    int
	ttl      time.Duration
	output   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "gen-token [user-id]",
		Short:        "Sign taskboard session tokens",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.secret == "" {
				opts.secret = os.Getenv("AUTH_JWT_SECRET")
			}
			if opts.secret == "" {
				return fmt.Errorf("missing --secret or AUTH_JWT_SECRET")
			}
			if opts.count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			if opts.start < 1 {
				return fmt.Errorf("start index must be at least 1")
			}
			if len(args) > 0 && opts.count > 1 {
				return fmt.Errorf("explicit user ID cannot be provided when generating multiple tokens")
			}
			tokens, err := generateTokens(identity.NewTokens([]byte(opts.secret), opts.issuer, opts.audience), opts, args)
			if err != nil {
				return err
			}
			if opts.output != "" {
				if err := writeTokens(opts.output, tokens); err != nil {
					return err
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tokens[0])
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.secret, "secret", "", "HS256 signing secret (defaults to AUTH_JWT_SECRET)")
	f.StringVar(&opts.issuer, "issuer", "taskboard", "token issuer")
	f.StringVar(&opts.audience, "audience", "taskboard", "token audience")
	f.IntVar(&opts.count, "count", 1, "number of tokens to generate")
	f.StringVar(&opts.prefix, "prefix", "perf-user", "prefix for generated user IDs when count > 1")
	f.IntVar(&opts.start, "start", 1, "starting index for generated user IDs when count > 1")
	f.DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	f.StringVar(&opts.output, "output", "", "file to write generated tokens as a JSON array")
	return cmd
}

func generateTokens(signer *identity.Tokens, opts options, args []string) ([]string, error) {
	tokens := make([]string, opts.count)
	for i := range tokens {
		var userID string
		switch {
		case len(args) > 0:
			userID = args[0]
		case opts.count == 1:
			userID = opts.prefix
		default:
			userID = fmt.Sprintf("%s-%d", opts.prefix, opts.start+i)
		}
		tok, _, err := signer.Issue(userID, userID+"@example.test", identity.PurposeSession, opts.ttl)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
