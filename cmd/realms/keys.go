// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blinklabs-io/realms/api"
	"github.com/blinklabs-io/realms/internal/config"
	"github.com/blinklabs-io/realms/keystore"
	"github.com/spf13/cobra"
)

const defaultSubmitTimeout = 30 * time.Second

func keygenCommand() *cobra.Command {
	var skeyPath, vkeyPath string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a governance signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := keystore.GenerateKeyPair(skeyPath, vkeyPath, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&skeyPath, "signing-key", "governance.skey", "path for the new signing key file")
	cmd.Flags().StringVar(&vkeyPath, "verification-key", "governance.vkey", "path for the new verification key file, empty to skip")
	return cmd
}

func addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <key-file>",
		Short: "Print the address of a signing or verification key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := keystore.LoadVerificationKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	return cmd
}

type signOptions struct {
	skeyPath string
	params   string
	ttl      time.Duration
	submit   string
}

func signCommand() *cobra.Command {
	opts := signOptions{}
	cmd := &cobra.Command{
		Use:   "sign <operation>",
		Short: "Create a signed request token for a governance operation",
		Long: "Create a signed request token for a governance operation. " +
			"The token is printed, or posted to the node given with --submit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl := opts.ttl
			if ttl <= 0 {
				if cfg := config.FromContext(cmd.Context()); cfg != nil {
					ttl = cfg.RequestTTLDuration()
				}
			}
			token, err := signRequest(opts.skeyPath, args[0], opts.params, ttl, time.Now())
			if err != nil {
				return err
			}
			if opts.submit == "" {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultSubmitTimeout)
			defer cancel()
			return submitRequest(ctx, cmd.OutOrStdout(), opts.submit, args[0], token)
		},
	}
	cmd.Flags().StringVar(&opts.skeyPath, "signing-key", "governance.skey", "path to the signing key file")
	cmd.Flags().StringVar(&opts.params, "params", "{}", "operation parameters as a JSON object")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime, defaults to the configured request TTL")
	cmd.Flags().StringVar(&opts.submit, "submit", "", "base URL of a node to post the operation to")
	return cmd
}

func signRequest(
	skeyPath string,
	op string,
	params string,
	ttl time.Duration,
	now time.Time,
) (string, error) {
	if !json.Valid([]byte(params)) {
		return "", errors.New("params must be valid JSON")
	}
	if ttl <= 0 {
		ttl = api.DefaultRequestTTL
	}
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		SigningKeyPath: skeyPath,
		Logger:         slog.Default(),
	})
	if err := ks.LoadFromFiles(); err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}
	signer, err := ks.Signer()
	if err != nil {
		return "", err
	}
	return api.NewRequestToken(signer, op, json.RawMessage(params), ttl, now)
}

func submitRequest(
	ctx context.Context,
	out io.Writer,
	baseURL string,
	op string,
	token string,
) error {
	target, err := url.JoinPath(strings.TrimRight(baseURL, "/"), "api/v0/ops", op)
	if err != nil {
		return fmt.Errorf("invalid node URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit operation: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	fmt.Fprintln(out, string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("operation %s failed: %s", op, resp.Status)
	}
	return nil
}
