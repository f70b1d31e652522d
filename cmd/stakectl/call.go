package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"stakeledger/internal/middleware"
)

var (
	signerFlag = &cli.StringFlag{
		Name:     "signer",
		Usage:    "address of the keystore key that signs the request",
		Required: true,
	}
	apiFlag = &cli.StringFlag{
		Name:    "api",
		Usage:   "base URL of the ledger API",
		Value:   "http://localhost:8080",
		EnvVars: []string{"STAKELEDGER_API"},
	}
	methodFlag = &cli.StringFlag{
		Name:  "method",
		Usage: "HTTP method",
		Value: http.MethodPost,
	}
	dataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "JSON object body; expires_at is added",
		Value: "{}",
	}
	ttlFlag = &cli.DurationFlag{
		Name:  "ttl",
		Usage: "how long the signature stays valid",
		Value: time.Minute,
	}
)

var commandCall = &cli.Command{
	Name:      "call",
	Usage:     "send a signed request to the ledger API",
	ArgsUsage: "<path>",
	Description: `
Sign and send one request, for example:

    stakectl call --signer <address> --data '{"amount":100,"token_account":"..."}' /pools/<pool>/stake
`,
	Flags: []cli.Flag{signerFlag, passwordFileFlag, apiFlag, methodFlag, dataFlag, ttlFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("request path required")
		}
		pw, err := password(c)
		if err != nil {
			return err
		}
		key, err := keyManager(c).LoadSigner(c.String(signerFlag.Name), pw)
		if err != nil {
			return err
		}

		expiresAt := time.Now().Add(c.Duration(ttlFlag.Name)).Unix()
		req, err := signedRequest(key, strings.ToUpper(c.String(methodFlag.Name)),
			c.String(apiFlag.Name), c.Args().First(), c.String(dataFlag.Name), expiresAt)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(body))
		if resp.StatusCode >= 300 {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return nil
	},
}

// signedRequest builds a request the way RequireSignature verifies it: the
// body gains expires_at and the signature covers method, path and body.
func signedRequest(key solana.PrivateKey, method, baseURL, path, data string, expiresAt int64) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	// UseNumber keeps large integers such as reward rates exact.
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	fields := map[string]interface{}{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	fields["expires_at"] = expiresAt
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	sig, err := key.Sign(middleware.SignedMessage(method, path, body))
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	req, err := http.NewRequest(method, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSigner, key.PublicKey().String())
	req.Header.Set(middleware.HeaderSignature, sig.String())
	return req, nil
}

var commandSign = &cli.Command{
	Name:      "sign",
	Usage:     "print the headers and body of a signed request without sending it",
	ArgsUsage: "<path>",
	Flags:     []cli.Flag{signerFlag, passwordFileFlag, methodFlag, dataFlag, ttlFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("request path required")
		}
		pw, err := password(c)
		if err != nil {
			return err
		}
		key, err := keyManager(c).LoadSigner(c.String(signerFlag.Name), pw)
		if err != nil {
			return err
		}

		expiresAt := time.Now().Add(c.Duration(ttlFlag.Name)).Unix()
		req, err := signedRequest(key, strings.ToUpper(c.String(methodFlag.Name)),
			"", c.Args().First(), c.String(dataFlag.Name), expiresAt)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(map[string]string{
			"method":                   req.Method,
			"path":                     req.URL.Path,
			middleware.HeaderSigner:    req.Header.Get(middleware.HeaderSigner),
			middleware.HeaderSignature: req.Header.Get(middleware.HeaderSignature),
			"body":                     string(body),
		}, "", "  ")
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	},
}
