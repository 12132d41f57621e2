package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/RogueTeam/ilpgateway/internal/httpsig"
	"github.com/urfave/cli/v3"
)

var ErrKeyExists = errors.New("key file already exists")

// generate writes a new PKCS#8 PEM key to path. Existing files are kept
// unless force is set
func generate(path string, force bool) (key ed25519.PrivateKey, err error) {
	if !force {
		_, err = os.Stat(path)
		if err == nil {
			return nil, fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
	}

	_, key, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	contents, err := httpsig.EncodePrivateKey(key)
	if err != nil {
		return nil, err
	}
	err = os.WriteFile(path, contents, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to write key: %w", err)
	}
	return key, nil
}

func load(path string) (key ed25519.PrivateKey, err error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return httpsig.LoadPrivateKey(contents)
}

func printJWK(w io.Writer, keyId string, key ed25519.PrivateKey) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(httpsig.PublicJWK(keyId, key))
}

var (
	keyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "Private key path",
		Value: "private.key",
	}
	keyIdFlag = &cli.StringFlag{
		Name:  "key-id",
		Usage: "Key identifier registered in the wallet",
	}
)

var app = cli.Command{
	Name:  "keygen",
	Usage: "Manage the ed25519 key the gateway signs Open Payments requests with",
	Commands: []*cli.Command{
		{
			Name:  "generate",
			Usage: "Generate a new private key and print its public JWK",
			Flags: []cli.Flag{
				keyFlag,
				keyIdFlag,
				&cli.BoolFlag{
					Name:  "force",
					Usage: "Overwrite an existing key",
				},
			},
			Action: func(ctx context.Context, c *cli.Command) (err error) {
				key, err := generate(c.String("key"), c.Bool("force"))
				if err != nil {
					return err
				}
				log.Println("INFO|GENERATED|KEY", c.String("key"))
				return printJWK(c.Root().Writer, c.String("key-id"), key)
			},
		},
		{
			Name:  "jwk",
			Usage: "Print the public JWK of an existing key",
			Flags: []cli.Flag{keyFlag, keyIdFlag},
			Action: func(ctx context.Context, c *cli.Command) (err error) {
				key, err := load(c.String("key"))
				if err != nil {
					return err
				}
				return printJWK(c.Root().Writer, c.String("key-id"), key)
			},
		},
		{
			Name:  "seed",
			Usage: "Print the base64 seed of an existing key, accepted as private-key-path contents",
			Flags: []cli.Flag{keyFlag},
			Action: func(ctx context.Context, c *cli.Command) (err error) {
				key, err := load(c.String("key"))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.Root().Writer, base64.StdEncoding.EncodeToString(key.Seed()))
				return err
			},
		},
	},
}

func main() {
	err := app.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
