package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/internal/storage/sealed"
	"github.com/yndnr/kvobserve-go/pkg/kvstore/codec"
	"github.com/yndnr/kvobserve-go/pkg/observable"
)

// SecretCommand returns the secret subcommand group.
func SecretCommand() *cli.Command {
	serviceFlag := &cli.StringFlag{
		Name:  "service",
		Usage: "Secret service name (default from sealed.service)",
	}
	passFlag := &cli.StringFlag{
		Name:  "passphrase-file",
		Usage: "Read the passphrase from this file instead of the environment",
	}
	flags := []cli.Flag{serviceFlag, passFlag}

	return &cli.Command{
		Name:  "secret",
		Usage: "Encrypted secrets sealed with a passphrase",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Seal VALUE under ACCOUNT",
				ArgsUsage: "ACCOUNT VALUE|-",
				Flags: append(flags, &cli.StringFlag{
					Name:  "accessibility",
					Usage: "when-unlocked or after-first-unlock (default from sealed.accessibility)",
				}),
				Action: action(secretSet),
			},
			{
				Name:      "get",
				Usage:     "Print the secret stored under ACCOUNT",
				ArgsUsage: "ACCOUNT",
				Flags:     flags,
				Action:    action(secretGet),
			},
			{
				Name:      "rm",
				Usage:     "Remove the secret stored under ACCOUNT",
				ArgsUsage: "ACCOUNT",
				Flags:     flags,
				Action:    action(secretRemove),
			},
			{
				Name:   "ls",
				Usage:  "List accounts of a service",
				Flags:  flags,
				Action: action(secretList),
			},
		},
	}
}

// openSealed unlocks the keyring over the configured backend and returns
// the service's store wrapped for observation.
func openSealed(c *cli.Context, e *env) (*observable.Store, error) {
	pass, err := readPassphrase(c, e)
	if err != nil {
		return nil, err
	}
	defer clear(pass)

	access, err := sealed.ParseAccessibility(e.cfg.Sealed.Accessibility)
	if c.IsSet("accessibility") {
		access, err = sealed.ParseAccessibility(c.String("accessibility"))
	}
	if err != nil {
		return nil, err
	}

	keyring := sealed.NewKeyring(e.backend, sealed.WithLogger(e.log.Slog()))
	if err := keyring.Unlock(c.Context, pass); err != nil {
		return nil, err
	}
	e.onClose("keyring", func(context.Context) error { keyring.Lock(); return nil })

	service := e.cfg.Sealed.Service
	if c.IsSet("service") {
		service = c.String("service")
	}
	st, err := keyring.Store(service, access)
	if err != nil {
		return nil, err
	}
	return e.observe(st, codec.JSON), nil
}

func readPassphrase(c *cli.Context, e *env) ([]byte, error) {
	if path := c.String("passphrase-file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		return bytes.TrimRight(b, "\r\n"), nil
	}
	name := e.cfg.Sealed.PassphraseEnv
	pass := os.Getenv(name)
	if pass == "" {
		return nil, fmt.Errorf("no passphrase: set %s or use --passphrase-file", name)
	}
	return []byte(pass), nil
}

func secretSet(c *cli.Context, e *env) error {
	if c.NArg() != 2 {
		return errors.New("secret set needs ACCOUNT and VALUE")
	}
	account, value := c.Args().Get(0), c.Args().Get(1)
	if value == "-" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		value = strings.TrimSuffix(string(b), "\n")
	}
	st, err := openSealed(c, e)
	if err != nil {
		return err
	}
	return st.SetRaw(c.Context, account, []byte(value))
}

func secretGet(c *cli.Context, e *env) error {
	account, err := oneArg(c, "ACCOUNT")
	if err != nil {
		return err
	}
	st, err := openSealed(c, e)
	if err != nil {
		return err
	}
	data, found, err := st.GetRaw(c.Context, account)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", account, ErrNotFound)
	}
	defer clear(data)
	_, err = fmt.Fprintf(c.App.Writer, "%s\n", data)
	return err
}

func secretRemove(c *cli.Context, e *env) error {
	account, err := oneArg(c, "ACCOUNT")
	if err != nil {
		return err
	}
	st, err := openSealed(c, e)
	if err != nil {
		return err
	}
	return st.Remove(c.Context, account)
}

func secretList(c *cli.Context, e *env) error {
	st, err := openSealed(c, e)
	if err != nil {
		return err
	}
	accounts, err := st.Keys(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return e.print(c, accounts)
}
