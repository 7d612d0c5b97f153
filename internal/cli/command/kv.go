package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
	"github.com/yndnr/kvobserve-go/pkg/observable"
)

// ErrNotFound is returned by get for an absent key.
var ErrNotFound = errors.New("key not found")

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under KEY",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Write the stored bytes without decoding"},
		},
		Action: action(getAction),
	}
}

func getAction(c *cli.Context, e *env) error {
	key, err := oneArg(c, "KEY")
	if err != nil {
		return err
	}
	if c.Bool("raw") {
		data, found, err := e.store.GetRaw(c.Context, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		_, err = c.App.Writer.Write(data)
		return err
	}

	v, err := observable.Value[any](c.Context, e.store, key)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return e.print(c, *v)
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store VALUE under KEY",
		ArgsUsage: "KEY VALUE|-",
		Description: "VALUE is parsed as JSON; text that is not valid JSON is stored as a string.\n" +
			"A VALUE of - reads the value from standard input.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "string", Aliases: []string{"s"}, Usage: "Store VALUE as a string without parsing"},
			&cli.BoolFlag{Name: "raw", Usage: "Store VALUE bytes as-is, bypassing the codec"},
		},
		Action: action(setAction),
	}
}

func setAction(c *cli.Context, e *env) error {
	if c.NArg() != 2 {
		return fmt.Errorf("set needs KEY and VALUE, got %d arguments", c.NArg())
	}
	key, text := c.Args().Get(0), c.Args().Get(1)
	if text == "-" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		text = strings.TrimSuffix(string(b), "\n")
	}

	if c.Bool("raw") {
		return e.store.SetRaw(c.Context, key, []byte(text))
	}
	var v any = text
	if !c.Bool("string") {
		v = parseValue(text)
	}
	return observable.SetValue(c.Context, e.store, key, v)
}

// parseValue interprets text as JSON, falling back to the text itself.
func parseValue(text string) any {
	var v any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(text, &v); err != nil {
		return text
	}
	return v
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove", "del"},
		Usage:     "Remove KEY. Removing an absent key succeeds",
		ArgsUsage: "KEY",
		Action: action(func(c *cli.Context, e *env) error {
			key, err := oneArg(c, "KEY")
			if err != nil {
				return err
			}
			return observable.RemoveValue(c.Context, e.store, key)
		}),
	}
}

// KeysCommand returns the keys command.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:      "keys",
		Aliases:   []string{"ls"},
		Usage:     "List keys, optionally limited to PREFIX",
		ArgsUsage: "[PREFIX]",
		Action: action(func(c *cli.Context, e *env) error {
			keys, err := e.store.Keys(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return e.print(c, keys)
		}),
	}
}

func oneArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s needs exactly one %s argument", c.Command.Name, name)
	}
	arg := c.Args().First()
	if arg == "" {
		return "", kvstore.ErrInvalidArgument.WithDetails("empty " + strings.ToLower(name))
	}
	return arg, nil
}
