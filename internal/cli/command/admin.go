package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/internal/cli/output"
	"github.com/yndnr/kvobserve-go/internal/config"
	"github.com/yndnr/kvobserve-go/internal/infra/buildinfo"
	"github.com/yndnr/kvobserve-go/internal/storage/badgerstore"
)

// errNotBadger is returned by maintenance commands on other backends.
var errNotBadger = errors.New("this command needs the badger backend")

func badgerBackend(e *env) (*badgerstore.Store, error) {
	bs, ok := e.backend.(*badgerstore.Store)
	if !ok {
		return nil, fmt.Errorf("%w (configured: %s)", errNotBadger, e.cfg.Storage.Backend)
	}
	return bs, nil
}

// BackupCommand returns the backup command.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Write a full badger backup to FILE",
		ArgsUsage: "FILE",
		Action: action(func(c *cli.Context, e *env) error {
			path, err := oneArg(c, "FILE")
			if err != nil {
				return err
			}
			bs, err := badgerBackend(e)
			if err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return fmt.Errorf("create backup: %w", err)
			}
			if err := bs.Backup(c.Context, f); err != nil {
				_ = f.Close()
				_ = os.Remove(path)
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close backup: %w", err)
			}
			e.log.Info("backup written", "file", path)
			return nil
		}),
	}
}

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Load a badger backup from FILE. Existing keys are overwritten",
		ArgsUsage: "FILE",
		Action: action(func(c *cli.Context, e *env) error {
			path, err := oneArg(c, "FILE")
			if err != nil {
				return err
			}
			bs, err := badgerBackend(e)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open backup: %w", err)
			}
			defer f.Close()
			return bs.Restore(c.Context, f)
		}),
	}
}

// GCCommand returns the gc command.
func GCCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Run badger value log garbage collection",
		Action: action(func(c *cli.Context, e *env) error {
			bs, err := badgerBackend(e)
			if err != nil {
				return err
			}
			n, err := bs.GC(c.Context)
			if err != nil {
				return err
			}
			stats := bs.Stats()
			return e.print(c, map[string]any{
				"rewritten_files": n,
				"lsm_size":        stats.LSMSize,
				"vlog_size":       stats.ValueLogSize,
			})
		}),
	}
}

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration with secrets masked",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"), overrides(c))
					if err != nil {
						return err
					}
					format, err := output.ParseFormat(c.String("output"))
					if err != nil {
						return err
					}
					if format == output.FormatTable {
						format = output.FormatYAML
					}
					return output.NewFormatter(format).Format(c.App.Writer, config.Sanitize(cfg))
				},
			},
			{
				Name:  "validate",
				Usage: "Check the configuration and exit",
				Action: func(c *cli.Context) error {
					if _, err := config.Load(c.String("config"), overrides(c)); err != nil {
						return err
					}
					_, err := fmt.Fprintln(c.App.Writer, "configuration ok")
					return err
				},
			},
		},
	}
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				_, err := fmt.Fprintln(c.App.Writer, "kvobserve "+info.String())
				return err
			}
			return output.NewFormatter(format).Format(c.App.Writer, info)
		},
	}
}
