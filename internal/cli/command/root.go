package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kvobserve",
		Usage:   "Observable key-value store",
		Version: buildinfo.Get().String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			RemoveCommand(),
			KeysCommand(),
			WatchCommand(),
			SecretCommand(),
			BackupCommand(),
			RestoreCommand(),
			GCCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"KVOBSERVE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Storage backend: memory, badger, sqlite, postgres",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "Badger directory or sqlite file",
		},
		&cli.StringFlag{
			Name:  "dsn",
			Usage: "PostgreSQL connection string",
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "Value codec: json, yaml, proto",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address (watch only)",
		},
	}
}

// flagKeys maps global flags to configuration keys.
var flagKeys = map[string]string{
	"backend":      "storage.backend",
	"path":         "storage.path",
	"dsn":          "storage.dsn",
	"codec":        "codec",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// overrides returns the configuration keys set on the command line.
func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

// printError writes an error message to the app's error writer.
func printError(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.ErrWriter, "error: "+format+"\n", args...)
}
