package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/internal/cli/output"
	"github.com/yndnr/kvobserve-go/internal/config"
	"github.com/yndnr/kvobserve-go/internal/infra/confloader"
	"github.com/yndnr/kvobserve-go/internal/infra/shutdown"
	"github.com/yndnr/kvobserve-go/internal/telemetry/logger"
	"github.com/yndnr/kvobserve-go/pkg/observable"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print every change to KEY... while reading commands from standard input",
		ArgsUsage: "KEY...",
		Description: "Each watched key starts by printing its current value. Standard input accepts\n" +
			"  set KEY VALUE, rm KEY, get KEY, keys [PREFIX], help and quit.\n" +
			"Writes go through the observable store, so watched keys print their new value.\n" +
			"End of input, SIGINT or SIGTERM stop the session.",
		Action: action(watchAction),
	}
}

func watchAction(c *cli.Context, e *env) error {
	if c.NArg() == 0 {
		return errors.New("watch needs at least one KEY")
	}
	ctx := c.Context
	log := e.log.Slog()
	sh := shutdown.NewHandler(e.cfg.Shutdown.Timeout, log)
	p := newPrinter(c.App.Writer, e.format)

	for _, key := range c.Args().Slice() {
		subject := observable.MakeSubject[any](ctx, e.store, key)
		sub := subject.Subscribe(
			func(v *any) { p.change(key, v) },
			func(err error) { p.failure(key, err) },
		)
		sh.OnShutdown("subject "+key, func(context.Context) error {
			sub.Cancel()
			subject.Close()
			return nil
		})
	}

	if addr := e.cfg.Metrics.Addr; addr != "" {
		srv, err := serveMetrics(addr, e)
		if err != nil {
			return err
		}
		sh.OnShutdown("metrics server", srv.Shutdown)
	}

	if e.cfgPath != "" {
		w, err := watchConfig(e)
		if err != nil {
			return err
		}
		sh.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
	}

	go func() {
		s := &session{env: e, printer: p, errOut: c.App.ErrWriter}
		s.run(ctx, c.App.Reader)
		sh.Trigger()
	}()

	return sh.Wait(ctx)
}

func serveMetrics(addr string, e *env) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server failed", "error", err)
		}
	}()
	e.log.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}

// watchConfig applies log level changes from the configuration file.
func watchConfig(e *env) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(e.cfgPath); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(path string) {
		cfg, err := config.Load(e.cfgPath, e.overrides)
		if err != nil {
			e.log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			e.log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}

// printer serializes output from subscriber callbacks and the command loop.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	format output.Format
}

func newPrinter(w io.Writer, format output.Format) *printer {
	return &printer{w: w, format: format}
}

type changeEvent struct {
	Key     string `json:"key" yaml:"key"`
	Present bool   `json:"present" yaml:"present"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (p *printer) change(key string, v *any) {
	ev := changeEvent{Key: key, Present: v != nil}
	if v != nil {
		ev.Value = *v
	}
	p.emit(ev)
}

func (p *printer) failure(key string, err error) {
	p.emit(changeEvent{Key: key, Error: err.Error()})
}

func (p *printer) emit(ev changeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.format {
	case output.FormatJSON:
		_ = (&output.JSONFormatter{}).Format(p.w, ev)
	case output.FormatYAML:
		_ = (&output.YAMLFormatter{}).Format(p.w, []changeEvent{ev})
	default:
		switch {
		case ev.Error != "":
			fmt.Fprintf(p.w, "%s ! %s\n", ev.Key, ev.Error)
		case !ev.Present:
			fmt.Fprintf(p.w, "%s <absent>\n", ev.Key)
		default:
			fmt.Fprintf(p.w, "%s = %s\n", ev.Key, output.Compact(ev.Value))
		}
	}
}

func (p *printer) result(data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = output.NewFormatter(p.format).Format(p.w, data)
}

// session executes commands read from standard input.
type session struct {
	env     *env
	printer *printer
	errOut  io.Writer
}

const sessionHelp = `commands:
  set KEY VALUE   store VALUE (JSON, or a plain string)
  rm KEY          remove KEY
  get KEY         print the stored value
  keys [PREFIX]   list keys
  quit            end the session`

func (s *session) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quit, err := s.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.errOut, "error: %v\n", err)
		}
		if quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.env.log.Warn("reading commands failed", "error", err)
	}
}

func (s *session) exec(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.SplitN(line, " ", 3)
	cmd := strings.ToLower(parts[0])
	arg := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}

	switch cmd {
	case "set":
		if arg(1) == "" || arg(2) == "" {
			return false, errors.New("usage: set KEY VALUE")
		}
		return false, observable.SetValue(ctx, s.env.store, arg(1), parseValue(arg(2)))
	case "rm", "remove", "del":
		if arg(1) == "" {
			return false, errors.New("usage: rm KEY")
		}
		return false, observable.RemoveValue(ctx, s.env.store, arg(1))
	case "get":
		if arg(1) == "" {
			return false, errors.New("usage: get KEY")
		}
		v, err := observable.Value[any](ctx, s.env.store, arg(1))
		if err != nil {
			return false, err
		}
		s.printer.change(arg(1), v)
		return false, nil
	case "keys", "ls":
		keys, err := s.env.store.Keys(ctx, strings.TrimSpace(strings.TrimPrefix(line, parts[0])))
		if err != nil {
			return false, err
		}
		s.printer.result(keys)
		return false, nil
	case "help", "?":
		fmt.Fprintln(s.errOut, sessionHelp)
		return false, nil
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
}
