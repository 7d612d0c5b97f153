package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// run executes the app with args and returns stdout, stderr and the error.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"kvobserve"}, args...))
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, stdin, args...)
	if err != nil {
		t.Fatalf("kvobserve %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func sqliteArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--backend", "sqlite", "--path", filepath.Join(t.TempDir(), "db", "kv.db")}
}

func decodeKeys(t *testing.T, out string) []string {
	t.Helper()
	var keys []string
	if err := json.Unmarshal([]byte(out), &keys); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return keys
}

func with(base []string, args ...string) []string {
	return append(append([]string{}, base...), args...)
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "kvobserve" {
		t.Errorf("Name = %q, want kvobserve", app.Name)
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"get", "set", "rm", "keys", "watch", "secret", "backup", "restore", "gc", "config", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for flag := range flagKeys {
		if !flags[flag] {
			t.Errorf("flag %q has a config key but is not defined", flag)
		}
	}
}

func TestSetGetRemove(t *testing.T) {
	base := sqliteArgs(t)

	mustRun(t, "", with(base, "set", "theme", "dark")...)
	mustRun(t, "", with(base, "set", "font.size", "12")...)
	mustRun(t, "", with(base, "set", "layout", `{"panes":2}`)...)

	tests := []struct {
		key  string
		args []string
		want string
	}{
		{"theme", nil, "dark\n"},
		{"font.size", nil, "12\n"},
		{"layout", nil, "{\"panes\":2}\n"},
		{"theme", []string{"-o", "json"}, "\"dark\"\n"},
		{"layout", []string{"-o", "yaml"}, "panes: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.key+strings.Join(tt.args, ""), func(t *testing.T) {
			args := with(base, tt.args...)
			got := mustRun(t, "", with(args, "get", tt.key)...)
			if got != tt.want {
				t.Errorf("get %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if got := mustRun(t, "", with(base, "keys")...); got != "KEY\nfont.size\nlayout\ntheme\n" {
		t.Errorf("keys = %q", got)
	}
	if got := decodeKeys(t, mustRun(t, "", with(base, "-o", "json", "keys", "f")...)); !reflect.DeepEqual(got, []string{"font.size"}) {
		t.Errorf("keys f = %q", got)
	}

	mustRun(t, "", with(base, "rm", "theme")...)
	mustRun(t, "", with(base, "rm", "theme")...)
	if _, _, err := run(t, "", with(base, "get", "theme")...); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after rm error = %v, want ErrNotFound", err)
	}
}

func TestSet_Modes(t *testing.T) {
	base := sqliteArgs(t)

	mustRun(t, "", with(base, "set", "--string", "n", "12")...)
	if got := mustRun(t, "", with(base, "-o", "json", "get", "n")...); got != "\"12\"\n" {
		t.Errorf("get n = %q, want a JSON string", got)
	}

	mustRun(t, "opaque bytes\n", with(base, "set", "--raw", "blob", "-")...)
	if got := mustRun(t, "", with(base, "get", "--raw", "blob")...); got != "opaque bytes" {
		t.Errorf("get --raw blob = %q", got)
	}
	if _, _, err := run(t, "", with(base, "get", "blob")...); err == nil {
		t.Error("decoding non-JSON bytes should fail")
	}
}

func TestArgumentErrors(t *testing.T) {
	base := with(nil, "--backend", "memory")
	tests := []struct {
		name string
		args []string
	}{
		{"get without key", with(base, "get")},
		{"set without value", with(base, "set", "k")},
		{"rm with two keys", with(base, "rm", "a", "b")},
		{"watch without keys", with(base, "watch")},
		{"unknown output", with(base, "-o", "xml", "keys")},
		{"unknown backend", []string{"--backend", "etcd", "keys"}},
		{"unknown codec", with(base, "--codec", "xml", "keys")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(t, "", tt.args...); err == nil {
				t.Errorf("kvobserve %v should fail", tt.args)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	script := strings.Join([]string{
		`set theme "dark"`,
		`set other 1`,
		`get theme`,
		`bogus`,
		`rm theme`,
		`keys`,
		`quit`,
		`set theme "ignored after quit"`,
	}, "\n")

	out, errOut, err := run(t, script, "--backend", "memory", "watch", "theme")
	if err != nil {
		t.Fatalf("watch error = %v\nstderr: %s", err, errOut)
	}

	want := "theme <absent>\n" +
		"theme = dark\n" +
		"theme = dark\n" +
		"theme <absent>\n" +
		"KEY\nother\n"
	if out != want {
		t.Errorf("watch output:\n%s\nwant:\n%s", out, want)
	}
	if !strings.Contains(errOut, `unknown command "bogus"`) {
		t.Errorf("stderr = %q, want unknown command error", errOut)
	}
}

func TestWatch_NullIsPresent(t *testing.T) {
	out := mustRun(t, "set k null\nrm k\n", "--backend", "memory", "watch", "k")
	want := "k <absent>\nk = null\nk <absent>\n"
	if out != want {
		t.Errorf("watch output = %q, want %q", out, want)
	}
}

func TestWatch_JSON(t *testing.T) {
	out := mustRun(t, "set a {\"x\":1}\n", "--backend", "memory", "-o", "json", "watch", "a", "b")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		`{"key":"a","present":false}`,
		`{"key":"b","present":false}`,
		`{"key":"a","present":true,"value":{"x":1}}`,
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestSecret(t *testing.T) {
	base := sqliteArgs(t)
	t.Setenv("KVOBSERVE_PASSPHRASE", "correct horse")

	mustRun(t, "", with(base, "secret", "set", "--service", "github", "alice", "tok-123")...)
	mustRun(t, "", with(base, "secret", "set", "--service", "github", "bob", "tok-456")...)

	if got := mustRun(t, "", with(base, "secret", "get", "--service", "github", "alice")...); got != "tok-123\n" {
		t.Errorf("secret get = %q", got)
	}
	if got := decodeKeys(t, mustRun(t, "", with(base, "-o", "json", "secret", "ls", "--service", "github")...)); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("secret ls = %q", got)
	}

	raw := mustRun(t, "", with(base, "keys", "sealed/github/")...)
	if strings.Contains(raw, "tok-") {
		t.Errorf("plain keys listing leaked a secret: %q", raw)
	}

	mustRun(t, "", with(base, "secret", "rm", "--service", "github", "alice")...)
	if _, _, err := run(t, "", with(base, "secret", "get", "--service", "github", "alice")...); !errors.Is(err, ErrNotFound) {
		t.Errorf("secret get after rm error = %v, want ErrNotFound", err)
	}

	t.Setenv("KVOBSERVE_PASSPHRASE", "wrong")
	if _, _, err := run(t, "", with(base, "secret", "get", "--service", "github", "bob")...); err == nil {
		t.Error("secret get with the wrong passphrase should fail")
	}
}

func TestSecret_PassphraseFile(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "pass")
	if err := os.WriteFile(passFile, []byte("from file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KVOBSERVE_PASSPHRASE", "")
	base := sqliteArgs(t)

	if _, _, err := run(t, "", with(base, "secret", "set", "a", "v")...); err == nil {
		t.Fatal("secret set without a passphrase should fail")
	}
	mustRun(t, "", with(base, "secret", "set", "--passphrase-file", passFile, "a", "v")...)
	if got := mustRun(t, "", with(base, "secret", "get", "--passphrase-file", passFile, "a")...); got != "v\n" {
		t.Errorf("secret get = %q", got)
	}
}

func TestBackupRestore(t *testing.T) {
	src := []string{"--backend", "badger", "--path", filepath.Join(t.TempDir(), "src")}
	dst := []string{"--backend", "badger", "--path", filepath.Join(t.TempDir(), "dst")}
	file := filepath.Join(t.TempDir(), "kv.bak")

	mustRun(t, "", with(src, "set", "theme", "dark")...)
	mustRun(t, "", with(src, "backup", file)...)
	if _, _, err := run(t, "", with(src, "backup", file)...); err == nil {
		t.Error("backup must not overwrite an existing file")
	}

	mustRun(t, "", with(dst, "restore", file)...)
	if got := mustRun(t, "", with(dst, "get", "theme")...); got != "dark\n" {
		t.Errorf("restored get = %q", got)
	}

	out := mustRun(t, "", with(dst, "-o", "json", "gc")...)
	if !strings.Contains(out, "rewritten_files") {
		t.Errorf("gc output = %q", out)
	}
}

func TestBadgerOnlyCommands(t *testing.T) {
	for _, args := range [][]string{{"backup", "x"}, {"restore", "x"}, {"gc"}} {
		_, _, err := run(t, "", with([]string{"--backend", "memory"}, args...)...)
		if !errors.Is(err, errNotBadger) {
			t.Errorf("%v error = %v, want errNotBadger", args, err)
		}
	}
}

func TestConfigShow(t *testing.T) {
	out := mustRun(t, "", "--backend", "postgres", "--dsn", "postgres://app:hunter2@db/prefs", "config", "show")
	if strings.Contains(out, "hunter2") {
		t.Errorf("config show leaked the password:\n%s", out)
	}
	for _, want := range []string{"backend: postgres", "xxxxx", "timeout: 10s"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}

	if got := mustRun(t, "", "config", "validate"); got != "configuration ok\n" {
		t.Errorf("config validate = %q", got)
	}
	if _, _, err := run(t, "", "--log-level", "loud", "config", "validate"); err == nil {
		t.Error("config validate should reject a bad log level")
	}
}

func TestVersion(t *testing.T) {
	if got := mustRun(t, "", "version"); !strings.HasPrefix(got, "kvobserve ") {
		t.Errorf("version = %q", got)
	}
	if got := mustRun(t, "", "-o", "json", "version"); !strings.Contains(got, `"go_version"`) {
		t.Errorf("version -o json = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"dark", "dark"},
		{`"dark"`, "dark"},
		{"12", float64(12)},
		{"true", true},
		{"null", nil},
		{`[1,"a"]`, []any{float64(1), "a"}},
		{`{"a":{"b":1}}`, map[string]any{"a": map[string]any{"b": float64(1)}}},
		{"{broken", "{broken"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
