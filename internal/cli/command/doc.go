// Package command defines the kvobserve command line using urfave/cli/v2.
//
//   - root.go: application, global flags, error printing
//   - env.go: per-invocation wiring of config, logging, tracing, metrics
//     and the observable store
//   - kv.go: get, set, rm and keys
//   - watch.go: interactive session that prints observed changes
//   - secret.go: sealed secret store
//   - admin.go: badger backup, restore and gc; config show; version
//
// Every action builds its environment from the global flags, runs, then
// closes the backend.
package command
