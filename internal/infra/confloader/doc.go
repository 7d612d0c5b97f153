// Package confloader loads kvobserve configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Command-line flag overrides (LoadMap)
//  2. Environment variables (KVOBSERVE_ prefix)
//  3. The YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports changes to the configuration file so long-running
// commands can re-apply settings such as the log level.
package confloader
