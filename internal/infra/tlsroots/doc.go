// Package tlsroots builds client TLS configurations from custom CA bundles.
//
// The postgres backend and the OTLP trace exporter both accept a CA file;
// this package turns that file into a *tls.Config trusting the system roots
// plus the bundle.
package tlsroots
