// Package memory provides an in-memory kvstore.Store.
//
// It is the process-local preference store: values live in a sharded
// concurrent map and disappear with the process. Values are copied on the
// way in and out so callers never share backing arrays with the store.
package memory
