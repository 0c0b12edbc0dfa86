// Package file provides the TOML-backed configuration store.
//
// The config file lives at ~/.coachkb/config.toml unless --config-dir is
// given. Tables map onto dot keys: [retrieval] limit = 5 reads as
// "retrieval.limit".
package file
