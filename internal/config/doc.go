// Package config holds the proxy configuration snapshot and its on-disk
// settings file.
//
// A Config is a plain value: the server reads it once at start and never
// watches it. Changing the protocol or port means building a new Config and
// running a stop/start cycle.
package config
