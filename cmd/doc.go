// Package cmd implements the command-line interface of dss. It provides
// commands for running the server and for talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Key-value operations (put, get, get-prefix, del, del-prefix, swap, info)
//   - lock: Locking operations (acquire, release)
//   - serve: Starting and configuring the dss server
//   - util: Shared flag and configuration handling (internal use)
//
// Flags can also be set with DSS_<FLAG> environment variables or in .env and
// .env.local files. See dss -help for a list of all commands.
package cmd
