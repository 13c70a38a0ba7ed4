// Package config loads server configuration.
//
// Values are layered: [Default], then an optional YAML file (named by the
// --config flag or COSMOSMCP_CONFIG), then COSMOSMCP_* environment
// variables. Command-line flags are applied by the caller on top. The file
// may reference environment variables as ${VAR} or ${VAR:-default}.
//
// Secrets are never stored in the file. The file names the variables or
// paths that hold them (store.key_env, store.key_file,
// server.auth_secret_env).
package config
