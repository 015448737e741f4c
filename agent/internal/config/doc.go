// Package config loads and watches the relay agent configuration file.
//
// Top-level types:
//   - Config{Relay, Log, Diagnostics, Host}: full config tree
//   - RelayConfig: endpoint, request_timeout, user_agent, auth, tls, dead_letter
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//   - DeadLetterConfig: backend (none|memory|redis), capacity, redis_addr, key
//   - LogConfig: level, format, rotating file options
//   - DiagnosticsConfig: listen address for /metrics and /ws/tap
//   - HostConfig: size of the host's result buffer
//
// Load(path) reads the file (TOML when the name ends in .toml, YAML otherwise),
// applies defaults (10s request timeout, 4096 byte host buffer, info/json
// logging), then validates required fields and enums. An empty path yields
// the defaults.
//
// Watch(ctx, path, onChange) watches the file's directory with fsnotify and
// calls onChange with each newly parsed Config. Saves that rename a temp
// file over path are picked up like in-place writes.
package config
