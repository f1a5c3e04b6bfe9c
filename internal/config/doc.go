// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides type-safe
// access to the settings needed by the queue, the recording pipeline and its
// adapters while keeping configuration details separate from business logic.
package config
