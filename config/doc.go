// Package config implements the nested key-value configuration
// surface described in §6: categories (common, registry, controller,
// worker, xrootd) each holding named parameters, loaded from TOML via
// github.com/BurntSushi/toml.
//
// Schema mirrors the read-only/security-context flags
// original_source/replica/config/ConfigurationSchema.cc attaches to
// every parameter: Config.Set rejects writes to a ReadOnly key,
// and callers that log or report configuration are expected to
// consult Security to decide whether a value is safe to display.
package config
