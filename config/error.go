package config

import "fmt"

// ConfigError is a startup-fatal error: an unknown node type, a missing
// required field, a dangling next reference, a negative absolute delay, a
// YAML parse failure, or a script load failure. main prints it via mlog
// and exits 1; nothing recovers from it at runtime.
type ConfigError struct {
	Node string // the offending node's name, empty if not yet known
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: node %q: %v", e.Node, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(node string, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Node: node, Err: fmt.Errorf(format, args...)}
}
