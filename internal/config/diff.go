package config

// ConfigDiff describes what changed between two configs.
// LogLevelChanged and ResilienceChanged can be applied at runtime; the other
// flags mean a restart is needed for the change to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ResilienceChanged bool

	// StoreChanged is true when any store setting changed.
	StoreChanged bool

	// ListenAddrChanged is true when the HTTP listen address changed.
	ListenAddrChanged bool

	// DefaultScopeChanged is true when the editor's default scope changed.
	DefaultScopeChanged bool
}

// Empty reports whether nothing tracked changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ResilienceChanged && !d.StoreChanged &&
		!d.ListenAddrChanged && !d.DefaultScopeChanged
}

// RequiresRestart reports whether the diff contains changes that are only
// picked up by restarting the server.
func (d ConfigDiff) RequiresRestart() bool {
	return d.StoreChanged || d.ListenAddrChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ListenAddrChanged = old.Server.ListenAddr != new.Server.ListenAddr
	d.StoreChanged = old.Store != new.Store
	d.ResilienceChanged = old.Resilience != new.Resilience
	d.DefaultScopeChanged = old.Editor.DefaultScope != new.Editor.DefaultScope
	return d
}
