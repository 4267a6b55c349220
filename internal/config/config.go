// Package config binds CLI flags to viper, under an MCPWATCH_ environment
// prefix, the way the root command of the CLI this module descends from
// binds its own persistent flags.
package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper strips from MCPWATCH_* environment
// variables, e.g. MCPWATCH_DEBUG binds to the "debug" key.
const EnvPrefix = "MCPWATCH"

// Init wires viper's environment lookup. Call once from the root command's
// init function, before any subcommand's flags are bound.
func Init() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
}

// BindPersistent binds the persistent flag already registered on cmd under
// name to the same viper key; the caller registers the flag first, in the
// root command's "flag now, viper.BindPFlag right after" idiom.
func BindPersistent(cmd *cobra.Command, name string) {
	viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
}

// Debug reports whether verbose debug logging was requested.
func Debug() bool {
	return viper.GetBool("debug")
}

// VerboseLevel is the glog-style -v verbosity level, 0 by default.
func VerboseLevel() int {
	return viper.GetInt("verbose-level")
}
