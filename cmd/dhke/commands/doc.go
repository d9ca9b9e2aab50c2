// Package commands defines the dhke CLI.
//
// Commands
//
//   - server     Accept exchanges and run one responder session per connection
//   - client     Run one exchange against a server and print the key fingerprint
//   - params     Print a MODP group, generate a new one, or check a parameter file
//   - status     Print the counters of a running server's status endpoint
//   - genconfig  Print the default YAML configuration
//
// # Implementation
//
// The root command loads the YAML configuration before any subcommand runs.
// Each subcommand applies its own flags on top, then builds an app.Wire, so
// flags always win over the file.
package commands
