// Package calflow decides which action of a guarded dataflow actor
// fires next and runs networks of such actors.
//
// See core for actors and the policies that fire them, crew for
// networks, and cmd/caltool for a command-line tool.
package calflow
