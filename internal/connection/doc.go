// Package connection owns the single link between the extension and the
// Puppet language server.
//
// An Orchestrator drives one Connector through a small state machine:
//
//	Uninitialized -> Checked -> Starting -> Running -> Stopping -> Stopped
//	Uninitialized -> Unavailable (absorbing)
//	Starting|Running -> Failed
//
// Start returns as soon as the connection attempt is under way; whether it
// succeeds is observed as a state change. Only the Orchestrator can start,
// stop or dispose the connection. Everything else receives a Client, which
// can read state and send requests but nothing more.
package connection
