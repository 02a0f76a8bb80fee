// Package preflight provides readiness checks for the model endpoint and the
// filesystem paths Shotforge depends on.
//
// The CLI "shotforge doctor" command runs RunAll and renders the results;
// "shotforge generate" runs the LLM check only when --preflight is set so a
// bad key fails fast instead of after the structure prompt times out.
package preflight
