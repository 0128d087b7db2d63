// Package preflight provides readiness checks for the directories and
// external tools lala depends on.
//
// The daemon runs RunAll before starting the worker and refuses to start
// when a required directory is unusable. Tool checks are advisory: a missing
// separator only fails the jobs that need it, so CheckTools results are
// reported through the status endpoint and "lala status" instead.
package preflight
