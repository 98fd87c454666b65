// Package engine implements the script conductor: a tick-driven interpreter
// that pulls tags from a script cursor and dispatches each to a host hook.
//
// ARCHITECTURE:
//
// Conductor:
// One conductor runs one script. The host calls Conduct(tick) once per
// tick; the conductor drains tags until a hook breaks, the status leaves
// Run, or the script is exhausted. It never blocks and never spawns
// goroutines.
//
// Status machine:
//
//	Stop  --Start-->  Run
//	Run   --Sleep-->  Sleep  --(duration elapsed in Conduct)-->  Run
//	any   --Stop-->   Stop
//	Run   --(script exhausted)-->  Stop
//
// Stability:
// A conductor is stable when stopped with no handler pending under a
// blocking event name (move, trans, frameanim, soundstop, soundfade).
// Hooks.OnChangeStable fires only on a change, checked when Conduct enters
// and leaves its dispatch loop.
//
// Persistence:
// Store captures a Snapshot (refused inside macro, for or if blocks) and
// Restore reloads the script and seeks the save-mark. Read/unread progress
// lives in a ReadUnread tracker shared by every conductor.
//
// Driver:
// Driver owns the tick Clock and a trigger queue. Asynchronous effects post
// completions with Driver.Post from any goroutine; Step delivers them on the
// driver goroutine before conducting.
//
// CRITICAL PATTERNS:
//
// Logical ticks: sleep durations are measured in ticks from Clock, never
// wall-clock time, so a driven run is reproducible.
//
// Single owner: a conductor, its cursor and its handler registry are only
// touched from the goroutine that drives it.
package engine
