// Package harness runs conductor test scenarios written in YAML.
//
// A scenario supplies scripts, decides what each dispatch hook returns,
// drives a conductor through a list of steps on a deterministic tick clock
// and asserts on the recorded hook trace.
//
// # Scenario Format
//
//	name: sleep_then_resume
//	description: "A wait tag sleeps for two ticks"
//	script: |
//	  - label: A
//	  - wait: {time: 2}
//	  - msg: {text: after}
//	shortcuts:
//	  "\n": {tag: r}
//	responses:
//	  wait: {action: sleep, ticks: 2}
//	  msg: break
//	  wt: {await: trans}
//	steps:
//	  - start: {label: A}
//	  - conduct: 3
//	  - trigger: trans
//	  - store: {slot: s1}
//	  - restore: {slot: s1}
//	  - resume: true
//	  - jump: {file: other.yaml, label: B, count_page: true}
//	    expect_error: label
//	assertions:
//	  - type: trace_order
//	    calls: ["label(A)", "tag(wait)", "tag(msg)"]
//	  - type: final_status
//	    status: stop
//
// # Assertion Types
//
//   - trace_contains: a hook call (optionally with name and args) appears
//   - trace_order: calls appear in the given order
//   - trace_count: a hook call appears exactly N times
//   - final_status: the conductor ends in the given status
//   - passed: a save-mark's persisted read state
//   - stable_count: change_stable(true|false) was reported N times
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - A fresh engine.Driver whose clock starts at tick 0
//   - An in-memory script file system
//   - An in-memory SQLite database for read/unread state and save slots
//
// This ensures identical traces across runs for golden file comparison.
package harness
