// Package script parses script files into tag streams and provides the
// cursor a conductor reads them through.
//
// A script file is a YAML sequence. Each item is a single-key mapping whose
// key is the directive kind:
//
//	# intro.yaml
//	- label: start
//	- save_mark: {name: m1, comment: "Opening"}
//	- bg: {file: room.png, time: 500}
//	- ch: {name: alice, text: "Hello."}
//	- line_break
//	- js: "flags.met = true"
//	- if: {exp: "flags.met"}
//	- endif
//
// A bare scalar item is a directive with no payload. The reserved kinds
// label, save_mark, js and line_break map to the ir.Kind* constants.
package script
