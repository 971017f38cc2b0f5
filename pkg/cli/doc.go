// Package cli implements the capload command line.
//
//	capload scan ./plugins --capability api/Greeter.type.yaml
//	capload inspect greeters.zip api.zip --capability api/Greeter.type.yaml
//	capload match candidate.type.yaml capability.type.yaml
//	capload pack ./build/greeters greeters.zip
//	capload serve --config capload.yaml
//
// Every command reads the same configuration: defaults, then the file given
// with --config, then CAPLOAD_* environment variables, then flags.
package cli
