// Package disasm renders analyzed NWScript programs: assembly listings,
// Graphviz control-flow graphs, NSS-like pseudo-source and hex dumps.
package disasm

import (
	"github.com/yoremi/nwscript-go/pkg/encoding"
)

// Options controls the output of the writers.
type Options struct {
	Annotate  bool          // Prefix listing lines with addresses
	ShowBytes bool          // Show the raw bytes of each instruction
	Stack     bool          // Comment each instruction with the stack it sees
	Encoding  encoding.Type // Code page of string literals
	Indent    string        // One level of pseudo-source indentation
	Version   string        // Written in output headers
}

// DefaultOptions returns the default writer options.
func DefaultOptions() Options {
	return Options{
		Encoding: encoding.CP1252,
		Indent:   "\t",
	}
}
