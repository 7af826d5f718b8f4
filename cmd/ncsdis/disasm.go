package main

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/yoremi/nwscript-go/pkg/disasm"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

var (
	Stack     bool
	Annotate  bool
	ShowBytes bool
	HexDump   bool
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.ncs>",
	Short: "Disassemble a compiled script",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, err := load(args[0])
		if err != nil {
			glog.Exitf("%+v", err)
		}
		if err := l.analyze(Stack, false); err != nil {
			glog.Exitf("%+v", err)
		}
		out, err := output()
		if err != nil {
			glog.Exitf("%+v", err)
		}
		defer out.Close()

		opts := l.options()
		opts.Annotate = Annotate
		opts.ShowBytes = ShowBytes
		opts.Stack = Stack && l.s.HasStackAnalysis()
		if err := disasm.NewWriter(out, opts).WriteListing(l.s, l.data); err != nil {
			glog.Exitf("%+v", err)
		}
		if HexDump {
			fmt.Fprintln(out)
			if err := disasm.WriteHexDump(out, l.data, 0); err != nil {
				glog.Exitf("%+v", err)
			}
		}
	},
}

var dotCmd = &cobra.Command{
	Use:   "dot <file.ncs>",
	Short: "Write the block graph in Graphviz format",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, err := load(args[0])
		if err != nil {
			glog.Exitf("%+v", err)
		}
		// The graph is useful without control tags.
		if err := l.analyze(true, true); err != nil {
			glog.Warningf("%v", err)
		}
		if toTerminal() {
			glog.Info("writing graph to a terminal, pipe it to dot -Tsvg")
		}
		out, err := output()
		if err != nil {
			glog.Exitf("%+v", err)
		}
		defer out.Close()
		if err := disasm.NewWriter(out, l.options()).WriteDot(l.s); err != nil {
			glog.Exitf("%+v", err)
		}
	},
}

var decompileCmd = &cobra.Command{
	Use:   "decompile <file.ncs>",
	Short: "Write NSS-like pseudo-source",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, err := load(args[0])
		if err != nil {
			glog.Exitf("%+v", err)
		}
		if err := l.analyze(true, true); err != nil {
			glog.Exitf("%+v", err)
		}
		if !l.s.HasControlFlowAnalysis() {
			glog.Exitf("%s: %v", l.path, nwscript.ErrNoMainSubRoutine)
		}
		out, err := output()
		if err != nil {
			glog.Exitf("%+v", err)
		}
		defer out.Close()
		if err := disasm.NewWriter(out, l.options()).WriteSource(l.s); err != nil {
			glog.Exitf("%+v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(dotCmd)
	rootCmd.AddCommand(decompileCmd)

	disasmCmd.Flags().BoolVarP(&Stack, "stack", "s", false, "annotate instructions with the stack layout")
	disasmCmd.Flags().BoolVarP(&Annotate, "annotate", "a", true, "comment engine calls and labels")
	disasmCmd.Flags().BoolVarP(&ShowBytes, "bytes", "b", false, "show addresses and raw bytes")
	disasmCmd.Flags().BoolVarP(&HexDump, "hexdump", "x", false, "append a hex dump of the file")
}
