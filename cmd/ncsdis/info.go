package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.ncs>",
	Short: "Print header, counts and subroutines",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, err := load(args[0])
		if err != nil {
			glog.Exitf("%+v", err)
		}
		if err := l.analyze(true, false); err != nil {
			glog.Warningf("%v", err)
		}
		out, err := output()
		if err != nil {
			glog.Exitf("%+v", err)
		}
		defer out.Close()
		writeInfo(out, l)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func writeInfo(w io.Writer, l *loaded) {
	s := l.s
	fmt.Fprintf(w, "File:         %s\n", l.path)
	fmt.Fprintf(w, "Game:         %s\n", l.game.Title)
	fmt.Fprintf(w, "Size:         %d bytes\n", s.Size())
	fmt.Fprintf(w, "MD5:          %x\n", l.buf.Digest())
	fmt.Fprintf(w, "Instructions: %d\n", len(s.Instructions()))
	fmt.Fprintf(w, "Blocks:       %d\n", len(s.Blocks()))
	fmt.Fprintf(w, "SubRoutines:  %d\n", len(s.SubRoutines()))
	if s.HasStackAnalysis() {
		fmt.Fprintf(w, "Variables:    %d\n", len(s.Variables()))
		fmt.Fprintf(w, "Globals:      %d\n", len(s.Globals()))
	}

	width := 0
	for i := range s.SubRoutines() {
		if n := runewidth.StringWidth(s.SubRoutines()[i].DisplayName()); n > width {
			width = n
		}
	}
	fmt.Fprintln(w)
	for i := range s.SubRoutines() {
		sub := &s.SubRoutines()[i]
		fmt.Fprintf(w, "%08X  %s  %-10s %s\n", sub.Address,
			runewidth.FillRight(sub.DisplayName(), width), sub.Type, signature(s, sub))
	}
}

// signature lists parameter and result types, or nothing before stack
// analysis.
func signature(s *nwscript.Script, sub *nwscript.SubRoutine) string {
	if !s.HasStackAnalysis() || !sub.Analyzed() {
		return ""
	}
	types := func(vs []nwscript.VariableID) string {
		names := make([]string, len(vs))
		for i, v := range vs {
			names[i] = s.Variable(v).Type.String()
		}
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", types(sub.Params), types(sub.Results))
}
