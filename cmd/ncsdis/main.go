// ncsdis disassembles and decompiles compiled NWScript (.ncs) files.
//
// Usage:
//
//	ncsdis [flags] <command> <file.ncs>
//
// Commands:
//
//	disasm      Assembly listing
//	dot         Block graph in Graphviz format
//	decompile   NSS-like pseudo-source
//	info        Header, counts and subroutine classification
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yoremi/nwscript-go/pkg/config"
)

// Global flags
var (
	GameName     string
	EncodingName string
	TableFile    string
	OutputFile   string
	Dump         bool
)

var rootCmd = &cobra.Command{
	Use:     "ncsdis",
	Short:   "NWScript bytecode disassembler and decompiler",
	Version: config.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// glog refuses to log before the standard flag set is parsed.
		_ = flag.CommandLine.Parse(nil)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&GameName, "game", "g", config.DefaultGame, "game that compiled the script (nwn, nwn2, kotor, kotor2, ...)")
	rootCmd.PersistentFlags().StringVarP(&EncodingName, "encoding", "e", "", "code page of string literals (default: the game's)")
	rootCmd.PersistentFlags().StringVarP(&TableFile, "table", "t", "", "YAML function table to load")
	rootCmd.PersistentFlags().StringVarP(&OutputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&Dump, "dump", false, "dump the analysis tables to stderr")
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		// Only the verbosity flags are worth listing in --help.
		pf.Hidden = f.Name != "v" && f.Name != "logtostderr"
		rootCmd.PersistentFlags().AddFlag(pf)
	})
	rootCmd.PersistentFlags().SortFlags = false
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
