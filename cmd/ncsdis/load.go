package main

import (
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/yoremi/nwscript-go/pkg/binarray"
	"github.com/yoremi/nwscript-go/pkg/config"
	"github.com/yoremi/nwscript-go/pkg/disasm"
	"github.com/yoremi/nwscript-go/pkg/encoding"
	"github.com/yoremi/nwscript-go/pkg/gamedef"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

// loaded is one parsed script with the game it was parsed for.
type loaded struct {
	path string
	buf  *binarray.Buffer
	data []byte
	game *gamedef.GameDef
	s    *nwscript.Script
}

func gameDef() (*gamedef.GameDef, error) {
	id, err := gamedef.ParseGame(GameName)
	if err != nil {
		return nil, err
	}
	reg, err := gamedef.NewRegistry()
	if err != nil {
		return nil, err
	}
	tables := config.DefaultTables(id.String())
	if TableFile != "" {
		tables = []string{TableFile}
	}
	for _, table := range tables {
		if err := reg.LoadFile(table); err != nil {
			return nil, err
		}
		glog.V(1).Infof("loaded function table %s", table)
	}
	g, _ := reg.Game(id)
	return g, nil
}

func load(path string) (*loaded, error) {
	g, err := gameDef()
	if err != nil {
		return nil, err
	}
	buf, err := binarray.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := nwscript.Parse(buf.Data, g)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return &loaded{path: path, buf: buf, data: buf.Data, game: g, s: s}, nil
}

// analyze runs the requested passes. Soft errors are logged and leave the
// script partially analyzed.
func (l *loaded) analyze(stack, controlFlow bool) error {
	if stack || controlFlow {
		if err := l.s.AnalyzeStack(); err != nil {
			if !nwscript.IsSoft(err) {
				return errors.Wrap(err, l.path)
			}
			glog.Warningf("%s: %v", l.path, err)
		}
	}
	if controlFlow {
		if err := l.s.AnalyzeControlFlow(); err != nil {
			return errors.Wrap(err, l.path)
		}
	}
	if Dump {
		spew.Fdump(os.Stderr, l.s.SubRoutines(), l.s.Variables())
	}
	return nil
}

func (l *loaded) options() disasm.Options {
	opts := disasm.DefaultOptions()
	opts.Version = config.Version
	opts.Encoding = l.game.Encoding
	if EncodingName != "" {
		if enc := encoding.Parse(EncodingName); enc != encoding.Other {
			opts.Encoding = enc
		} else {
			glog.Warningf("unknown encoding %q, using %v", EncodingName, opts.Encoding)
		}
	}
	return opts
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// output opens the --output file, or stdout.
func output() (io.WriteCloser, error) {
	if OutputFile == "" || OutputFile == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(OutputFile)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// toTerminal reports whether output goes to an interactive terminal.
func toTerminal() bool {
	if OutputFile != "" && OutputFile != "-" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
