package gamedef

import (
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yoremi/nwscript-go/pkg/config"
	"github.com/yoremi/nwscript-go/pkg/encoding"
)

// Table is a function table file:
//
//	game: nwn
//	encoding: CP1252
//	engine_types: [effect, event, location, talent, itemproperty]
//	functions:
//	  0: int Random(int nMaxInteger)
//	  1: void PrintString(string sString)
type Table struct {
	Game        string         `yaml:"game"`
	Encoding    string         `yaml:"encoding,omitempty"`
	EngineTypes []string       `yaml:"engine_types,omitempty"`
	Functions   map[int]string `yaml:"functions"`
}

// LoadTable decodes a YAML function table.
func LoadTable(r io.Reader) (*Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, errors.Wrap(err, "decoding function table")
	}
	if t.Game == "" {
		return nil, errors.New("function table names no game")
	}
	return &t, nil
}

// Registry holds the definition of every game. It starts from the
// built-in tables; loaded tables add or replace functions.
type Registry struct {
	games map[GameID]*GameDef
}

// NewRegistry returns a registry with the built-in definitions.
func NewRegistry() (*Registry, error) {
	r := &Registry{games: map[GameID]*GameDef{}}
	for _, id := range Games() {
		g, err := Builtin(id)
		if err != nil {
			return nil, err
		}
		r.games[id] = g
	}
	return r, nil
}

// Game returns the definition of id.
func (r *Registry) Game(id GameID) (*GameDef, bool) {
	g, ok := r.games[id]
	return g, ok
}

// Apply merges t into the definition of its game.
func (r *Registry) Apply(t *Table) error {
	id, err := ParseGame(t.Game)
	if err != nil {
		return err
	}
	g := r.games[id]
	if len(t.EngineTypes) > 0 {
		g.EngineTypes = append([]string(nil), t.EngineTypes...)
	}
	if t.Encoding != "" {
		enc := encoding.Parse(t.Encoding)
		if enc == encoding.Other {
			return errors.Errorf("%v: unknown encoding %q", id, t.Encoding)
		}
		g.Encoding = enc
	}
	for i, p := range t.Functions {
		if err := g.Define(i, p); err != nil {
			return errors.Wrapf(err, "%v", id)
		}
	}
	glog.V(1).Infof("%v: %d functions after loading %d", id, len(g.Functions), len(t.Functions))
	return nil
}

// LoadFile reads a table file, looked up with config.FindTable, and
// applies it.
func (r *Registry) LoadFile(name string) error {
	path, ok := config.FindTable(name)
	if !ok {
		return errors.Errorf("function table %s not found", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	t, err := LoadTable(f)
	if err != nil {
		return errors.Wrap(err, path)
	}
	return r.Apply(t)
}
