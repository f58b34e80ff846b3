// Command rowdb inspects and edits rowdb stores without knowing their record
// types. Rows are decoded generically with the store's codec.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/andreyvit/rowdb"
	"github.com/andreyvit/rowdb/badgerkv"
	"github.com/andreyvit/rowdb/pebblekv"
)

type app struct {
	path       string
	backend    string
	codec      string
	keys       string
	logLevel   string
	verbose    bool
	configFile string

	out     io.Writer
	cfgVars map[string]*pflag.Flag
	db      *rowdb.Base
}

func main() {
	err := run(os.Stdout, os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
}

func run(out io.Writer, args []string) error {
	a, root := newRootCmd(out)
	root.SetArgs(args)
	err := root.Execute()
	if a.db != nil {
		cerr := a.db.Close()
		if err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(out io.Writer) (*app, *cobra.Command) {
	a := &app{
		backend:  "bolt",
		codec:    rowdb.MsgPack.Name(),
		keys:     rowdb.BigEndianKeys.Name(),
		logLevel: "warn",
		out:      out,
		cfgVars:  make(map[string]*pflag.Flag),
	}

	root := &cobra.Command{
		Use:               "rowdb",
		Short:             "Inspect rowdb stores",
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
	}
	root.SetOut(out)
	root.SetErr(out)

	fs := root.PersistentFlags()
	fs.StringVarP(&a.path, "path", "p", a.path, "`path` of the store (file for bolt, directory for pebble and badger)")
	a.cfgVars["path"] = fs.Lookup("path")
	fs.StringVar(&a.backend, "backend", a.backend, "storage backend: bolt, pebble, or badger")
	a.cfgVars["backend"] = fs.Lookup("backend")
	fs.StringVar(&a.codec, "codec", a.codec, "record codec: msgpack or json")
	a.cfgVars["codec"] = fs.Lookup("codec")
	fs.StringVar(&a.keys, "keys", a.keys, "key encoding: bigendian or decimal")
	a.cfgVars["keys"] = fs.Lookup("keys")
	fs.StringVar(&a.logLevel, "log-level", a.logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	a.cfgVars["log-level"] = fs.Lookup("log-level")
	fs.BoolVarP(&a.verbose, "verbose", "v", a.verbose, "log every database operation")
	a.cfgVars["verbose"] = fs.Lookup("verbose")
	fs.StringVar(&a.configFile, "config-file", a.configFile, "HCL `file` to load flag defaults from")

	root.AddCommand(
		a.tablesCmd(),
		a.keysCmd(),
		a.dumpCmd(),
		a.getCmd(),
		a.deleteCmd(),
		a.counterCmd(),
		a.statsCmd(),
	)
	return a, root
}

func (a *app) preRun(cmd *cobra.Command, args []string) error {
	if a.configFile != "" {
		err := a.loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("rowdb: %s: %w", a.configFile, err)
		}
	}

	ll, err := log.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("rowdb: %w", err)
	}
	log.SetLevel(ll)
	log.SetOutput(cmd.ErrOrStderr())

	if a.path == "" {
		return fmt.Errorf("rowdb: --path is required")
	}
	a.db, err = a.open()
	return err
}

// loadConfig applies config file values to flags not given on the command line.
func (a *app) loadConfig(cmd *cobra.Command) error {
	b, err := os.ReadFile(a.configFile)
	if err != nil {
		return err
	}
	cfg := map[string]any{}
	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		flg, ok := a.cfgVars[name]
		if !ok {
			return fmt.Errorf("%s is not a config variable", name)
		}
		if cmd.Flags().Changed(flg.Name) {
			continue
		}
		err := flg.Value.Set(fmt.Sprintf("%v", val))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) open() (*rowdb.Base, error) {
	codec, err := rowdb.CodecNamed(a.codec)
	if err != nil {
		return nil, err
	}
	if codec == rowdb.Proto {
		return nil, fmt.Errorf("rowdb: proto rows cannot be decoded without their message type")
	}
	keyEnc, err := rowdb.KeyEncodingNamed(a.keys)
	if err != nil {
		return nil, err
	}
	opt := rowdb.Options{
		Logf:        log.Infof,
		Verbose:     a.verbose,
		Codec:       codec,
		KeyEncoding: keyEnc,
	}
	if a.verbose && log.GetLevel() < log.InfoLevel {
		log.SetLevel(log.InfoLevel)
	}

	log.WithFields(log.Fields{"backend": a.backend, "path": a.path}).Debug("opening store")
	switch strings.ToLower(a.backend) {
	case "bolt":
		return rowdb.Open(a.path, opt)
	case "pebble":
		s, err := pebblekv.Open(a.path, pebblekv.Options{Logger: log.StandardLogger()})
		if err != nil {
			return nil, err
		}
		return rowdb.OpenSubstrate(s, opt), nil
	case "badger":
		s, err := badgerkv.Open(a.path, badgerkv.Options{Logger: log.StandardLogger()})
		if err != nil {
			return nil, err
		}
		return rowdb.OpenSubstrate(s, opt), nil
	default:
		return nil, fmt.Errorf("rowdb: unknown backend %q", a.backend)
	}
}
