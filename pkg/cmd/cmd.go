// Package cmd adapts plain functions into mitchellh/cli commands. A
// command function has the shape
//
//	func(ctx context.Context, opts struct{ ... }) error
//
// where opts is parsed by go-flags. Every command also accepts the
// Global flags, which configure the logger found with Logger(ctx).
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"github.com/jessevdk/go-flags"
	"github.com/morikuni/aec"
	"golang.org/x/sys/unix"
	"lab47.dev/mrinstall/pkg/progress"
)

type Global struct {
	Verbose bool `short:"v" long:"verbose" description:"log debug output"`
	Trace   bool `long:"trace" description:"log in trace mode"`
	NoColor bool `long:"no-color" description:"disable colored output"`
}

// Level picks the log level the flags ask for, falling back to def.
func (g *Global) Level(def string) string {
	switch {
	case g.Trace:
		return "trace"
	case g.Verbose:
		return "debug"
	default:
		return def
	}
}

type Cmd struct {
	name, syn string

	fn     reflect.Value
	opts   reflect.Value
	global Global
	parser *flags.Parser

	// DefaultLevel is used when neither --verbose nor --trace is given.
	DefaultLevel string
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func New(name, syn string, f interface{}) *Cmd {
	fv := reflect.ValueOf(f)
	ft := fv.Type()

	switch {
	case ft.Kind() != reflect.Func:
		panic("must pass a function")
	case ft.NumIn() != 2 || ft.In(1).Kind() != reflect.Struct:
		panic("function must take a context and an options struct")
	case ft.NumOut() != 1 || ft.Out(0) != errType:
		panic("function must return only an error")
	}

	c := &Cmd{
		name: name,
		syn:  syn,
		fn:   fv,
		opts: reflect.New(ft.In(1)),
	}

	c.parser = flags.NewNamedParser(name, flags.Default)
	c.parser.ShortDescription = syn
	c.parser.LongDescription = syn

	if _, err := c.parser.AddGroup("Application Options", "", c.opts.Interface()); err != nil {
		panic(err)
	}

	if _, err := c.parser.AddGroup("Global Options", "", &c.global); err != nil {
		panic(err)
	}

	return c
}

func (c *Cmd) Help() string {
	var buf bytes.Buffer
	c.parser.WriteHelp(&buf)
	return buf.String()
}

func (c *Cmd) Synopsis() string {
	return c.syn
}

func (c *Cmd) Run(args []string) int {
	if _, err := c.parser.ParseArgs(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelOnSignal(cancel, os.Interrupt, unix.SIGQUIT, unix.SIGTERM)

	L := NewLogger(c.name, c.global.Level(c.DefaultLevel))

	ctx = WithLogger(ctx, L)
	ctx = progress.Open(ctx, os.Stderr)

	out := c.fn.Call([]reflect.Value{reflect.ValueOf(ctx), c.opts.Elem()})

	if err, _ := out[0].Interface().(error); err != nil {
		prefix := "! Error:"
		if !c.global.NoColor {
			prefix = aec.RedF.Apply(prefix)
		}

		fmt.Fprintf(os.Stderr, "%s %+v\n", prefix, err)

		return 1
	}

	return 0
}

func cancelOnSignal(cancel func(), signals ...os.Signal) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, signals...)

	go func() {
		for range ch {
			cancel()
		}
	}()
}

// NewLogger builds the root logger for a command and installs it as the
// hclog default. An unknown level falls back to warn.
func NewLogger(name, level string) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}

	L := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: os.Stderr,
	})

	hclog.SetDefault(L)

	return L
}

type loggerKey struct{}

func WithLogger(ctx context.Context, L hclog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, L)
}

// Logger returns the command's logger, or the hclog default outside of
// a command.
func Logger(ctx context.Context) hclog.Logger {
	if L, ok := ctx.Value(loggerKey{}).(hclog.Logger); ok {
		return L
	}

	return hclog.L()
}
