package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/cleanhttp"
	"lab47.dev/mrinstall/pkg/cmd"
	"lab47.dev/mrinstall/pkg/config"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/gamefiles"
	"lab47.dev/mrinstall/pkg/humanize"
	"lab47.dev/mrinstall/pkg/install"
	"lab47.dev/mrinstall/pkg/loader"
	"lab47.dev/mrinstall/pkg/lockfile"
	"lab47.dev/mrinstall/pkg/modrinth"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
)

func main() {
	c := cli.NewCLI("mrinstall", "0.1.0")
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"setup": func() (cli.Command, error) {
			return command("setup", "create the configuration and data directories", setupF), nil
		},
		"install": func() (cli.Command, error) {
			return command("install", "Install a modpack from a file, a URL, or a project version", installF), nil
		},
		"inspect": func() (cli.Command, error) {
			return command("inspect", "output information about a .mrpack file", inspectF), nil
		},
		"profiles": func() (cli.Command, error) {
			return command("profiles", "List installed profiles", profilesF), nil
		},
		"remove": func() (cli.Command, error) {
			return command("remove", "Remove a profile and everything in it", removeF), nil
		},
		"verify": func() (cli.Command, error) {
			return command("verify", "Check an installed profile against its install receipt", verifyF), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

// command builds a subcommand whose default log level comes from
// MRINSTALL_LOG_LEVEL.
func command(name, syn string, f interface{}) *cmd.Cmd {
	c := cmd.New(name, syn, f)
	c.DefaultLevel = os.Getenv("MRINSTALL_LOG_LEVEL")
	return c
}

func setupF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errors.Wrapf(err, "Unable to create or load configuration directory")
	}

	err = cfg.Save()
	if err != nil {
		return errors.Wrapf(err, "Unable to write configuration")
	}

	fmt.Printf("Config: %s\n", cfg.ConfigPath())
	fmt.Printf("Data Dir: %s\n", cfg.DataDir)
	fmt.Printf("Profiles Path: %s\n", cfg.Profiles())
	fmt.Printf("Caches Path: %s\n", cfg.Caches())
	fmt.Printf("Concurrent Downloads: %d\n", cfg.MaxDownloads)
	fmt.Printf("Concurrent Writes: %d\n", cfg.MaxWrites)

	return nil
}

func openStore(cfg *config.Config, L hclog.Logger) (*profile.Store, error) {
	return profile.Open(cfg.Profiles(), L.Named("profiles"))
}

func newEnv(ctx context.Context, cfg *config.Config, L hclog.Logger, offline bool) (*install.Env, error) {
	store, err := openStore(cfg, L)
	if err != nil {
		return nil, err
	}

	transfers := semaphore.NewWeighted(int64(cfg.MaxDownloads))
	writes := semaphore.NewWeighted(int64(cfg.MaxWrites))

	fetcher := &fetch.Fetcher{
		Client: cleanhttp.New(cfg.UserAgent),
		Sem:    transfers,
		L:      L.Named("fetch"),
	}

	term := progress.FromContext(ctx)

	env := &install.Env{
		Transfers: transfers,
		Writes:    writes,
		Store:     store,
		Fetcher:   fetcher,
		Workers:   cfg.Workers,
		Progress: func(id, title string) progress.Sink {
			return progress.Multi(term, progress.Log(L.Named("progress")))
		},
		Remote: &modrinth.Resolver{
			Client: &modrinth.Client{BaseURL: cfg.APIURL, Fetcher: fetcher},
			Icons:  &modrinth.IconCache{Dir: cfg.IconsPath(), Fetcher: fetcher, Writes: writes},
			L:      L.Named("modrinth"),
		},
	}

	if offline {
		env.Loaders = loader.Static{}
		env.PostInstall = gamefiles.Noop{}
	} else {
		env.Loaders = &loader.MetaResolver{BaseURL: cfg.MetaURL, Fetcher: fetcher, L: L.Named("loader")}
		env.PostInstall = &gamefiles.MetadataInstaller{
			ManifestURL: cfg.VersionManifestURL,
			Fetcher:     fetcher,
			Writes:      writes,
			L:           L.Named("gamefiles"),
		}
	}

	return env, nil
}

func installF(ctx context.Context, opts struct {
	Project string `short:"p" long:"project" description:"project id to install from"`
	Version string `short:"V" long:"version" description:"version id of the project to install"`
	Name    string `short:"n" long:"name" description:"name for a profile installed from a URL"`
	Offline bool   `long:"offline" description:"skip loader resolution and game file installation"`

	Pos struct {
		Source string `positional-arg-name:"file-or-url"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	L := cmd.Logger(ctx)

	if opts.Pos.Source == "" && opts.Version == "" {
		return errors.New("specify a pack file, a URL, or --version")
	}

	env, err := newEnv(ctx, cfg, L, opts.Offline)
	if err != nil {
		return err
	}

	var showLock bool
	cleanup, err := lockfile.Take(ctx, cfg.LockPath(), func() {
		if !showLock {
			fmt.Printf("Another install is running, waiting...\n")
			showLock = true
		}
	})
	if err != nil {
		return err
	}

	defer cleanup()

	co := install.NewCoordinator(env)
	co.SetLogger(L.Named("install"))

	var path string

	switch {
	case opts.Version != "":
		path, err = co.InstallFromVersion(ctx, opts.Project, opts.Version)
	default:
		if _, serr := os.Stat(opts.Pos.Source); serr == nil {
			path, err = co.InstallFromFile(ctx, opts.Pos.Source)
		} else {
			path, err = co.InstallFromURL(ctx, opts.Pos.Source, opts.Name)
		}
	}

	if err != nil {
		return err
	}

	fmt.Printf("Installed profile: %s\n", path)

	return nil
}

func inspectF(ctx context.Context, opts struct {
	Dump bool `long:"dump" description:"dump the full parsed manifest"`

	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes"`
}) error {
	data, err := os.ReadFile(opts.Args.File)
	if err != nil {
		return err
	}

	s, err := install.Inspect(data)
	if err != nil {
		return err
	}

	m := s.Manifest

	if opts.Dump {
		spew.Dump(m)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 4, 2, 1, ' ', 0)
	defer tw.Flush()

	kind, lv := m.Loader()

	game, err := m.GameVersion()
	if err != nil {
		game = "(missing)"
	}

	fmt.Fprintf(tw, "Name:\t%s\n", m.Name)
	fmt.Fprintf(tw, "Version:\t%s\n", m.VersionID)
	if m.Summary != "" {
		fmt.Fprintf(tw, "Summary:\t%s\n", m.Summary)
	}
	fmt.Fprintf(tw, "Game:\t%s %s\n", m.Game, game)
	fmt.Fprintf(tw, "Loader:\t%s %s\n", kind, lv)
	fmt.Fprintf(tw, "Files:\t%d (%s)\n", len(m.Files), humanize.Format(m.TotalSize()))
	fmt.Fprintf(tw, "Overrides:\t%d\n", len(s.Overrides))

	return nil
}

func profilesF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, cmd.Logger(ctx))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 4, 2, 1, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "NAME\tSTAGE\tMINECRAFT\tLOADER\tPATH\n")

	for _, p := range store.List() {
		md := p.Metadata

		ld := string(md.Loader)
		if md.LoaderVersion != "" {
			ld += " " + md.LoaderVersion
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", md.Name, p.Stage, md.GameVersion, ld, p.Path)
	}

	return nil
}

func removeF(ctx context.Context, opts struct {
	Args struct {
		Profile string `positional-arg-name:"profile"`
	} `positional-args:"yes" required:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, cmd.Logger(ctx))
	if err != nil {
		return err
	}

	p, ok := store.Lookup(opts.Args.Profile)
	if !ok {
		return errors.Wrapf(profile.ErrNotFound, "profile: %s", opts.Args.Profile)
	}

	err = store.Remove(p.Path)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %s\n", p.Path)

	return nil
}

var ErrDrift = errors.New("profile does not match its install receipt")

func verifyF(ctx context.Context, opts struct {
	Args struct {
		Profile string `positional-arg-name:"profile"`
	} `positional-args:"yes" required:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, cmd.Logger(ctx))
	if err != nil {
		return err
	}

	p, ok := store.Lookup(opts.Args.Profile)
	if !ok {
		return errors.Wrapf(profile.ErrNotFound, "profile: %s", opts.Args.Profile)
	}

	drift, err := install.Verify(p.Path)
	if err != nil {
		return err
	}

	for _, d := range drift {
		fmt.Printf("%s\t%s\n", d.Kind, d.Path)
	}

	if len(drift) > 0 {
		return errors.Wrapf(ErrDrift, "%d files changed", len(drift))
	}

	fmt.Printf("%s: ok\n", p.Metadata.Name)

	return nil
}
