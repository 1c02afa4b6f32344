// Package install turns a modpack archive into an installed profile.
package install

import (
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/gamefiles"
	"lab47.dev/mrinstall/pkg/loader"
	"lab47.dev/mrinstall/pkg/modrinth"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
)

const DefaultWorkers = 10

// Env carries the process wide resources an install runs against.
type Env struct {
	// Bounds concurrent network transfers across every install. Fetcher.Sem
	// should be the same semaphore.
	Transfers *semaphore.Weighted

	// Bounds concurrent file writes.
	Writes *semaphore.Weighted

	Store   *profile.Store
	Fetcher *fetch.Fetcher

	// Resolves project/version references. Only needed to install by
	// version.
	Remote *modrinth.Resolver

	Loaders     loader.Resolver
	PostInstall gamefiles.Installer

	// Progress, if set, supplies the sink for each install's bar.
	Progress func(id, title string) progress.Sink

	// Number of pack files installed at once.
	Workers int
}

func (e *Env) workers() int {
	if e.Workers <= 0 {
		return DefaultWorkers
	}

	return e.Workers
}

func (e *Env) loaders() loader.Resolver {
	if e.Loaders == nil {
		return loader.Static{}
	}

	return e.Loaders
}

func (e *Env) postInstall() gamefiles.Installer {
	if e.PostInstall == nil {
		return gamefiles.Noop{}
	}

	return e.PostInstall
}

func (e *Env) sink(id, title string) progress.Sink {
	if e.Progress == nil {
		return nil
	}

	return e.Progress(id, title)
}
