// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/fsnotify/fsnotify"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/storage"
)

// an open archive and the number of channels using it
type targetEntry struct {
	archive *storage.Archive
	users   int
	stale   bool
}

// Targets - the archives below a directory, opened read only on
// demand and shared between channels
//
// a changed or removed archive is closed once its last user releases
// it, so the next request sees the new content
type Targets struct {
	sync.Mutex

	log       *logger.L
	directory string
	watcher   *fsnotify.Watcher
	open      map[string]*targetEntry
}

// NewTargets - registry for the archives in a directory
func NewTargets(directory string) (*Targets, error) {
	directory, err := filepath.Abs(filepath.Clean(directory))
	if nil != err {
		return nil, err
	}
	info, err := os.Stat(directory)
	if nil != err {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fault.TargetNotFound
	}

	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return nil, err
	}
	err = watcher.Add(directory)
	if nil != err {
		watcher.Close()
		return nil, err
	}

	t := &Targets{
		log:       logger.New("watcher"),
		directory: directory,
		watcher:   watcher,
		open:      make(map[string]*targetEntry),
	}
	t.log.Infof("watching: %q", directory)
	return t, nil
}

// a target name must be a plain visible entry of the directory
func validName(name string) bool {
	return "" != name &&
		!strings.HasPrefix(name, ".") &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`)
}

// Acquire - the archive for a target name, Release must follow
func (t *Targets) Acquire(name string) (*storage.Archive, error) {
	if !validName(name) {
		return nil, fault.TargetNotFound
	}

	t.Lock()
	defer t.Unlock()

	// a stale archive in use cannot be reopened until released
	if e, ok := t.open[name]; ok {
		e.users += 1
		return e.archive, nil
	}

	path := filepath.Join(t.directory, name)
	if info, err := os.Stat(path); nil != err || !info.IsDir() {
		return nil, fault.TargetNotFound
	}
	a, err := storage.Open(path, storage.ReadOnly)
	if nil != err {
		t.log.Errorf("open target: %q  error: %s", name, err)
		return nil, err
	}
	t.open[name] = &targetEntry{
		archive: a,
		users:   1,
	}
	return a, nil
}

// Release - finished with an archive from Acquire
//
// idle archives stay open unless they changed on disk
func (t *Targets) Release(a *storage.Archive) {
	t.Lock()
	defer t.Unlock()

	for name, e := range t.open {
		if e.archive != a {
			continue
		}
		e.users -= 1
		if e.users <= 0 && e.stale {
			a.Close()
			delete(t.open, name)
		}
		return
	}
	t.log.Warn("release of an unknown archive")
}

// Names - available target names
func (t *Targets) Names() []string {
	entries, err := ioutil.ReadDir(t.directory)
	if nil != err {
		t.log.Errorf("read directory: %q  error: %s", t.directory, err)
		return nil
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() && validName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// InUse - number of users of a target
func (t *Targets) InUse(name string) int {
	t.Lock()
	defer t.Unlock()
	if e, ok := t.open[name]; ok {
		return e.users
	}
	return 0
}

// Run - background process handling directory events
func (t *Targets) Run(args interface{}, shutdown <-chan struct{}) {
	t.log.Info("starting…")
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case event, ok := <-t.watcher.Events:
			if !ok {
				break loop
			}
			t.handle(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				break loop
			}
			t.log.Errorf("watcher error: %s", err)
		}
	}
	t.watcher.Close()
	t.log.Info("stopped")
}

// a changed archive goes stale, closing now if nothing uses it
func (t *Targets) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	t.log.Debugf("event: %v", event)

	t.Lock()
	defer t.Unlock()

	e, ok := t.open[name]
	if !ok {
		if 0 != event.Op&fsnotify.Create {
			t.log.Infof("new target: %q", name)
		}
		return
	}
	if 0 == event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write|fsnotify.Create) {
		return
	}
	t.log.Infof("target: %q  changed: %s", name, event.Op)
	e.stale = true
	if e.users <= 0 {
		e.archive.Close()
		delete(t.open, name)
	}
}

// Close - close every archive that is not in use
func (t *Targets) Close() {
	t.Lock()
	defer t.Unlock()
	for name, e := range t.open {
		if e.users > 0 {
			t.log.Warnf("close: target: %q  still has %d users", name, e.users)
			continue
		}
		e.archive.Close()
		delete(t.open, name)
	}
}
