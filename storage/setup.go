// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
)

// archive pools
//
// note all must be exported (i.e. initial capital) or opening will panic
type pools struct {
	Info        *PoolHandle `prefix:"I"`
	Structures  *PoolHandle `prefix:"S"`
	MainHeaders *PoolHandle `prefix:"M"`
	TileHeaders *PoolHandle `prefix:"H"`
	Precincts   *PoolHandle `prefix:"P"`
	Metabins    *PoolHandle `prefix:"G"`
	Metadata    *PoolHandle `prefix:"D"`
	Regions     *PoolHandle `prefix:"O"`
}

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentArchiveVersion = 0x100

// access modes
const (
	ReadOnly  = true
	ReadWrite = false
)

// Archive - a target held in a LevelDB database
type Archive struct {
	target.Null

	log      *logger.L
	name     string
	readOnly bool

	mutex      sync.RWMutex
	db         *leveldb.DB
	access     Access
	pool       pools
	structures map[int]*target.Structure
	metatree   *target.Metabin
	groups     map[*target.Metagroup]groupKey
	regions    []region
	attached   map[int]int

	locks target.Locks
}

// check the interface is satisfied
var _ target.Target = (*Archive)(nil)

// Open - open an archive database, creating it unless read only
func Open(database string, readOnly bool) (*Archive, error) {
	db, version, err := getDB(database, readOnly)
	if nil != err {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	log := logger.New("storage")

	// ensure no database downgrade
	if version > currentArchiveVersion {
		log.Criticalf("archive: %s  version: %d > current version: %d", database, version, currentArchiveVersion)
		return nil, fault.DatabaseVersion
	}
	if 0 == version {
		if readOnly {
			log.Criticalf("archive: %s  has no version", database)
			return nil, fault.DatabaseVersion
		}
		err = putVersion(db, currentArchiveVersion)
		if nil != err {
			return nil, err
		}
	} else if version < currentArchiveVersion {
		log.Criticalf("archive: %s  version: %d < current version: %d", database, version, currentArchiveVersion)
		return nil, fault.DatabaseVersion
	}

	a := &Archive{
		log:        log,
		name:       database,
		readOnly:   readOnly,
		db:         db,
		access:     newAccess(db),
		structures: make(map[int]*target.Structure),
		groups:     make(map[*target.Metagroup]groupKey),
		attached:   make(map[int]int),
	}

	err = a.setupPools()
	if nil != err {
		return nil, err
	}

	err = a.load()
	if nil != err {
		return nil, err
	}

	log.Infof("opened archive: %s  codestreams: %d", database, len(a.structures))
	ok = true // prevent db close
	return a, nil
}

// scan each field of the pools struct
func (a *Archive) setupPools() error {

	// this will be a struct type
	poolType := reflect.TypeOf(a.pool)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&a.pool).Elem()

	for i := 0; i < poolType.NumField(); i += 1 {
		fieldInfo := poolType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			return fmt.Errorf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		prefix := prefixTag[0]
		limit := []byte(nil)
		if prefix < 255 {
			limit = []byte{prefix + 1}
		}

		p := &PoolHandle{
			prefix:     prefix,
			limit:      limit,
			dataAccess: a.access,
		}
		poolValue.Field(i).Set(reflect.ValueOf(p))
	}
	return nil
}

// Close - close the database, codestreams must all be detached
func (a *Archive) Close() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if nil == a.db {
		return
	}
	for stream, n := range a.attached {
		if n > 0 {
			a.log.Warnf("close: stream: %d still has %d attachments", stream, n)
		}
	}
	a.db.Close()
	a.db = nil
	a.log.Infof("closed archive: %s", a.name)
	a.log.Flush()
}

// return:
//   database handle
//   version number
func getDB(name string, readOnly bool) (*leveldb.DB, int, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, 0, err
	}

	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return db, 0, nil
	} else if nil != err {
		db.Close()
		return nil, 0, err
	}

	if 4 != len(versionValue) {
		db.Close()
		return nil, 0, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(versionValue))
	}

	version := int(binary.BigEndian.Uint32(versionValue))
	return db, version, nil
}

func putVersion(db *leveldb.DB, version int) error {
	currentVersion := make([]byte, 4)
	binary.BigEndian.PutUint32(currentVersion, uint32(version))

	return db.Put(versionKey, currentVersion, nil)
}
