// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/publish"
	"github.com/bitmark-inc/jpipd/server"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultTargetsDirectory = "targets"
	defaultKeyFile          = "jpipd.key"
	defaultCertificateFile  = "jpipd.crt"
	defaultPublicKeyFile    = "publish.public"
	defaultPrivateKeyFile   = "publish.private"

	defaultLogDirectory = "log"
	defaultLogFile      = "jpipd.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultConnections = 100
)

// Configuration - contents of jpipd.conf
type Configuration struct {
	DataDirectory string `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string `gluamapper:"pidfile" json:"pidfile"`
	Targets       string `gluamapper:"targets" json:"targets"`

	Server     server.Configuration  `gluamapper:"server" json:"server"`
	Publishing publish.Configuration `gluamapper:"publishing" json:"publishing"`
	Logging    logger.Configuration  `gluamapper:"logging" json:"logging"`
}

// GetConfiguration - read decode and verify the configuration
func GetConfiguration(configurationFileName string, variables map[string]string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{
		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		Targets:       defaultTargetsDirectory,

		Server: server.Configuration{
			MaximumConnections: defaultConnections,
			Path:               server.DefaultPath,
			MaxChunkSize:       server.DefaultMaxChunkSize,
			SessionTimeout:     server.DefaultSessionTimeout,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels: map[string]string{
				logger.DefaultTag: "critical",
			},
		},
	}

	if err := ParseConfigurationFile(configurationFileName, options, variables); nil != err {
		return nil, err
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fault.InvalidDirectory
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fault.InvalidDirectory
	}

	// TLS is optional, a certificate without a key selects the
	// default key name and the reverse
	if "" != options.Server.Certificate && "" == options.Server.PrivateKey {
		options.Server.PrivateKey = defaultKeyFile
	} else if "" == options.Server.Certificate && "" != options.Server.PrivateKey {
		options.Server.Certificate = defaultCertificateFile
	}

	// CURVE keys only matter when publishing
	if 0 != len(options.Publishing.Broadcast) {
		if "" == options.Publishing.PrivateKey && "" == options.Publishing.PublicKey {
			options.Publishing.PrivateKey = defaultPrivateKeyFile
			options.Publishing.PublicKey = defaultPublicKeyFile
		}
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Targets,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
		&options.Server.Certificate,
		&options.Server.PrivateKey,
		&options.Publishing.PrivateKey,
		&options.Publishing.PublicKey,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// the log file is a plain name within the log directory
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fault.NotAPlainName
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.Targets,
		&options.Logging.Directory,
	} {
		if err := os.MkdirAll(*d, 0o700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}
