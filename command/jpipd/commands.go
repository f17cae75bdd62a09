// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/jpipd/configuration"
	"github.com/bitmark-inc/jpipd/server"
	"github.com/bitmark-inc/jpipd/zmqutil"
)

const (
	certificateFilename = "jpipd.crt"
	privateKeyFilename  = "jpipd.key"

	publishPublicKeyFilename  = "publish.public"
	publishPrivateKeyFilename = "publish.private"
)

// setup command handler
//
// commands that run to create key and certificate files these
// commands cannot access any internal database or states or the
// configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "gen-certificate", "cert":
		certificateFilename := getFilenameWithDirectory(arguments, certificateFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, privateKeyFilename)

		addresses := []string{}
		if len(arguments) >= 2 {
			for _, a := range arguments[1:] {
				if "" != a {
					addresses = append(addresses, a)
				}
			}
		}

		err := makeSelfSignedCertificate("jpip", certificateFilename, privateKeyFilename, 0 != len(addresses), addresses)
		if nil != err {
			fmt.Printf("generate key: %q and certificate: %q error: %s\n", privateKeyFilename, certificateFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated key: %q and certificate: %q\n", privateKeyFilename, certificateFilename)

	case "gen-publish-identity", "publish":
		publicKeyFilename := getFilenameWithDirectory(arguments, publishPublicKeyFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, publishPrivateKeyFilename)
		err := zmqutil.MakeKeyPair(publicKeyFilename, privateKeyFilename)
		if nil != err {
			fmt.Printf("generate private key: %q and public key: %q error: %s\n", privateKeyFilename, publicKeyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated private key: %q and public key: %q\n", privateKeyFilename, publicKeyFilename)

	case "start", "run":
		return false // continue processing

	case "config-test", "cfg", "targets", "fingerprint", "fp":
		return false // defer processing until configuration is read

	case "version", "v":
		fmt.Printf("%s\n", version)
		return true

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}
		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] [--define=NAME=VALUE...] --config-file=FILE [[command|help] arguments...]\n", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                         (h)       - display this message\n\n")
		fmt.Printf("  version                      (v)       - display version sting\n\n")

		fmt.Printf("  gen-certificate [DIR]        (cert)    - create private key in:  %q\n", "DIR/"+privateKeyFilename)
		fmt.Printf("                                           and the certificate in: %q\n", "DIR/"+certificateFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-certificate DIR [IPs...]           - as above with extra host addresses\n")
		fmt.Printf("\n")

		fmt.Printf("  gen-publish-identity [DIR]   (publish) - create private key in: %q\n", "DIR/"+publishPrivateKeyFilename)
		fmt.Printf("                                           and the public key in: %q\n", "DIR/"+publishPublicKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  start                        (run)     - just run the program, same as no arguments\n")
		fmt.Printf("                                           for convienience when passing script arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                  (cfg)     - just check the configuration file\n")
		fmt.Printf("\n")

		fmt.Printf("  targets                                - list the archives that can be served\n")
		fmt.Printf("\n")

		fmt.Printf("  fingerprint                  (fp)      - SHA3-256 fingerprint of the server certificate\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and perform normal exit from main
	return true
}

// configuration command handler
//
// the configuration file is read but nothing is started
func processConfigCommand(arguments []string, options *configuration.Configuration) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "config-test", "cfg":
		s, err := json.MarshalIndent(options, "", "  ")
		if nil != err {
			exitwithstatus.Message("configuration JSON error: %s", err)
		}
		fmt.Printf("configuration: %s\n", s)

	case "fingerprint", "fp":
		if "" == options.Server.Certificate {
			exitwithstatus.Message("error: no certificate configured")
		}
		fingerprint, err := certificateFingerprintFile(options.Server.Certificate)
		if nil != err {
			exitwithstatus.Message("error: cannot decode certificate: %q  error: %s", options.Server.Certificate, err)
		}
		fmt.Printf("SHA3-256 fingerprint: %x\n", fingerprint)

	default: // unknown commands fall through to data command
		return false
	}

	// indicate processing complete and perform normal exit from main
	return true
}

// data command handler
//
// the target directory is open but the server is not running
func processDataCommand(log *logger.L, arguments []string, targets *server.Targets) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "targets":
		names := targets.Names()
		log.Infof("targets: %d", len(names))
		for _, name := range names {
			fmt.Printf("%s\n", name)
		}

	case "start", "run":
		return false // continue processing

	default:
		exitwithstatus.Message("error: no such command: %s", command)
	}

	// indicate processing complete and perform normal exit from main
	return true
}

func getFilenameWithDirectory(arguments []string, name string) string {
	dir := "."
	if len(arguments) >= 1 {
		dir = arguments[0]
	}

	return filepath.Join(dir, name)
}
