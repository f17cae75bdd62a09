// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/pem"
	"io/ioutil"
	"os"
	"time"

	"github.com/bitmark-inc/certgen"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/jpipd/configuration"
	"github.com/bitmark-inc/jpipd/fault"
)

// create a self-signed certificate
func makeSelfSignedCertificate(name string, certificateFileName string, privateKeyFileName string, override bool, extraHosts []string) error {

	if configuration.EnsureFileExists(certificateFileName) {
		return fault.CertificateFileExists
	}

	if configuration.EnsureFileExists(privateKeyFileName) {
		return fault.KeyFileAlreadyExists
	}

	org := "jpipd self signed cert for: " + name
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := certgen.NewTLSCertPair(org, validUntil, override, extraHosts)
	if err != nil {
		return err
	}

	if err = ioutil.WriteFile(certificateFileName, cert, 0666); err != nil {
		return err
	}

	if err = ioutil.WriteFile(privateKeyFileName, key, 0600); err != nil {
		os.Remove(certificateFileName)
		return err
	}

	return nil
}

// compute the fingerprint of a certificate
//
// FreeBSD: openssl x509 -outform DER -in jpipd.crt | sha3sum -a 256
func CertificateFingerprint(certificate []byte) [32]byte {
	return sha3.Sum256(certificate)
}

// fingerprint of the first certificate in a PEM file
func certificateFingerprintFile(certificateFileName string) ([32]byte, error) {
	data, err := ioutil.ReadFile(certificateFileName)
	if nil != err {
		return [32]byte{}, err
	}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if nil == block {
			return [32]byte{}, fault.InvalidCertificate
		}
		if "CERTIFICATE" == block.Type {
			return CertificateFingerprint(block.Bytes), nil
		}
	}
}
