// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type LengthError GenericError
type NotFoundError GenericError
type ProcessError GenericError
type RecordError GenericError

// common errors - keep in alphabetic order
var (
	AlreadyInitialised        = ExistsError("already initialised")
	BatchInUse                = ProcessError("batch already in use")
	CacheAttached             = InvalidError("cache is attached to another cache")
	CacheFileVersion          = RecordError("incompatible cache file version")
	CertificateFileExists     = ExistsError("certificate file already exists")
	ChannelNotFound           = NotFoundError("channel not found")
	ChunkTooSmall             = LengthError("chunk too small for message")
	ClientNotActive           = ProcessError("client is not active")
	ClientAlreadyActive       = ExistsError("client is already active")
	ConfigurationFileNotFound = NotFoundError("configuration file not found")
	ConfigurationNotTable     = InvalidError("configuration did not return a table")
	ContextNotFound           = NotFoundError("window context not found")
	CorruptArchiveRecord      = RecordError("corrupt archive record")
	CorruptCacheFile          = RecordError("corrupt cache file")
	DatabaseVersion           = RecordError("incompatible database version")
	DatabinNotFound           = NotFoundError("data-bin not found")
	ExtraDataTooLong          = LengthError("extra data too long for a single chunk")
	HostNotFound              = NotFoundError("host not found")
	IncompatibleURL           = InvalidError("URL is not a compatible JPIP URL")
	InvalidCertificate        = InvalidError("invalid certificate")
	InvalidCodestream         = InvalidError("invalid codestream")
	InvalidCodestreamHeader   = RecordError("invalid codestream main header")
	InvalidContext            = InvalidError("invalid codestream context")
	InvalidCount              = InvalidError("invalid count")
	InvalidCursor             = InvalidError("invalid cursor")
	InvalidDirectory          = InvalidError("invalid directory")
	InvalidMessageHeader      = RecordError("invalid message header")
	InvalidMetareq            = InvalidError("invalid metadata request")
	InvalidMetatree           = InvalidError("invalid metadata tree")
	InvalidPreference         = InvalidError("invalid preference")
	InvalidPrivateKeyFile     = InvalidError("invalid private key file")
	InvalidPublicKeyFile      = InvalidError("invalid public key file")
	InvalidQueue              = InvalidError("invalid request queue")
	InvalidRequestField       = InvalidError("invalid request field")
	InvalidResponse           = RecordError("invalid server response")
	InvalidServerStatus       = ProcessError("server returned an error status")
	InvalidStatelessContext   = InvalidError("stateless mode requires window context 0")
	InvalidStructPointer      = InvalidError("invalid struct pointer")
	KeyFileAlreadyExists      = ExistsError("key file already exists")
	MissingParameters         = InvalidError("missing parameters")
	MixedStatelessness        = InvalidError("stateless and stateful windows cannot be mixed")
	NotAPlainName             = InvalidError("file name must not contain a directory")
	NotInitialised            = NotFoundError("not initialised")
	QueueNotAlive             = ProcessError("request queue is not alive")
	RateLimiting              = ProcessError("rate limiting")
	ReadOnlyArchive           = ProcessError("archive is read only")
	TargetNotFound            = NotFoundError("target not found")
	TransportClosed           = ProcessError("transport closed")
	UnsupportedTransport      = InvalidError("unsupported channel transport")
	VBASTooLong               = LengthError("VBAS too long")
	VBASTruncated             = LengthError("VBAS truncated")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e LengthError) Error() string   { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }
func (e RecordError) Error() string   { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool   { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool  { _, ok := e.(InvalidError); return ok }
func IsErrLength(e error) bool   { _, ok := e.(LengthError); return ok }
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool  { _, ok := e.(ProcessError); return ok }
func IsErrRecord(e error) bool   { _, ok := e.(RecordError); return ok }
