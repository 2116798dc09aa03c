// Package rcerrors defines the error taxonomy shared by every component of
// the replication coordinator. Sentinels follow the same pattern the
// teacher repo uses for its own domain-error packages (modelerrors,
// secretbackenderrors, …): a package-level github.com/juju/errors.ConstError
// value that callers match with errors.Is, plus constructors that attach a
// caller-supplied diagnostic message while preserving that classification.
package rcerrors

import (
	"github.com/juju/errors"
)

// Sentinel errors from spec §6. Use errors.Is(err, rcerrors.NotMaster) etc.
const (
	NoReplicationEnabled          = errors.ConstError("no replication enabled")
	NotYetInitialized             = errors.ConstError("replica set not yet initialized")
	AlreadyInitialized            = errors.ConstError("replica set already initialized")
	InvalidReplicaSetConfig       = errors.ConstError("invalid replica set configuration")
	NodeNotFound                  = errors.ConstError("node not found")
	NotMaster                     = errors.ConstError("not master")
	NotSecondary                  = errors.ConstError("not secondary")
	OperationFailed               = errors.ConstError("operation failed")
	WriteConcernFailed            = errors.ConstError("write concern failed")
	UnknownReplWriteConcern       = errors.ConstError("unrecognized write concern")
	CannotSatisfyWriteConcern     = errors.ConstError("cannot satisfy write concern")
	ExceededTimeLimit             = errors.ConstError("exceeded time limit")
	ShutdownInProgress            = errors.ConstError("shutdown in progress")
	Interrupted                   = errors.ConstError("operation interrupted")
	NotAReplicaSet                = errors.ConstError("not running with replica set elections")
	ReadConcernMajorityNotEnabled = errors.ConstError("majority read concern not enabled")
	StaleTerm                     = errors.ConstError("stale term")
	BadValue                      = errors.ConstError("bad value")
	OutOfDiskSpace                = errors.ConstError("out of disk space")
)

// classified pairs a diagnostic message (the text spec §4.2 mandates
// verbatim, e.g. `Missing expected field "_id"`) with the sentinel it
// should compare equal to under errors.Is.
type classified struct {
	sentinel error
	message  string
}

func (e *classified) Error() string   { return e.message }
func (e *classified) Unwrap() error   { return e.sentinel }
func (e *classified) Is(t error) bool { return e.sentinel == t }

// Invalidf builds an InvalidReplicaSetConfig error carrying the given
// diagnostic, matching the exact-string contract relied on by §4.2
// (e.g. Invalidf("Missing expected field %q", "_id")).
func Invalidf(format string, args ...interface{}) error {
	return &classified{sentinel: InvalidReplicaSetConfig, message: errors.Errorf(format, args...).Error()}
}

// Classify attaches sentinel to err's Is-chain while keeping err's message,
// used where the caller already has a formatted message (e.g. from
// errors.Annotatef) and just needs it classified for error-code matching.
func Classify(sentinel error, err error) error {
	if err == nil {
		return nil
	}
	return &classified{sentinel: sentinel, message: err.Error()}
}

// Newf classifies a freshly formatted message under sentinel.
func Newf(sentinel error, format string, args ...interface{}) error {
	return &classified{sentinel: sentinel, message: errors.Errorf(format, args...).Error()}
}
