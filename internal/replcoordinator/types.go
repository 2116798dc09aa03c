package replcoordinator

import (
	"time"

	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

// Settings is the coordinator's construction-time configuration (DESIGN
// NOTES §9: "model as an explicit configuration value passed at
// construction; do not reach for process-global storage").
type Settings struct {
	// SelfHost is this node's host:port as it appears in replica set
	// configs.
	SelfHost string
	// MasterSlave, when true, makes AwaitReplication skip its NotMaster
	// check and treat a "majority" write concern as satisfied. It does
	// not change the replication mode, which is still set only by
	// installing a replica set config.
	MasterSlave bool
	// ReadConcernMajorityEnabled gates waitUntilOpTime's Majority level
	// (spec §4.7).
	ReadConcernMajorityEnabled bool
}

// PersistenceHook is the external-state collaborator (spec §6 Persistence
// interface). The durable storage format and its failure modes (e.g.
// OutOfDiskSpace) are outside this module's scope; only the interface is
// owned here.
type PersistenceHook interface {
	LoadLocalConfig() (rsconfig.Config, bool, error)
	StoreLocalConfig(cfg rsconfig.Config) error
}

// RawInitiateDoc is the unvalidated configuration document passed to
// processReplSetInitiate (spec §4.2). Field names mirror the wire
// document; validation turns this into an rsconfig.Config.
type RawInitiateDoc struct {
	ID              string
	Version         int64
	ProtocolVersion rsconfig.ProtocolVersion
	Members         []rsconfig.Member
	Settings        rsconfig.Settings
	// HasSetNameFlag mirrors whether a --replSet style flag was already
	// supplied at process start, gating the "initial version must be
	// exactly 1" rule (spec §4.2 step 3).
	HasSetNameFlag bool
}

// ReconfigArgs wraps a reconfig document; force allows installing any
// version greater than current instead of exactly current+1.
type ReconfigArgs struct {
	Config rsconfig.Config
}

// ReadConcernLevel is the freshness predicate attached to a read (spec §4.7).
type ReadConcernLevel int

const (
	ReadConcernLocal ReadConcernLevel = iota
	ReadConcernMajority
)

// WaitTimeout mirrors spec §4.6's wTimeout variants.
type WaitTimeout struct {
	NoWaiting bool
	NoTimeout bool
	Duration  time.Duration
}

// PositionEntry is one element of a replSetUpdatePosition payload (spec
// §4.10/§6).
type PositionEntry struct {
	ConfigVersion int64
	MemberId      rsconfig.MemberId
	OpTime        optime.OpTime
}

// UpdatePositionCommand is the command prepareReplSetUpdatePositionCommand
// emits (spec §4.10).
type UpdatePositionCommand struct {
	OpTimes []PositionEntry
}

// HeartbeatRequest is the wire shape from spec §6.
type HeartbeatRequest struct {
	SetName         string
	ProtocolVersion rsconfig.ProtocolVersion
	ConfigVersion   int64
	SenderHost      string
	SenderId        rsconfig.MemberId
	CheckEmpty      bool
}

// HeartbeatResponse is the wire shape from spec §6.
type HeartbeatResponse struct {
	OK            bool
	SetName       string
	State         int // memberstate.State, kept as int to mirror the wire int32
	ConfigVersion int64
	Term          int64
	OpTime        optime.OpTime
	ElectionTime  time.Time
	Config        *rsconfig.Config
	SyncingTo     string
	RefusalReason string
}
