package replcoordinator

import (
	"context"
	"time"

	"github.com/juju/retry"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

// toConfig turns a RawInitiateDoc into an rsconfig.Config without
// validating it; validation happens separately so the two failure modes
// (malformed document vs. already-initialized) produce the right error
// codes per spec §4.2.
func toConfig(doc RawInitiateDoc) rsconfig.Config {
	return rsconfig.Config{
		Name:            doc.ID,
		Version:         doc.Version,
		ProtocolVersion: doc.ProtocolVersion,
		Members:         doc.Members,
		Settings:        doc.Settings,
	}
}

// ProcessReplSetInitiate implements spec §4.2's replSetInitiate: validates
// the document, checks that every other member is reachable and empty,
// then installs the config as version 1 (or whatever version the document
// names, when force-started with an existing --replSet flag).
func (c *Coordinator) ProcessReplSetInitiate(ctx context.Context, doc RawInitiateDoc) error {
	c.mu.Lock()
	if err := c.checkNotShutDown(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.tc.HasCommittedConfig() {
		c.mu.Unlock()
		return rcerrors.AlreadyInitialized
	}
	cfg := toConfig(doc)
	if err := cfg.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !doc.HasSetNameFlag {
		if cfg.Version != 1 {
			c.mu.Unlock()
			return rcerrors.Invalidf("have version 1, but found %d", cfg.Version)
		}
		if len(cfg.Members) != 1 {
			c.mu.Unlock()
			return rcerrors.Invalidf("you can only specify one member in the config")
		}
	}
	self, found := cfg.FindSelf(c.settings.SelfHost)
	if !found {
		c.mu.Unlock()
		return rcerrors.Invalidf("No host described in new configuration maps to this node")
	}
	hosts := make([]string, 0, len(cfg.Members)-1)
	for _, m := range cfg.Members {
		if m.Id != self.Id {
			hosts = append(hosts, m.Host)
		}
	}
	c.mu.Unlock()

	if err := c.quorumCheck(ctx, hosts); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tc.HasCommittedConfig() {
		return rcerrors.AlreadyInitialized
	}
	return c.installConfigLocked(cfg)
}

// quorumCheck implements spec §4.2 step 4: every other member in the
// proposed config must answer a replSetHeartbeat with checkEmpty=true and
// report itself empty (config version 0), using a small bounded retry since
// peers may still be starting up. Grounded on github.com/juju/retry's
// CallArgs pattern. An unreachable or refusing peer surfaces as
// NodeNotFound, matching the "Quorum-required initiate" scenario (spec §8).
func (c *Coordinator) quorumCheck(ctx context.Context, hosts []string) error {
	for _, host := range hosts {
		host := host
		err := retry.Call(retry.CallArgs{
			Func: func() error {
				resp := c.dispatch.Send(ctx, netdispatch.Command{
					Target: host,
					Name:   "replSetHeartbeat",
					Body:   HeartbeatRequest{CheckEmpty: true},
				})
				if !resp.OK {
					return rcerrors.Newf(rcerrors.NodeNotFound, "quorum check failed contacting %s", host)
				}
				hb, ok := resp.Body.(HeartbeatResponse)
				if ok && hb.ConfigVersion != 0 {
					return rcerrors.Newf(rcerrors.NodeNotFound, "%s is already initialized", host)
				}
				return nil
			},
			Attempts: 3,
			Delay:    200 * time.Millisecond,
			Clock:    c.sched.Clock(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ProcessReplSetReconfig implements spec §4.2's replSetReconfig: validates
// the document, checks the version bump rule, and installs it, preserving
// already-tracked member positions.
func (c *Coordinator) ProcessReplSetReconfig(ctx context.Context, args ReconfigArgs, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotShutDown(); err != nil {
		return err
	}
	if !c.tc.HasCommittedConfig() {
		return rcerrors.NotYetInitialized
	}
	if c.tc.ObservedState() != memberstate.Primary && !force {
		return rcerrors.NotMaster
	}
	if err := args.Config.Validate(); err != nil {
		return err
	}
	if err := rsconfig.ValidateReconfigVersion(c.tc.Self.Config.Version, args.Config.Version, force); err != nil {
		return err
	}
	if c.tc.ObservedState() == memberstate.Primary {
		self, found := args.Config.FindSelf(c.settings.SelfHost)
		if !found || !self.Electable() {
			return rcerrors.Newf(rcerrors.InvalidReplicaSetConfig, "%s is not electable under the new configuration version", c.settings.SelfHost)
		}
	}
	return c.installConfigLocked(args.Config)
}

// installConfigLocked applies cfg to every component and arms whatever
// heartbeats/timers the topology coordinator asks for. Must be called with
// c.mu held. The persistence hook is consulted first: spec §4.2 step 5
// requires that a failure there ("e.g. disk full") surface its status and
// leave the node exactly where it was, so nothing below this point runs
// unless the hook succeeds. Write-concern feasibility can change on any
// reconfig (spec §4.2), so waiters are always reevaluated here, not only
// when the observed member state itself changed.
func (c *Coordinator) installConfigLocked(cfg rsconfig.Config) error {
	if c.persist != nil {
		if err := c.persist.StoreLocalConfig(cfg); err != nil {
			return rcerrors.Classify(rcerrors.OutOfDiskSpace, err)
		}
	}

	now := c.sched.Now()
	before := c.tc.ObservedState()
	actions := c.tc.InstallConfig(cfg, now)

	// Member-order can change across a reconfig, so any previously tracked
	// primary index would point at the wrong member (spec §4.8/§6).
	c.currentPrimaryIndex = -1

	c.ot.SetConfig(cfg)
	c.ot.SetCurrentTerm(c.tc.Self.Term)
	c.ot.SetSelfID(c.tc.SelfMemberId())

	c.applyActionsLocked(actions)
	after := c.tc.ObservedState()
	if before != after {
		c.publishStateChangeLocked(before)
	} else {
		c.waiters.Reevaluate()
	}
	return nil
}
