package replcoordinator

import (
	"time"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/optime"
)

// IsMasterResponse is the diagnostic document described in spec §6: every
// client driver's primary/topology discovery hook reads one of these.
type IsMasterResponse struct {
	IsMaster      bool
	Secondary     bool
	IsReplicaSet  bool
	SetName       string
	SetVersion    int64
	Hosts         []string
	Passives      []string
	Arbiters      []string
	Primary       string
	Me            string
	Tags          map[string]string
	ElectionId    int64
	LastWriteDate time.Time
	OpTime        optime.OpTime
	Info          string
}

// IsMasterResponse builds the current diagnostic document. Info is set
// only while no config is installed ("Does not have a valid replica set
// config"); it is empty in every other state.
func (c *Coordinator) IsMasterResponse() IsMasterResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.tc.Self.Config
	resp := IsMasterResponse{
		SetName:    cfg.Name,
		SetVersion: cfg.Version,
		Me:         c.settings.SelfHost,
		ElectionId: c.tc.Self.Term,
		OpTime:     c.ot.MyLastAppliedOpTime(),
	}

	if !c.tc.HasCommittedConfig() {
		resp.Info = "Does not have a valid replica set config"
		resp.IsReplicaSet = true
		return resp
	}

	// hosts[] lists voting non-arbiter members, passives[] priority-0
	// non-arbiter (still voting) members, and arbiters[] the arbiters —
	// disjoint per spec §6, none of them including self specially.
	for _, m := range cfg.Members {
		switch {
		case m.ArbiterOnly:
			resp.Arbiters = append(resp.Arbiters, m.Host)
		case m.Votes == 1 && m.Priority == 0:
			resp.Passives = append(resp.Passives, m.Host)
		case m.Votes == 1:
			resp.Hosts = append(resp.Hosts, m.Host)
		}
	}

	if self, found := cfg.FindSelf(c.settings.SelfHost); found {
		resp.Tags = self.Tags
	}

	state := c.tc.ObservedState()
	switch state {
	case memberstate.Primary:
		resp.IsMaster = true
	case memberstate.Secondary, memberstate.Recovering:
		resp.Secondary = true
	}

	if c.currentPrimaryIndex >= 0 && c.currentPrimaryIndex < len(cfg.Members) {
		resp.Primary = cfg.Members[c.currentPrimaryIndex].Host
	}

	return resp
}
