// Command replcoordctl is a small diagnostic tool for driving and
// inspecting an in-process Replication Coordinator. It has no real network
// client: transport is out of scope for this module, so every subcommand
// operates against a freshly constructed, single-node coordinator seeded
// from flags, the same way the teacher's smaller scripts/ tools operate
// directly against a local collaborator rather than a remote API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/juju/clock"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/metrics"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/pubsubhub"
	"github.com/jujuclone/replcoord/internal/replcoordinator"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(args)
	case "step-down":
		err = runStepDown(args)
	case "force-reconfig":
		err = runForceReconfig(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "replcoordctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: replcoordctl <status|step-down|force-reconfig> [flags]")
}

func newSingleNodeCoordinator(selfHost string) *replcoordinator.Coordinator {
	settings := replcoordinator.Settings{SelfHost: selfHost}
	dispatch := netdispatch.New(netdispatch.ResponderFunc(func(_ context.Context, _ netdispatch.Command) netdispatch.Response {
		return netdispatch.Response{OK: false}
	}))
	return replcoordinator.New(settings, clock.WallClock, dispatch, nil, metrics.NewCollector(), pubsubhub.New(nil))
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	selfHost := fs.String("host", "localhost:27017", "this node's host:port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := newSingleNodeCoordinator(*selfHost)
	resp := c.IsMasterResponse()
	fmt.Printf("state: %s\n", describeState(resp))
	fmt.Printf("setName: %s\n", resp.SetName)
	fmt.Printf("setVersion: %d\n", resp.SetVersion)
	fmt.Printf("term: %d\n", resp.ElectionId)
	fmt.Printf("opTime: %s\n", resp.OpTime)
	if resp.Info != "" {
		fmt.Printf("info: %s\n", resp.Info)
	}
	return nil
}

func describeState(resp replcoordinator.IsMasterResponse) string {
	switch {
	case resp.IsMaster:
		return memberstate.Primary.String()
	case resp.Secondary:
		return memberstate.Secondary.String()
	default:
		return memberstate.Startup.String()
	}
}

func runStepDown(args []string) error {
	fs := flag.NewFlagSet("step-down", flag.ExitOnError)
	selfHost := fs.String("host", "localhost:27017", "this node's host:port")
	force := fs.Bool("force", false, "skip the catch-up secondary check")
	waitSecs := fs.Int("wait-secs", 10, "seconds to wait for a caught-up secondary")
	stepDownSecs := fs.Int("step-down-secs", 60, "seconds this node refuses to stand for election afterward")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := newSingleNodeCoordinator(*selfHost)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*waitSecs+5)*time.Second)
	defer cancel()
	if err := c.StepDown(ctx, *force, time.Duration(*waitSecs)*time.Second, time.Duration(*stepDownSecs)*time.Second); err != nil {
		return err
	}
	fmt.Println("stepped down")
	return nil
}

func runForceReconfig(args []string) error {
	fs := flag.NewFlagSet("force-reconfig", flag.ExitOnError)
	selfHost := fs.String("host", "localhost:27017", "this node's host:port")
	setName := fs.String("set-name", "", "replica set name")
	version := fs.Int64("version", 1, "configuration version to install")
	members := fs.String("members", "", "comma-separated host:port list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *setName == "" || *members == "" {
		return fmt.Errorf("force-reconfig requires -set-name and -members")
	}
	c := newSingleNodeCoordinator(*selfHost)
	cfg := rsconfig.Config{
		Name:            *setName,
		Version:         *version,
		ProtocolVersion: rsconfig.ProtocolVersion1,
	}
	for i, host := range splitCommaList(*members) {
		cfg.Members = append(cfg.Members, rsconfig.Member{
			Id: rsconfig.MemberId(i), Host: host, Priority: 1, Votes: 1, BuildIndexes: true,
		})
	}
	return c.ProcessReplSetReconfig(context.Background(), replcoordinator.ReconfigArgs{Config: cfg}, true)
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
