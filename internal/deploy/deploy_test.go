package deploy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davner/mcpguard/internal/backup"
	"github.com/davner/mcpguard/internal/config"
	"github.com/davner/mcpguard/internal/patterns"
	"github.com/davner/mcpguard/internal/policy"
	"github.com/davner/mcpguard/internal/registry"
	"github.com/davner/mcpguard/internal/scanner"
)

type fixture struct {
	orch     *Orchestrator
	store    *registry.Store
	backups  *backup.Manager
	policies *policy.Store
	target   string
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	registryPath := filepath.Join(dir, "registry.json")
	store := registry.NewStore(registryPath)
	backups := backup.NewManager(registryPath, filepath.Join(dir, "backups"), 10)
	policies := policy.NewStore(filepath.Join(dir, "policy.json"))
	sc := scanner.New(patterns.BuiltinRules(), config.DefaultScoringWeights())

	target := filepath.Join(dir, "run")
	if err := os.WriteFile(target, []byte("#!/bin/sh\necho ok\n"), 0755); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		orch:     NewOrchestrator(store, backups, sc, policies, nil),
		store:    store,
		backups:  backups,
		policies: policies,
		target:   target,
		dir:      dir,
	}
}

func (f *fixture) setPolicy(t *testing.T, p policy.Policy) {
	t.Helper()
	if err := f.policies.Save(p); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) request(name string) Request {
	return Request{
		Name:  name,
		Entry: registry.ServiceDescriptor{Command: f.target, Args: []string{f.target}},
	}
}

func TestDeployCleanPolicyOff(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	res := f.orch.Deploy(f.request("svc1"))
	if !res.OK() {
		t.Fatalf("deploy failed: %s %s %v", res.Status, res.Message, res.Errors)
	}
	if res.AttemptID == "" {
		t.Error("missing attempt ID")
	}
	if res.Backup == nil {
		t.Error("missing backup record")
	}

	doc, err := f.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Servers["svc1"]; !ok {
		t.Error("entry not present after deploy")
	}
}

func TestDeployConflictWithoutOverride(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	if res := f.orch.Deploy(f.request("svc1")); !res.OK() {
		t.Fatalf("first deploy failed: %s", res.Message)
	}

	before, err := os.ReadFile(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}

	res := f.orch.Deploy(f.request("svc1"))
	if res.Status != StatusConflict {
		t.Fatalf("expected conflict, got %s", res.Status)
	}

	after, err := os.ReadFile(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("conflict mutated the registry")
	}
}

func TestDeployOverrideReplacesEntry(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	if res := f.orch.Deploy(f.request("svc1")); !res.OK() {
		t.Fatal(res.Message)
	}

	req := f.request("svc1")
	req.Entry.Args = []string{f.target, "--verbose"}
	req.Override = true
	if res := f.orch.Deploy(req); !res.OK() {
		t.Fatalf("override deploy failed: %s", res.Message)
	}

	doc, err := f.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Servers) != 1 {
		t.Errorf("expected exactly one entry, got %d", len(doc.Servers))
	}
	if got := doc.Servers["svc1"].Args; len(got) != 2 {
		t.Errorf("entry not replaced: %v", got)
	}
}

func TestBackupBeforeMutate(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	// Seed the registry so every later call has a file to snapshot.
	if _, err := f.store.Read(); err != nil {
		t.Fatal(err)
	}

	calls := []func() *Result{
		func() *Result { return f.orch.Deploy(f.request("a")) },
		func() *Result { return f.orch.Deploy(f.request("a")) }, // conflict
		func() *Result { return f.orch.Remove("a") },
		func() *Result { return f.orch.Remove("ghost") }, // not found
	}

	for i, call := range calls {
		beforeList, err := f.backups.List()
		if err != nil {
			t.Fatal(err)
		}
		start := time.Now().UTC()
		time.Sleep(2 * time.Millisecond)
		call()
		afterList, err := f.backups.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(afterList) != len(beforeList)+1 {
			t.Fatalf("call %d: no new backup (before=%d after=%d)", i, len(beforeList), len(afterList))
		}
		if afterList[0].Timestamp.Before(start) {
			t.Errorf("call %d: backup predates the call", i)
		}
	}
}

func TestDeployPolicyRejection(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: true, StrictMode: true, MinimumScore: 99})

	dirty := filepath.Join(f.dir, "dirty.py")
	if err := os.WriteFile(dirty, []byte("eval(input())\nos.system(cmd)\n"), 0755); err != nil {
		t.Fatal(err)
	}

	req := Request{
		Name:  "bad",
		Entry: registry.ServiceDescriptor{Command: dirty},
	}
	res := f.orch.Deploy(req)
	if res.Status != StatusPolicyRejected {
		t.Fatalf("expected policy rejection, got %s (%s)", res.Status, res.Message)
	}
	if res.Scan == nil {
		t.Fatal("rejection must carry the scan result for diagnostics")
	}
	if res.Scan.Passed {
		t.Error("scan of execution primitives should fail categories")
	}

	doc, err := f.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Servers["bad"]; ok {
		t.Error("rejected entry was written")
	}
}

func TestDeployValidationFailure(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	req := Request{
		Name: "bad",
		Entry: registry.ServiceDescriptor{
			Command: f.target,
			Args:    []string{"; rm -rf /"},
		},
	}
	res := f.orch.Deploy(req)
	if res.Status != StatusValidationFailed {
		t.Fatalf("expected validation failure, got %s (%s)", res.Status, res.Message)
	}
	if len(res.Errors) == 0 {
		t.Error("validation failure must list violations")
	}

	doc, err := f.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Servers["bad"]; ok {
		t.Error("invalid entry was written")
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	if res := f.orch.Deploy(f.request("svc1")); !res.OK() {
		t.Fatal(res.Message)
	}

	res := f.orch.Remove("svc1")
	if !res.OK() {
		t.Fatalf("remove failed: %s", res.Message)
	}

	if res := f.orch.Remove("svc1"); res.Status != StatusNotFound {
		t.Errorf("expected not-found, got %s", res.Status)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.setPolicy(t, policy.Policy{Enforced: false})

	if res := f.orch.Deploy(f.request("svc1")); !res.OK() {
		t.Fatal(res.Message)
	}
	snapshot, err := f.backups.Create()
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * time.Millisecond)
	if res := f.orch.Deploy(f.request("svc2")); !res.OK() {
		t.Fatal(res.Message)
	}

	res := f.orch.Restore(snapshot.Filename)
	if !res.OK() {
		t.Fatalf("restore failed: %s", res.Message)
	}

	doc, err := f.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Servers["svc2"]; ok {
		t.Error("restore did not roll back svc2")
	}
	if _, ok := doc.Servers["svc1"]; !ok {
		t.Error("restore lost svc1")
	}
}

func TestRestoreMissingBackup(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.Read(); err != nil {
		t.Fatal(err)
	}
	if res := f.orch.Restore("registry-nope.json"); res.Status != StatusNotFound {
		t.Errorf("expected not-found, got %s", res.Status)
	}
}

func TestLockBlocksSecondWriter(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), "registry.json")

	unlock, err := acquireLock(registryPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := acquireLock(registryPath); err == nil {
		t.Fatal("second writer acquired a held lock")
	}
	unlock()
	unlock2, err := acquireLock(registryPath)
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	unlock2()
}

func TestLockStaleTakeover(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), "registry.json")
	lockPath := registryPath + ".lock"

	if err := os.WriteFile(lockPath, []byte("999999 stale\n"), 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	unlock, err := acquireLock(registryPath)
	if err != nil {
		t.Fatalf("stale lock not taken over: %v", err)
	}
	unlock()
}
