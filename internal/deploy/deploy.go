// Package deploy sequences the protected registry mutation workflow:
// backup, conflict check, security gate, atomic write, post-write verify.
// It owns no persistent state of its own.
package deploy

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/davner/mcpguard/internal/backup"
	"github.com/davner/mcpguard/internal/logger"
	"github.com/davner/mcpguard/internal/policy"
	"github.com/davner/mcpguard/internal/registry"
	"github.com/davner/mcpguard/internal/scanner"
)

// Status is the terminal state of one deployment attempt.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusBackupFailed     Status = "backup-failed"
	StatusConflict         Status = "conflict"
	StatusPolicyRejected   Status = "policy-rejected"
	StatusValidationFailed Status = "validation-failed"
	StatusVerifyFailed     Status = "verify-failed"
	StatusNotFound         Status = "not-found"
)

// Result is the outcome of a deploy, remove, or restore. Expected failure
// modes land here as statuses, never as Go errors.
type Result struct {
	AttemptID string          `json:"attemptId"`
	Status    Status          `json:"status"`
	Message   string          `json:"message"`
	Errors    []string        `json:"errors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Scan      *scanner.Result `json:"scan,omitempty"`
	Backup    *backup.Record  `json:"backup,omitempty"`
}

// OK reports whether the attempt reached its success state.
func (r *Result) OK() bool { return r.Status == StatusSuccess }

// Request describes one deployment attempt.
type Request struct {
	Name  string
	Entry registry.ServiceDescriptor

	// ScanTarget is the executable to assess; defaults to Entry.Command.
	ScanTarget  string
	ProjectRoot string

	// Override permits replacing an existing same-named entry.
	Override bool
}

// Orchestrator wires the store, backup manager, scanner, and policy store
// into the protected workflow.
type Orchestrator struct {
	store    *registry.Store
	backups  *backup.Manager
	scanner  *scanner.Scanner
	policies *policy.Store
	audit    *logger.AuditLogger
}

func NewOrchestrator(store *registry.Store, backups *backup.Manager, sc *scanner.Scanner, policies *policy.Store, audit *logger.AuditLogger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		backups:  backups,
		scanner:  sc,
		policies: policies,
		audit:    audit,
	}
}

// Deploy runs the full protected deployment workflow. The backup is
// unconditional and first: no mutation is ever attempted without a fresh
// safety copy.
func (o *Orchestrator) Deploy(req Request) *Result {
	res := &Result{AttemptID: uuid.NewString()}
	defer o.logOutcome("deploy", req.Name, res)

	unlock, err := acquireLock(o.store.Path())
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("could not lock registry: %v", err)
		return res
	}
	defer unlock()

	// Reading auto-creates an empty document, so the backup below always has
	// a file to snapshot.
	doc, err := o.store.Read()
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("could not read registry: %v", err)
		return res
	}

	rec, err := o.backups.Create()
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("backup failed, aborting before any mutation: %v", err)
		return res
	}
	res.Backup = rec

	if _, exists := doc.Servers[req.Name]; exists && !req.Override {
		res.Status = StatusConflict
		res.Message = fmt.Sprintf("an entry named %q already exists; remove it first or deploy with an explicit override", req.Name)
		return res
	}

	target := req.ScanTarget
	if target == "" {
		target = req.Entry.Command
	}
	scanRes, err := o.scanner.Scan(target, req.ProjectRoot)
	if err != nil {
		res.Status = StatusPolicyRejected
		res.Message = fmt.Sprintf("scan failed: %v", err)
		return res
	}
	res.Scan = scanRes
	res.Warnings = append(res.Warnings, scanRes.Warnings...)

	pol, err := o.policies.Load()
	if err != nil {
		res.Status = StatusPolicyRejected
		res.Message = fmt.Sprintf("could not load policy: %v", err)
		return res
	}

	decision := policy.Evaluate(scanRes, pol)
	if !decision.Accept {
		res.Status = StatusPolicyRejected
		res.Message = decision.Reason
		res.Errors = append(res.Errors, scanRes.Errors...)
		return res
	}
	if decision.Bypass {
		res.Warnings = append(res.Warnings, "accepted via policy bypass: "+decision.Reason)
	}

	doc.Servers[req.Name] = req.Entry
	if err := o.store.Write(doc); err != nil {
		var vErr *registry.ValidationError
		if errors.As(err, &vErr) {
			res.Status = StatusValidationFailed
			res.Message = "entry failed validation and was not written"
			res.Errors = append(res.Errors, vErr.Violations...)
			return res
		}
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("registry write failed: %v", err)
		return res
	}

	if err := o.verifyEntry(req.Name, req.Entry); err != nil {
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("post-write verification failed, registry may be corrupt: %v", err)
		return res
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("deployed %q (score %d/100)", req.Name, scanRes.Score)
	return res
}

// Remove deletes an entry. It follows the same backup-first discipline as
// Deploy but skips the security gate: there is no executable to assess.
func (o *Orchestrator) Remove(name string) *Result {
	res := &Result{AttemptID: uuid.NewString()}
	defer o.logOutcome("remove", name, res)

	unlock, err := acquireLock(o.store.Path())
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("could not lock registry: %v", err)
		return res
	}
	defer unlock()

	doc, err := o.store.Read()
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("could not read registry: %v", err)
		return res
	}

	rec, err := o.backups.Create()
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("backup failed, aborting before any mutation: %v", err)
		return res
	}
	res.Backup = rec

	if _, exists := doc.Servers[name]; !exists {
		res.Status = StatusNotFound
		res.Message = fmt.Sprintf("no entry named %q exists", name)
		return res
	}

	delete(doc.Servers, name)
	if err := o.store.Write(doc); err != nil {
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("registry write failed: %v", err)
		return res
	}

	after, err := o.store.Read()
	if err != nil {
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("post-write verification failed: %v", err)
		return res
	}
	if _, still := after.Servers[name]; still {
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("entry %q still present after removal", name)
		return res
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("removed %q", name)
	return res
}

// Restore replaces the live registry with a named backup. The backup manager
// snapshots the current state first, so a restore is itself undoable.
func (o *Orchestrator) Restore(backupName string) *Result {
	res := &Result{AttemptID: uuid.NewString()}
	defer o.logOutcome("restore", backupName, res)

	unlock, err := acquireLock(o.store.Path())
	if err != nil {
		res.Status = StatusBackupFailed
		res.Message = fmt.Sprintf("could not lock registry: %v", err)
		return res
	}
	defer unlock()

	if err := o.backups.Restore(backupName); err != nil {
		res.Status = StatusNotFound
		res.Message = err.Error()
		return res
	}

	if _, err := o.store.Read(); err != nil {
		res.Status = StatusVerifyFailed
		res.Message = fmt.Sprintf("restored registry does not parse: %v", err)
		return res
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("restored registry from %q", backupName)
	return res
}

// verifyEntry re-reads the document and confirms the entry is present with
// the expected shape. A write that cannot be verified is a fatal failure,
// not a silent success.
func (o *Orchestrator) verifyEntry(name string, want registry.ServiceDescriptor) error {
	doc, err := o.store.Read()
	if err != nil {
		return err
	}
	got, ok := doc.Servers[name]
	if !ok {
		return fmt.Errorf("entry %q missing after write", name)
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("entry %q does not match what was written", name)
	}
	return nil
}

func (o *Orchestrator) logOutcome(operation, name string, res *Result) {
	if o.audit == nil {
		return
	}
	event := logger.Event{
		AttemptID: res.AttemptID,
		Operation: operation,
		Name:      name,
		Status:    string(res.Status),
		Reason:    res.Message,
		Errors:    res.Errors,
		Warnings:  res.Warnings,
	}
	if res.Scan != nil {
		event.Score = res.Scan.Score
	}
	_ = o.audit.Log(event)
}
