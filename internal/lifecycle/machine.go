// Package lifecycle implements the ticket state machine: legal status
// transitions with per-role guards, TAT deadline arithmetic including clock
// pausing, escalation level increments and the forward ping-pong guard. All
// functions are pure over the ticket's persisted fields; callers supply the
// clock and run inside the same transaction as any side-effecting update.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// DefaultTAT is the resolution window applied when a handler starts work
// without an explicit turnaround value.
const DefaultTAT = 48 * time.Hour

// DefaultForwardCeiling bounds consecutive forwards before the ping-pong
// guard rejects further ones.
const DefaultForwardCeiling = 3

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReopenable     = errors.New("only resolved tickets can be reopened")
	ErrReopenForbidden   = errors.New("only the creator or an admin may reopen")
	ErrForwardPingPong   = errors.New("forward limit reached")
	ErrNotInProgress     = errors.New("ticket is not in progress")
	ErrAlreadyResolved   = errors.New("ticket already resolved")
	ErrNotPaused         = errors.New("ticket is not awaiting the student")
)

// allowedTransitions is the canonical transition table. REOPENED behaves like
// OPEN for subsequent transitions; RESOLVED is terminal for the TAT clock but
// reachable back into the flow via REOPENED.
var allowedTransitions = map[domain.StatusCode][]domain.StatusCode{
	domain.StatusOpen:            {domain.StatusInProgress, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
	domain.StatusInProgress:      {domain.StatusAwaitingStudent, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
	domain.StatusAwaitingStudent: {domain.StatusInProgress, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
	domain.StatusEscalated:       {domain.StatusInProgress, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
	domain.StatusForwarded:       {domain.StatusInProgress, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
	domain.StatusResolved:        {domain.StatusReopened},
	domain.StatusReopened:        {domain.StatusInProgress, domain.StatusEscalated, domain.StatusForwarded, domain.StatusResolved},
}

// CanTransition reports whether the transition is present in the table.
func CanTransition(from, to domain.StatusCode) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Start moves a ticket into IN_PROGRESS and arms the resolution deadline.
// A zero tat applies DefaultTAT.
func Start(t *domain.Ticket, tat time.Duration, now time.Time) error {
	if !CanTransition(t.Status, domain.StatusInProgress) {
		return transitionErr(t.Status, domain.StatusInProgress)
	}
	if t.Status == domain.StatusAwaitingStudent {
		return Resume(t, now)
	}
	if tat <= 0 {
		tat = DefaultTAT
	}
	due := now.Add(tat)
	t.Status = domain.StatusInProgress
	t.TAT = tat
	t.ResolutionDueAt = &due
	return nil
}

// AwaitStudent pauses the TAT clock while the handler waits on a reply.
func AwaitStudent(t *domain.Ticket, now time.Time) error {
	if t.Status != domain.StatusInProgress {
		return ErrNotInProgress
	}
	paused := now
	t.Status = domain.StatusAwaitingStudent
	t.TATPausedAt = &paused
	return nil
}

// Resume accumulates the paused interval and returns the ticket to
// IN_PROGRESS. The accumulated duration is subtracted from elapsed time when
// computing overdue.
func Resume(t *domain.Ticket, now time.Time) error {
	if t.Status != domain.StatusAwaitingStudent {
		return ErrNotPaused
	}
	if t.TATPausedAt != nil {
		t.TATPausedFor += now.Sub(*t.TATPausedAt)
		t.TATPausedAt = nil
	}
	t.Status = domain.StatusInProgress
	return nil
}

// Escalate increments the escalation level by exactly one and marks the
// ticket ESCALATED. The level never decrements and never skips. Handler
// reassignment via the escalation rule chain is the caller's job.
func Escalate(t *domain.Ticket, now time.Time) error {
	if !CanTransition(t.Status, domain.StatusEscalated) {
		return transitionErr(t.Status, domain.StatusEscalated)
	}
	if t.Status == domain.StatusAwaitingStudent && t.TATPausedAt != nil {
		// escalating out of a paused state closes the pause window
		t.TATPausedFor += now.Sub(*t.TATPausedAt)
		t.TATPausedAt = nil
	}
	t.Status = domain.StatusEscalated
	t.EscalationLevel++
	return nil
}

// Forward marks the ticket FORWARDED and bumps the forward counter. A
// ceiling <= 0 applies DefaultForwardCeiling. Exceeding the ceiling signals
// ping-pong between handlers and is rejected.
func Forward(t *domain.Ticket, ceiling int, now time.Time) error {
	if !CanTransition(t.Status, domain.StatusForwarded) {
		return transitionErr(t.Status, domain.StatusForwarded)
	}
	if ceiling <= 0 {
		ceiling = DefaultForwardCeiling
	}
	if t.Metadata.ForwardCount >= ceiling {
		return ErrForwardPingPong
	}
	if t.Status == domain.StatusAwaitingStudent && t.TATPausedAt != nil {
		t.TATPausedFor += now.Sub(*t.TATPausedAt)
		t.TATPausedAt = nil
	}
	t.Status = domain.StatusForwarded
	t.Metadata.ForwardCount++
	return nil
}

// Resolve stamps resolved_at from any non-terminal state.
func Resolve(t *domain.Ticket, now time.Time) error {
	if t.Status == domain.StatusResolved {
		return ErrAlreadyResolved
	}
	if !CanTransition(t.Status, domain.StatusResolved) {
		return transitionErr(t.Status, domain.StatusResolved)
	}
	if t.TATPausedAt != nil {
		t.TATPausedFor += now.Sub(*t.TATPausedAt)
		t.TATPausedAt = nil
	}
	resolved := now
	t.Status = domain.StatusResolved
	t.ResolvedAt = &resolved
	return nil
}

// Reopen re-enters the flow from RESOLVED. Only the original creator or an
// admin may reopen; the handler and TAT are deliberately kept, a reopened
// ticket stays with whoever resolved it unless manually reassigned.
func Reopen(t *domain.Ticket, actor domain.Actor) error {
	if t.Status != domain.StatusResolved {
		return ErrNotReopenable
	}
	if actor.ID != t.CreatedBy && !actor.Role.IsHandler() {
		return ErrReopenForbidden
	}
	t.Status = domain.StatusReopened
	t.ReopenCount++
	t.ResolvedAt = nil
	return nil
}

// ExtendTAT changes the turnaround window of an in-progress ticket and
// appends an immutable entry to the extension history. The history is audit
// data and is never rewritten.
func ExtendTAT(t *domain.Ticket, newTAT time.Duration, actorID string, now time.Time) error {
	if t.Status != domain.StatusInProgress {
		return ErrNotInProgress
	}
	if newTAT <= 0 {
		return fmt.Errorf("non-positive TAT %v: %w", newTAT, ErrInvalidTransition)
	}
	previous := t.TAT
	t.Metadata.TATExtensions = append(t.Metadata.TATExtensions, domain.TATExtension{
		PreviousTAT: previous,
		NewTAT:      newTAT,
		ExtendedAt:  now,
		ActorID:     actorID,
	})
	if t.ResolutionDueAt != nil {
		due := t.ResolutionDueAt.Add(newTAT - previous)
		t.ResolutionDueAt = &due
	}
	t.TAT = newTAT
	return nil
}

// IsOverdue reports whether the ticket breached its adjusted resolution
// deadline. Reproducible from persisted fields alone: the deadline is shifted
// by the accumulated paused duration plus any pause still running.
func IsOverdue(t *domain.Ticket, now time.Time) bool {
	if t.Status == domain.StatusResolved || t.Status == domain.StatusReopened {
		return false
	}
	if t.ResolutionDueAt == nil {
		return false
	}
	adjusted := t.ResolutionDueAt.Add(t.TATPausedFor)
	if t.TATPausedAt != nil {
		adjusted = adjusted.Add(now.Sub(*t.TATPausedAt))
	}
	return now.After(adjusted)
}

func transitionErr(from, to domain.StatusCode) error {
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
