// Package workflow defines the authoritative purchase-order lifecycle: legal
// statuses, legal transitions, the roles allowed to perform them and the
// guard ordering the engine must follow.
package workflow

import "errors"

// Status is a purchase-order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusProcessed Status = "processed"
)

// Role is the authorization role resolved once at the authentication
// boundary and passed into the engine; it is never re-derived mid-transition.
type Role string

const (
	RolePurchaser  Role = "purchaser"
	RoleSupervisor Role = "supervisor"
	RolePurchasing Role = "purchasing_dept"
)

// Kind names a workflow transition.
type Kind string

const (
	KindCreate  Kind = "create"
	KindSign    Kind = "sign"
	KindApprove Kind = "approve"
	KindReject  Kind = "reject"
	KindProcess Kind = "process"
)

// Error taxonomy. Guard evaluation order gives these stable meaning: an
// Unauthorized always refers to role or status preconditions, never to the
// signature itself.
var (
	ErrNotFound           = errors.New("order not found")
	ErrUnauthorized       = errors.New("transition not authorized")
	ErrDuplicateSignature = errors.New("duplicate signature for transition")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrConflict           = errors.New("concurrent transition conflict")
)

type rule struct {
	roles    []Role
	from     Status
	to       Status
	advances bool
}

// Sign co-attests without advancing: it is legal in any non-terminal status
// and leaves the status unchanged.
var transitions = map[Kind]rule{
	KindCreate:  {roles: []Role{RolePurchaser}, to: StatusPending, advances: true},
	KindSign:    {roles: []Role{RolePurchaser, RoleSupervisor}},
	KindApprove: {roles: []Role{RoleSupervisor}, from: StatusPending, to: StatusApproved, advances: true},
	KindReject:  {roles: []Role{RoleSupervisor}, from: StatusPending, to: StatusRejected, advances: true},
	KindProcess: {roles: []Role{RolePurchasing}, from: StatusApproved, to: StatusProcessed, advances: true},
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RolePurchaser, RoleSupervisor, RolePurchasing:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusProcessed:
		return true
	}
	return false
}

// Terminal reports whether no further advancing transition can leave s.
func Terminal(s Status) bool {
	return s == StatusRejected || s == StatusProcessed
}

// Authorized reports whether role may request the transition at all,
// independent of order state.
func Authorized(kind Kind, role Role) bool {
	r, ok := transitions[kind]
	if !ok {
		return false
	}
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Result returns the status the order will hold after kind is applied to
// current, or ErrUnauthorized when the status precondition is not met. For
// the non-advancing sign transition the result equals the current status.
func Result(kind Kind, current Status) (Status, error) {
	r, ok := transitions[kind]
	if !ok {
		return "", ErrUnauthorized
	}
	if !r.advances {
		if Terminal(current) {
			return "", ErrUnauthorized
		}
		return current, nil
	}
	if r.from != "" && current != r.from {
		return "", ErrUnauthorized
	}
	return r.to, nil
}

// Advances reports whether kind changes the order status.
func Advances(kind Kind) bool {
	r, ok := transitions[kind]
	return ok && r.advances
}

// AuditAction maps a successful transition to its closed-vocabulary audit
// action. Denied attempts are always recorded as AuditDenied.
func AuditAction(kind Kind) string {
	switch kind {
	case KindCreate:
		return AuditCreated
	case KindSign:
		return AuditSigned
	case KindApprove:
		return AuditApproved
	case KindReject:
		return AuditRejected
	case KindProcess:
		return AuditProcessed
	}
	return AuditDenied
}

// Closed audit action vocabulary consumed by reporting.
const (
	AuditCreated   = "created"
	AuditSigned    = "signed"
	AuditApproved  = "approved"
	AuditRejected  = "rejected"
	AuditProcessed = "processed"
	AuditDenied    = "transition_denied"
)
