package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		role    Role
		from    Status
		want    Status
		wantErr bool
		denied  bool
	}{
		{name: "purchaser creates", kind: KindCreate, role: RolePurchaser, want: StatusPending},
		{name: "supervisor cannot create", kind: KindCreate, role: RoleSupervisor, denied: true},
		{name: "supervisor approves pending", kind: KindApprove, role: RoleSupervisor, from: StatusPending, want: StatusApproved},
		{name: "purchaser cannot approve", kind: KindApprove, role: RolePurchaser, from: StatusPending, denied: true},
		{name: "approve requires pending", kind: KindApprove, role: RoleSupervisor, from: StatusApproved, wantErr: true},
		{name: "supervisor rejects pending", kind: KindReject, role: RoleSupervisor, from: StatusPending, want: StatusRejected},
		{name: "reject requires pending", kind: KindReject, role: RoleSupervisor, from: StatusProcessed, wantErr: true},
		{name: "purchasing processes approved", kind: KindProcess, role: RolePurchasing, from: StatusApproved, want: StatusProcessed},
		{name: "purchaser cannot process", kind: KindProcess, role: RolePurchaser, from: StatusApproved, denied: true},
		{name: "process requires approved", kind: KindProcess, role: RolePurchasing, from: StatusPending, wantErr: true},
		{name: "purchaser signs pending", kind: KindSign, role: RolePurchaser, from: StatusPending, want: StatusPending},
		{name: "supervisor signs approved", kind: KindSign, role: RoleSupervisor, from: StatusApproved, want: StatusApproved},
		{name: "purchasing cannot sign", kind: KindSign, role: RolePurchasing, from: StatusPending, denied: true},
		{name: "sign on terminal status", kind: KindSign, role: RoleSupervisor, from: StatusRejected, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.denied {
				assert.False(t, Authorized(tc.kind, tc.role))
				return
			}
			require.True(t, Authorized(tc.kind, tc.role))

			got, err := Result(tc.kind, tc.from)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNoTransitionLeavesTerminalStatus(t *testing.T) {
	for _, terminal := range []Status{StatusRejected, StatusProcessed} {
		require.True(t, Terminal(terminal))
		for _, kind := range []Kind{KindSign, KindApprove, KindReject, KindProcess} {
			_, err := Result(kind, terminal)
			assert.ErrorIs(t, err, ErrUnauthorized, "kind %s must not leave %s", kind, terminal)
		}
	}
}

func TestAuditActionVocabulary(t *testing.T) {
	assert.Equal(t, AuditCreated, AuditAction(KindCreate))
	assert.Equal(t, AuditSigned, AuditAction(KindSign))
	assert.Equal(t, AuditApproved, AuditAction(KindApprove))
	assert.Equal(t, AuditRejected, AuditAction(KindReject))
	assert.Equal(t, AuditProcessed, AuditAction(KindProcess))
	assert.Equal(t, AuditDenied, AuditAction(Kind("bogus")))
}

func TestTransitionRequestTagging(t *testing.T) {
	now := time.Now()
	assert.Equal(t, KindSign, NewSignRequest(nil, "", now).Kind())
	assert.Equal(t, KindApprove, NewApproveRequest(nil, "", now).Kind())
	assert.Equal(t, KindReject, NewRejectRequest(nil, "", now).Kind())
	assert.Equal(t, KindProcess, NewProcessRequest(nil, "", now).Kind())
}
