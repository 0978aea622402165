package order

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/pkg/errorbank"
)

func TestMapDomainErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		kind errorbank.Kind
	}{
		{"not found", workflow.ErrNotFound, errorbank.KindNotFound},
		{"unknown user", keyring.ErrUnknownUser, errorbank.KindNotFound},
		{"unauthorized", workflow.ErrUnauthorized, errorbank.KindUnauthorized},
		{"duplicate signature", workflow.ErrDuplicateSignature, errorbank.KindConflict},
		{"invalid signature", workflow.ErrInvalidSignature, errorbank.KindUnprocessableEntity},
		{"write conflict", workflow.ErrConflict, errorbank.KindUnavailable},
		{"crypto fault", fmt.Errorf("verify: %w", crypto.ErrCryptoFault), errorbank.KindInternal},
		{"unexpected", errors.New("boom"), errorbank.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapDomainErr(tc.in)
			var appErr *errorbank.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.kind, appErr.Kind())
		})
	}
}

func TestMapDomainErrNil(t *testing.T) {
	assert.NoError(t, mapDomainErr(nil))
}
