// Package chain re-verifies the append-only signature history of an order.
// Replay re-derives, for each record, the canonical payload that was signed
// given the status progression up to that record, then re-runs signature
// verification. Verifying an early entry against the order's current status
// would always fail once later transitions changed it.
package chain

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/canonical"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/crypto"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/entity"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

// KeyLookup resolves the public key a signer held at a given key version.
type KeyLookup interface {
	PublicKeyVersion(ctx context.Context, userID int64, version int) (*rsa.PublicKey, error)
}

// EntryResult is the verification outcome for one chain record.
type EntryResult struct {
	RecordID int64         `json:"record_id"`
	SignerID int64         `json:"signer_id"`
	Kind     workflow.Kind `json:"kind"`
	Digest   string        `json:"digest"`
	Valid    bool          `json:"valid"`
	Reason   string        `json:"reason,omitempty"`
}

// Report is the outcome of replaying an order's full chain.
type Report struct {
	OrderID int64         `json:"order_id"`
	Valid   bool          `json:"valid"`
	Entries []EntryResult `json:"entries"`
}

// Replay walks records in insertion order (the authoritative chronology;
// client timestamps are not trusted for ordering) and re-verifies each one.
// It is a read-only pure computation over its inputs and takes no locks.
func Replay(ctx context.Context, order *entity.Order, records []entity.SignatureRecord, keys KeyLookup) Report {
	report := Report{OrderID: order.ID, Valid: true, Entries: make([]EntryResult, 0, len(records))}

	status := workflow.StatusPending
	for _, rec := range records {
		result := EntryResult{RecordID: rec.ID, SignerID: rec.SignerID, Kind: workflow.Kind(rec.Kind), Digest: rec.Digest}

		attested, err := workflow.Result(result.Kind, status)
		if err != nil {
			result.Reason = fmt.Sprintf("illegal transition %q from status %q", rec.Kind, status)
			report.Entries = append(report.Entries, result)
			report.Valid = false
			continue
		}
		if workflow.Advances(result.Kind) {
			status = attested
		}

		snap := canonical.Snapshot{
			OrderNumber:  order.Number,
			PurchaserID:  order.PurchaserID,
			Description:  order.Description,
			Amount:       order.Amount,
			Vendor:       order.Vendor,
			Confidential: order.Confidential,
			Status:       string(attested),
			CreatedAt:    order.CreatedAt,
			UpdatedAt:    rec.AttestedAt,
		}
		payload := snap.Bytes()

		if digest := canonical.DigestBytes(payload); digest != rec.Digest {
			result.Reason = "canonical digest mismatch"
			report.Entries = append(report.Entries, result)
			report.Valid = false
			continue
		}

		pub, err := keys.PublicKeyVersion(ctx, rec.SignerID, rec.KeyVersion)
		if err != nil {
			result.Reason = fmt.Sprintf("key material unavailable: %v", err)
			report.Entries = append(report.Entries, result)
			report.Valid = false
			continue
		}

		ok, err := crypto.Verify(payload, decodeSignature(rec.Signature), pub)
		if err != nil {
			result.Reason = fmt.Sprintf("cannot evaluate signature: %v", err)
		} else if !ok {
			result.Reason = "signature invalid"
		}
		result.Valid = err == nil && ok
		if !result.Valid {
			report.Valid = false
		}
		report.Entries = append(report.Entries, result)
	}

	return report
}
