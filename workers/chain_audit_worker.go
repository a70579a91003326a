// workers/chain_audit_worker.go
package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"federation-ledger-system/models"
	"federation-ledger-system/utils"

	"gorm.io/gorm"
)

const auditBatchSize = 500

// ChainAuditor incrementally re-verifies the transaction chain, stamping each
// record's last-verified timestamp. Progress lives in the DB, so a restart
// resumes where the previous sweep stopped.
type ChainAuditor struct {
	DB *gorm.DB
}

func NewChainAuditor(db *gorm.DB) *ChainAuditor {
	return &ChainAuditor{DB: db}
}

type auditSweepReport struct {
	Kind      string    `json:"kind"`
	Checked   int       `json:"checked"`
	FailedID  string    `json:"failed_id,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// sweep verifies up to one batch of not-yet-verified transactions, oldest
// first. An integrity failure halts the sweep immediately: nothing after a
// broken link gets stamped, and the failure is surfaced, never corrected.
func (a *ChainAuditor) sweep(ctx context.Context) (checked int, failedID string, err error) {
	var transactions []models.Transaction
	err = a.DB.WithContext(ctx).
		Where("last_verified_at IS NULL").
		Order("created_at ASC").
		Limit(auditBatchSize).
		Find(&transactions).Error
	if err != nil {
		return 0, "", err
	}

	for i := range transactions {
		t := &transactions[i]
		ok, verr := t.VerifyHash(a.DB)
		if verr != nil {
			return checked, "", verr
		}
		if !ok {
			log.Printf("❌ [CHAIN_AUDIT] INTEGRITY FAILURE on transaction %s — halting sweep, operator attention required", t.ID)
			return checked, t.ID, &models.IntegrityError{TransactionID: t.ID}
		}
		now := time.Now().UTC()
		if err := a.DB.Model(t).Update("last_verified_at", now).Error; err != nil {
			return checked, "", err
		}
		checked++
	}
	return checked, "", nil
}

// PollChain runs incremental verification sweeps until the context ends,
// archiving a report after each non-empty sweep.
func PollChain(ctx context.Context, auditor *ChainAuditor, pollInterval time.Duration) {
	log.Println("Starting chain audit polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Chain audit polling stopped.")
			return
		case <-ticker.C:
			checked, failedID, err := auditor.sweep(ctx)
			if err != nil && failedID == "" {
				log.Printf("❌ [CHAIN_AUDIT] sweep error: %v", err)
				continue
			}
			if checked == 0 && failedID == "" {
				continue
			}
			log.Printf("✅ [CHAIN_AUDIT] verified %d transaction(s)", checked)

			if !utils.ArchiveEnabled() {
				continue
			}
			report, _ := json.Marshal(auditSweepReport{
				Kind:      "incremental-sweep",
				Checked:   checked,
				FailedID:  failedID,
				CheckedAt: time.Now().UTC(),
			})
			key := utils.AuditReportKey("incremental-sweep", time.Now())
			if _, uerr := utils.UploadAuditReport(ctx, key, report); uerr != nil {
				log.Printf("[CHAIN_AUDIT] failed to archive report: %v", uerr)
			}
		}
	}
}
