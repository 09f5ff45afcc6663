package batchstore

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddRequiresServiceID(t *testing.T) {
	s := openTestStore(t)
	batch := &Batch{BatchHeader: "hdr-1"}
	if err := s.Add([]*Batch{batch}); err == nil {
		t.Fatalf("expected error for missing service_id")
	}
}

func TestAddAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	batch := NewBatch("svc-a", "hdr-1", "pubkey", []byte("serialized"), false)
	if err := s.Add([]*Batch{batch}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, found, err := s.Get("svc-a", "hdr-1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Status != StatusUnknown {
		t.Fatalf("expected Unknown status, got %s", got.Status)
	}

	byTrace, found, err := s.GetByDataChangeID("svc-a", batch.DataChangeID)
	if err != nil || !found || byTrace.BatchHeader != "hdr-1" {
		t.Fatalf("GetByDataChangeID: found=%v err=%v", found, err)
	}
}

func TestNewBatchAppliesGlobalScopeSentinel(t *testing.T) {
	batch := NewBatch("", "hdr-1", "pubkey", nil, false)
	if batch.ServiceID != NonSplinterServiceID {
		t.Fatalf("expected NewBatch to apply the sentinel, got %q", batch.ServiceID)
	}
}

func TestUpdateStatusTransitionsLifecycle(t *testing.T) {
	s := openTestStore(t)
	batch := NewBatch("svc-a", "hdr-1", "pubkey", nil, false)
	if err := s.Add([]*Batch{batch}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.UpdateStatus("svc-a", "hdr-1", StatusPending, nil, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	valid := []ValidTransaction{{TransactionID: "tx-1"}}
	if err := s.UpdateStatus("svc-a", "hdr-1", StatusValid, nil, valid); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, _, err := s.Get("svc-a", "hdr-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusValid || len(got.ValidTxns) != 1 {
		t.Fatalf("expected Valid status with 1 valid transaction, got %+v", got)
	}
}

func TestListByStatusAndUnsubmittedAndFailed(t *testing.T) {
	s := openTestStore(t)
	pending := NewBatch("svc-a", "hdr-pending", "pubkey", nil, false)
	invalid := NewBatch("svc-a", "hdr-invalid", "pubkey", nil, false)
	if err := s.Add([]*Batch{pending, invalid}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdateStatus("svc-a", "hdr-invalid", StatusInvalid, []InvalidTransaction{{TransactionID: "tx-x", ErrorMessage: "bad"}}, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	failed, err := s.ListFailed()
	if err != nil || len(failed) != 1 || failed[0].BatchHeader != "hdr-invalid" {
		t.Fatalf("ListFailed: %+v err=%v", failed, err)
	}

	byStatus, err := s.ListByStatus(StatusInvalid)
	if err != nil || len(byStatus) != 1 || byStatus[0].BatchHeader != "hdr-invalid" {
		t.Fatalf("ListByStatus(Invalid): %+v err=%v", byStatus, err)
	}

	unsubmitted, err := s.ListUnsubmitted()
	if err != nil || len(unsubmitted) != 2 {
		t.Fatalf("ListUnsubmitted: expected 2, got %d (%v)", len(unsubmitted), err)
	}

	if err := s.ChangeToSubmitted("svc-a", "hdr-pending", nil); err != nil {
		t.Fatalf("ChangeToSubmitted: %v", err)
	}
	unsubmitted, err = s.ListUnsubmitted()
	if err != nil || len(unsubmitted) != 1 {
		t.Fatalf("ListUnsubmitted after submit: expected 1, got %d (%v)", len(unsubmitted), err)
	}
}

func TestChangeToSubmittedWithSubmissionErrorMarksInvalid(t *testing.T) {
	s := openTestStore(t)
	batch := NewBatch("svc-a", "hdr-1", "pubkey", nil, false)
	if err := s.Add([]*Batch{batch}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	submissionErr := &SubmissionError{ErrorType: "connection", ErrorMessage: "refused"}
	if err := s.ChangeToSubmitted("svc-a", "hdr-1", submissionErr); err != nil {
		t.Fatalf("ChangeToSubmitted: %v", err)
	}

	got, _, err := s.Get("svc-a", "hdr-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusInvalid || got.SubmissionError == nil {
		t.Fatalf("expected Invalid status with submission error recorded, got %+v", got)
	}
}

func TestCleanStaleBeforeRemovesOldBatches(t *testing.T) {
	s := openTestStore(t)
	old := NewBatch("svc-a", "hdr-old", "pubkey", nil, false)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := NewBatch("svc-a", "hdr-fresh", "pubkey", nil, false)
	if err := s.Add([]*Batch{old, fresh}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	removed, err := s.CleanStaleBefore(time.Now().Add(-24 * time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("CleanStaleBefore: removed=%d err=%v", removed, err)
	}

	if _, found, _ := s.Get("svc-a", "hdr-old"); found {
		t.Fatalf("expected stale batch to be removed")
	}
	if _, found, _ := s.Get("svc-a", "hdr-fresh"); !found {
		t.Fatalf("expected fresh batch to survive")
	}
}

func TestAwaitStatusReturnsOnceReached(t *testing.T) {
	s := openTestStore(t)
	batch := NewBatch("svc-a", "hdr-1", "pubkey", nil, false)
	if err := s.Add([]*Batch{batch}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.UpdateStatus("svc-a", "hdr-1", StatusCommitted, nil, []ValidTransaction{{TransactionID: "tx-1"}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := s.AwaitStatus(ctx, "svc-a", "hdr-1", 5*time.Millisecond, StatusCommitted, StatusInvalid)
	if err != nil {
		t.Fatalf("AwaitStatus: %v", err)
	}
	if got.Status != StatusCommitted {
		t.Fatalf("expected Committed, got %s", got.Status)
	}
}
