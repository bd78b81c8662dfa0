package api

import "fmt"

// ReservationError indicates the backend refused to reserve an upload slot,
// typically because of quota limits or an invalid filename/size.
type ReservationError struct {
	StatusCode int
	Reason     string
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reservation refused (status %d): %s", e.StatusCode, e.Reason)
}

// TransferError indicates the byte stream was interrupted or rejected by the
// server, or that the confirmed byte count did not match the source size.
type TransferError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transfer failed (status %d): %s", e.StatusCode, e.Reason)
}

func (e *TransferError) Unwrap() error { return e.Err }

// FinalizeError indicates the backend could not commit a completed transfer,
// e.g. a duplicate was detected and not ignored, or server-side processing
// rejected the payload.
type FinalizeError struct {
	StatusCode       int
	Reason           string
	DuplicateAssetID string
}

func (e *FinalizeError) Error() string {
	if e.DuplicateAssetID != "" {
		return fmt.Sprintf("finalize rejected: %s (duplicate of asset %s)", e.Reason, e.DuplicateAssetID)
	}
	return fmt.Sprintf("finalize rejected (status %d): %s", e.StatusCode, e.Reason)
}
