package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one append-only entry in the transfer log.
type AuditRecord struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
}

// Status tags written to the transfer log.

func StatusNoFilesFound(entity string) string {
	return fmt.Sprintf("no_files_found_%s", entity)
}

func StatusDiscoveryFailed(entity string) string {
	return fmt.Sprintf("discovery_failed_%s", entity)
}

func StatusRetrieved(sourceKind, entity string) string {
	return fmt.Sprintf("retrieved_from_%s_%s", sourceKind, entity)
}

func StatusRetrieveFailed(entity string) string {
	return fmt.Sprintf("retrieve_failed_%s", entity)
}

func StatusSanitizeFailed(entity string) string {
	return fmt.Sprintf("sanitize_failed_%s", entity)
}

func StatusUploaded(destinationKind, entity, destination string) string {
	return fmt.Sprintf("uploaded_to_%s_%s:%s", destinationKind, entity, destination)
}

func StatusUploadFailed(entity string) string {
	return fmt.Sprintf("upload_failed_%s", entity)
}

func StatusSourceDeleteFailed(entity string) string {
	return fmt.Sprintf("source_delete_failed_%s", entity)
}

func StatusCancelled(entity string) string {
	return fmt.Sprintf("cancelled_%s", entity)
}
