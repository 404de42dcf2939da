package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the operational stores
// for aged records, serializing them to JSONL, and uploading the result to
// blob storage.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here. That is a separate, explicit step to be executed after
// the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	failedOps domain.FailedOpStore
	audit     domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, failedOps domain.FailedOpStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		failedOps: failedOps,
		audit:     audit,
	}
}

// ArchiveFailedOperations queries all failure records before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/failed_operations/YYYY-MM.jsonl. The archival event is recorded in
// the audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveFailedOperations(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.failedOps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive failed operations query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive failed operations marshal: %w", err)
	}

	path := archivePath("failed_operations", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive failed operations upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.failed_operations", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive failed operations audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog queries all audit entries before the cutoff, serializes
// them to JSONL, and uploads the file to archive/audit_log/YYYY-MM.jsonl.
// The count of archived entries is returned.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log marshal: %w", err)
	}

	path := archivePath("audit_log", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.audit_log", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log record: %w", err)
	}

	return count, nil
}

// multipartThreshold is the serialized batch size above which the archiver
// switches to a concurrent multipart upload.
const multipartThreshold = 8 << 20

// upload sends one serialized batch. Small batches go up in a single request;
// batches past the threshold stream through the multipart path when the
// writer supports it.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	type multipartPutter interface {
		PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
	}
	if mp, ok := a.writer.(multipartPutter); ok && int64(len(buf)) >= multipartThreshold {
		return mp.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the blob key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/failed_operations/2026-08.jsonl
//	archive/audit_log/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
