package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/mholt/archives"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bugtracker-service/internal/models"
)

// ObjectPutter is the part of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// HistoryReader returns a bug's audit log after authorizing the actor.
type HistoryReader interface {
	BugHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) ([]models.BugEvent, error)
}

// ArchiveService uploads gzipped JSON snapshots of bug audit logs to object storage.
type ArchiveService struct {
	history HistoryReader
	store   ObjectPutter
	bucket  string
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewArchiveService creates an ArchiveService writing into bucket.
func NewArchiveService(history HistoryReader, store ObjectPutter, bucket string, log *zap.SugaredLogger) *ArchiveService {
	return &ArchiveService{
		history: history,
		store:   store,
		bucket:  bucket,
		log:     log.Named("service.archive"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type historyDocument struct {
	BugID      uuid.UUID         `json:"bugId"`
	ProjectID  uuid.UUID         `json:"projectId"`
	ArchivedBy uuid.UUID         `json:"archivedBy"`
	ArchivedAt time.Time         `json:"archivedAt"`
	Events     []models.BugEvent `json:"events"`
}

// ArchiveHistory snapshots the audit log of a bug and returns where it was stored.
func (s *ArchiveService) ArchiveHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.HistoryArchive, error) {
	events, err := s.history.BugHistory(ctx, actor, projectID, bugID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	doc := historyDocument{
		BugID:      bugID,
		ProjectID:  projectID,
		ArchivedBy: actor,
		ArchivedAt: at,
		Events:     events,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encode history")
	}

	var buf bytes.Buffer
	if err := compress(&buf, payload); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("history/%s/%s/%d.json.gz", projectID, bugID, at.UnixNano())
	info, err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return nil, errors.Wrap(err, "upload history archive")
	}

	s.log.Infow("history archived", "bug_id", bugID, "key", key, "events", len(events), "bytes", info.Size)
	return &models.HistoryArchive{Key: key, Size: info.Size}, nil
}

func compress(dst io.Writer, payload []byte) error {
	w, err := archives.Gz{CompressionLevel: gzip.DefaultCompression}.OpenWriter(dst)
	if err != nil {
		return errors.Wrap(err, "open gzip writer")
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "compress history")
	}
	return errors.Wrap(w.Close(), "finish gzip stream")
}
