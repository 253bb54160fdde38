package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"finca/internal/amqp"
	"finca/internal/auth"
	"finca/internal/blob"
	"finca/internal/core"
	"finca/internal/log"
)

// Upload is one submitted file. Size is the declared length, or -1 if unknown.
type Upload struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// AttachmentService associates uploaded files with existing expenses.
type AttachmentService struct {
	ledger *LedgerService
	blobs  blob.Store
	logger *log.Logger
	newKey func(expenseID, ext string) string
}

func NewAttachmentService(ledger *LedgerService, blobs blob.Store) *AttachmentService {
	return &AttachmentService{
		ledger: ledger,
		blobs:  blobs,
		logger: ledger.logger.WithComponent(log.ComponentAttachment),
		newKey: storageKey,
	}
}

// storageKey never includes the submitted file name.
func storageKey(expenseID, ext string) string {
	return path.Join("expenses", expenseID, uuid.NewString()+ext)
}

// Attach validates, uploads and records one file against expenseID.
//
// If the blob is stored but the record insert fails, the blob is deleted
// again. When that also fails the key is queued on the orphans queue for
// the worker, and the insert error is returned either way.
func (s *AttachmentService) Attach(ctx context.Context, u *auth.User, expenseID string, up Upload) (core.Attachment, error) {
	if err := s.ledger.gate.RequireSignedIn(u); err != nil {
		return core.Attachment{}, err
	}
	if _, err := s.ledger.expenses.GetExpense(ctx, expenseID); err != nil {
		return core.Attachment{}, fmt.Errorf("attach to %s: %w", expenseID, err)
	}

	data, err := readLimited(up)
	if err != nil {
		return core.Attachment{}, err
	}

	mt := mimetype.Detect(data)
	category, ok := core.CategoryForContentType(mt.String())
	if !ok {
		return core.Attachment{}, &core.ValidationError{Field: "file", Err: fmt.Errorf("%w: %s", core.ErrUnsupportedFileType, mt.String())}
	}
	contentType := strings.SplitN(mt.String(), ";", 2)[0]

	key := s.newKey(expenseID, mt.Extension())
	url, err := s.blobs.PutObject(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.ledger.metrics.Mutation(amqp.CollectionAttachments, amqp.ActionCreated, err)
		return core.Attachment{}, fmt.Errorf("upload attachment: %w: %w", core.ErrStoreUnavailable, err)
	}

	a := core.Attachment{
		FileName:     displayName(up.FileName),
		MimeCategory: category,
		ContentType:  contentType,
		StorageKey:   key,
		StorageURL:   url,
		SizeBytes:    int64(len(data)),
	}

	var saved core.Attachment
	committed, err := s.ledger.mutate(ctx, func(ctx context.Context) (err error) {
		saved, err = s.ledger.expenses.InsertAttachment(ctx, expenseID, a)
		return err
	})
	s.ledger.metrics.Mutation(amqp.CollectionAttachments, amqp.ActionCreated, storeErr(committed, err))
	if !committed {
		s.compensate(ctx, key, expenseID, err)
		return core.Attachment{}, fmt.Errorf("record attachment: %w", err)
	}

	// The row references the blob now, so a caller that gave up keeps both.
	s.ledger.metrics.AttachmentStored(saved.SizeBytes)
	s.logger.InfoContext(ctx, "Attachment stored",
		log.FieldRecordID, expenseID,
		log.FieldStorageKey, key,
		log.FieldSizeBytes, saved.SizeBytes,
		log.FieldUserID, u.ID)
	s.ledger.publish(ctx, amqp.NewAttachmentCreated(saved))
	if err != nil {
		return core.Attachment{}, fmt.Errorf("record attachment: %w", err)
	}
	return saved, nil
}

// AttachAll attaches uploads in order and stops at the first failure. The
// attachments stored before it are returned with the error.
func (s *AttachmentService) AttachAll(ctx context.Context, u *auth.User, expenseID string, uploads []Upload) ([]core.Attachment, error) {
	out := make([]core.Attachment, 0, len(uploads))
	for i, up := range uploads {
		a, err := s.Attach(ctx, u, expenseID, up)
		if err != nil {
			return out, fmt.Errorf("file %d (%s): %w", i+1, up.FileName, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AttachmentService) compensate(ctx context.Context, key, expenseID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.blobs.DeleteObject(ctx, key)
	if err == nil || errors.Is(err, blob.ErrNotFound) {
		s.ledger.metrics.OrphanedBlob("compensated")
		s.logger.WarnContext(ctx, "Attachment insert failed, uploaded blob removed",
			log.FieldStorageKey, key, log.FieldError, cause)
		return
	}
	s.logger.ErrorContext(ctx, "Attachment insert failed and blob cleanup failed",
		log.FieldStorageKey, key,
		log.FieldError, cause,
		"cleanup_error", err)
	s.ledger.queueOrphan(ctx, key, expenseID, "attachment insert failed: "+cause.Error())
}

// readLimited reads at most MaxAttachmentBytes, rejecting anything larger
// whether declared or actual.
func readLimited(up Upload) ([]byte, error) {
	tooLarge := &core.ValidationError{Field: "file", Err: core.ErrFileTooLarge}
	if up.Size > core.MaxAttachmentBytes {
		return nil, tooLarge
	}
	if up.Body == nil {
		return nil, core.MissingField("file")
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, core.MaxAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > core.MaxAttachmentBytes {
		return nil, tooLarge
	}
	if len(data) == 0 {
		return nil, core.MissingField("file")
	}
	return data, nil
}

// displayName strips any client path from the submitted name.
func displayName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "archivo"
	}
	return name
}
