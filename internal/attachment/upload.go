package attachment

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/commboard/service/internal/metrics"
	"github.com/commboard/service/internal/presign"
)

// PutIssuer obtains presigned upload URLs.
type PutIssuer interface {
	IssuePresignedPut(ctx context.Context, req presign.PutRequest) (*presign.PutTicket, error)
}

// Transferer moves bytes to a presigned upload URL.
type Transferer interface {
	TransferBytes(ctx context.Context, uploadURL, contentType string, body []byte) error
}

// CommitFunc persists a staged record and returns it as stored.
type CommitFunc func(ctx context.Context, rec *FileRecord) (*FileRecord, error)

// Limits bounds what a single upload may contain.
type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
	// Concurrency > 1 stages files of a batch in parallel. Commits stay in input order.
	Concurrency int
}

// Failure identifies the file that stopped a batch.
type Failure struct {
	Index int
	Name  string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("file %d (%q): %v", f.Index, f.Name, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// UploadResult is the outcome of a batch: every file committed before the first failure,
// and that failure if there was one.
type UploadResult struct {
	Files   []FileRecord
	Failure *Failure
}

// Err returns the failure as an error, or nil when the whole batch committed.
func (r *UploadResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// staged is a file whose bytes already sit in the object store.
type staged struct {
	record *FileRecord
}

// Orchestrator runs the upload protocol for one target.
type Orchestrator struct {
	guard     *Guard
	keys      *KeyGenerator
	issuer    PutIssuer
	transport Transferer
	limits    Limits
	log       zerolog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(guard *Guard, keys *KeyGenerator, issuer PutIssuer, transport Transferer, limits Limits, log zerolog.Logger) *Orchestrator {
	if limits.Concurrency < 1 {
		limits.Concurrency = 1
	}
	return &Orchestrator{
		guard:     guard,
		keys:      keys,
		issuer:    issuer,
		transport: transport,
		limits:    limits,
		log:       log.With().Str("component", "upload").Logger(),
	}
}

// Upload authorizes callerID against target and then uploads files in order, committing
// each through commit. The returned error is set only when nothing could start
// (ownership, missing parent, empty or oversized set); per-file failures end up in
// UploadResult.Failure with every earlier commit kept.
func (o *Orchestrator) Upload(ctx context.Context, target Target, callerID int64, files []Upload, commit CommitFunc) (*UploadResult, error) {
	if err := o.guard.Check(ctx, target, callerID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in upload", ErrInvalidInput)
	}
	if o.limits.MaxFiles > 0 && len(files) > o.limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files exceed the limit of %d", ErrInvalidInput, len(files), o.limits.MaxFiles)
	}

	if o.limits.Concurrency > 1 && len(files) > 1 {
		return o.uploadStagedInParallel(ctx, target, callerID, files, commit), nil
	}

	result := &UploadResult{Files: make([]FileRecord, 0, len(files))}
	for i, f := range files {
		rec, err := o.uploadOne(ctx, target, callerID, f, commit)
		if err != nil {
			result.Failure = &Failure{Index: i, Name: f.Name, Err: err}
			break
		}
		result.Files = append(result.Files, *rec)
	}
	return result, nil
}

// UploadOne authorizes and uploads a single file.
func (o *Orchestrator) UploadOne(ctx context.Context, target Target, callerID int64, file Upload, commit CommitFunc) (*FileRecord, error) {
	if err := o.guard.Check(ctx, target, callerID); err != nil {
		return nil, err
	}
	return o.uploadOne(ctx, target, callerID, file, commit)
}

func (o *Orchestrator) uploadOne(ctx context.Context, target Target, callerID int64, file Upload, commit CommitFunc) (*FileRecord, error) {
	s, err := o.stage(ctx, target, callerID, file)
	if err != nil {
		return nil, err
	}
	return o.commit(ctx, s, commit)
}

// uploadStagedInParallel validates and transfers all files on a bounded pool, then
// commits them in input order up to the first file that failed.
func (o *Orchestrator) uploadStagedInParallel(ctx context.Context, target Target, callerID int64, files []Upload, commit CommitFunc) *UploadResult {
	stagedFiles := make([]*staged, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(o.limits.Concurrency)
	for i := range files {
		g.Go(func() error {
			stagedFiles[i], errs[i] = o.stage(ctx, target, callerID, files[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &UploadResult{Files: make([]FileRecord, 0, len(files))}
	for i := range files {
		err := errs[i]
		if err == nil {
			var rec *FileRecord
			rec, err = o.commit(ctx, stagedFiles[i], commit)
			if err == nil {
				result.Files = append(result.Files, *rec)
				continue
			}
		}
		result.Failure = &Failure{Index: i, Name: files[i].Name, Err: err}
		if left := countStaged(stagedFiles[i+1:]); left > 0 {
			o.log.Warn().Int("orphans", left).Msg("batch stopped with transferred but uncommitted files")
		}
		break
	}
	return result
}

func countStaged(s []*staged) int {
	n := 0
	for _, x := range s {
		if x != nil {
			n++
		}
	}
	return n
}

// stage validates file, mints its key, obtains a presigned URL and transfers the bytes.
// Nothing is persisted.
func (o *Orchestrator) stage(ctx context.Context, target Target, callerID int64, file Upload) (*staged, error) {
	category := string(target.Category)

	mimeType, err := o.validate(target, file)
	if err != nil {
		metrics.RecordUpload(category, "invalid", 0)
		return nil, err
	}

	key := o.keys.Generate(target, file.Name)
	size := int64(len(file.Data))

	req := presign.PutRequest{
		Key:         key,
		ContentType: mimeType,
		ContentSize: size,
		UploaderID:  callerID,
		Category:    category,
	}
	if target.Category == CategoryPostFile {
		parentID := target.ID
		req.ParentID = &parentID
	}

	ticket, err := o.issuer.IssuePresignedPut(ctx, req)
	if err != nil {
		metrics.RecordUpload(category, "presign_error", 0)
		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	if err := o.transport.TransferBytes(ctx, ticket.UploadURL, mimeType, file.Data); err != nil {
		metrics.RecordUpload(category, "transfer_error", 0)
		return nil, fmt.Errorf("%w: %w", ErrUploadTransport, err)
	}

	rec := &FileRecord{
		OriginalName: file.Name,
		MimeType:     mimeType,
		SizeBytes:    size,
		StorageKey:   key,
		StorageURL:   ticket.FileURL,
		Category:     target.Category,
		UploaderID:   callerID,
	}
	parentID := target.ID
	if target.Category == CategoryPostFile {
		rec.PostID = &parentID
	} else {
		rec.UserID = &parentID
	}
	return &staged{record: rec}, nil
}

func (o *Orchestrator) commit(ctx context.Context, s *staged, commit CommitFunc) (*FileRecord, error) {
	category := string(s.record.Category)
	rec, err := commit(ctx, s.record)
	if err != nil {
		metrics.RecordUpload(category, "commit_error", 0)
		o.log.Error().Err(err).Str("key", s.record.StorageKey).Msg("commit failed after transfer")
		return nil, err
	}
	metrics.RecordUpload(category, "success", rec.SizeBytes)
	o.log.Info().
		Int64("file_id", rec.ID).
		Str("key", rec.StorageKey).
		Int64("size", rec.SizeBytes).
		Int64("uploader_id", rec.UploaderID).
		Msg("file committed")
	return rec, nil
}

// validate checks file and returns the MIME type to record. A reported type is kept;
// an absent or generic one is sniffed from the bytes.
func (o *Orchestrator) validate(target Target, file Upload) (string, error) {
	if len(file.Data) == 0 {
		return "", fmt.Errorf("%w: file %q is empty", ErrInvalidInput, file.Name)
	}
	if o.limits.MaxFileBytes > 0 && int64(len(file.Data)) > o.limits.MaxFileBytes {
		return "", fmt.Errorf("%w: file %q exceeds %d bytes", ErrInvalidInput, file.Name, o.limits.MaxFileBytes)
	}

	mimeType := strings.TrimSpace(file.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(file.Data).String()
	}

	if target.Category == CategoryProfile && !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return "", fmt.Errorf("%w: profile image must be an image, got %q", ErrInvalidInput, mimeType)
	}
	return mimeType, nil
}
