package attachment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/post"
	"github.com/commboard/service/internal/presign"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*FileRecord
	keys    map[string]bool
	writes  int
	// failCreate makes the next Create fail.
	failCreate error
}

func newMemStore() *memStore {
	return &memStore{records: map[int64]*FileRecord{}, keys: map[string]bool{}}
}

func (s *memStore) insert(rec *FileRecord) (*FileRecord, error) {
	if s.keys[rec.StorageKey] {
		return nil, ErrKeyConflict
	}
	s.nextID++
	cp := *rec
	cp.ID = s.nextID
	cp.CreatedAt = time.Unix(1700000000+s.nextID, 0).UTC()
	s.records[cp.ID] = &cp
	s.keys[cp.StorageKey] = true
	s.writes++
	out := cp
	return &out, nil
}

func (s *memStore) Create(_ context.Context, rec *FileRecord) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		err := s.failCreate
		s.failCreate = nil
		return nil, err
	}
	return s.insert(rec)
}

func (s *memStore) GetLive(_ context.Context, id int64) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.DeletedAt != nil {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (s *memStore) ListByPost(_ context.Context, postID int64) ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FileRecord
	for _, rec := range s.records {
		if rec.DeletedAt == nil && rec.PostID != nil && *rec.PostID == postID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) tombstone(id int64) error {
	rec, ok := s.records[id]
	if !ok || rec.DeletedAt != nil {
		return fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	now := time.Now()
	rec.DeletedAt = &now
	s.writes++
	return nil
}

func (s *memStore) SoftDelete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tombstone(id)
}

func (s *memStore) Swap(_ context.Context, oldID int64, rec *FileRecord) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tombstone(oldID); err != nil {
		return nil, err
	}
	return s.insert(rec)
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// fakeIssuer plays the issuing service.
type fakeIssuer struct {
	mu     sync.Mutex
	puts   []presign.PutRequest
	gets   []presign.GetRequest
	putErr error
	getErr error
	getSeq int
}

func (f *fakeIssuer) IssuePresignedPut(_ context.Context, req presign.PutRequest) (*presign.PutTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, req)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &presign.PutTicket{
		UploadURL:     "http://store.test/upload/" + req.Key,
		FileURL:       "http://cdn.test/" + req.Key,
		Key:           req.Key,
		ExpireSeconds: 300,
	}, nil
}

func (f *fakeIssuer) IssuePresignedGet(_ context.Context, req presign.GetRequest) (*presign.GetTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, req)
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.getSeq++
	return &presign.GetTicket{
		DownloadURL:   fmt.Sprintf("http://store.test/get/%s?sig=%d", req.Key, f.getSeq),
		Key:           req.Key,
		ExpireSeconds: 60,
	}, nil
}

func (f *fakeIssuer) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeIssuer) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gets)
}

// fakeTransport records transfers; failFor makes transfers of matching bodies fail.
type fakeTransport struct {
	mu        sync.Mutex
	transfers []string
	types     []string
	failFor   func(body []byte) bool
}

var errStoreDown = errors.New("object store returned status 503")

func (f *fakeTransport) TransferBytes(_ context.Context, uploadURL, contentType string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, uploadURL)
	f.types = append(f.types, contentType)
	if f.failFor != nil && f.failFor(body) {
		return errStoreDown
	}
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

// postOwners maps post ids to authors.
type postOwners map[int64]int64

func (p postOwners) OwnerID(_ context.Context, postID int64) (int64, error) {
	owner, ok := p[postID]
	if !ok {
		return 0, post.ErrNotFound
	}
	return owner, nil
}

type fixture struct {
	store     *memStore
	issuer    *fakeIssuer
	transport *fakeTransport
	guard     *Guard
	orch      *Orchestrator
	svc       *Service
}

const (
	postID   int64 = 42
	authorID int64 = 7
	otherID  int64 = 8
)

func newFixture(limits Limits) *fixture {
	f := &fixture{
		store:     newMemStore(),
		issuer:    &fakeIssuer{},
		transport: &fakeTransport{},
	}
	f.guard = NewGuard(postOwners{postID: authorID})
	f.orch = NewOrchestrator(f.guard, NewKeyGenerator(), f.issuer, f.transport, limits, zerolog.Nop())
	f.svc = NewService(f.store, f.orch, f.guard, f.issuer, zerolog.Nop())
	return f
}

func defaultLimits() Limits {
	return Limits{MaxFileBytes: 1 << 20, MaxFiles: 10, Concurrency: 1}
}
