// Package storage persists admin identity records and their face samples.
// The whole record set lives in memory and is flushed to two blobs on disk
// after every mutation. Blobs can be encrypted at rest using NaCl secretbox.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/recognition"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32

	adminBlob   = "admin_faces"
	samplesBlob = "face_encodings"

	// meanTolerance bounds the componentwise drift accepted between a
	// record's embedding and the mean of its samples.
	meanTolerance = 1e-5
)

// Record is one enrolled admin.
type Record struct {
	ID           int64
	Name         string
	Embedding    recognition.Embedding
	Samples      []recognition.Embedding
	RegisteredAt time.Time
}

// Summary is the listing view of a record.
type Summary struct {
	ID           int64     `json:"admin_id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
	NumSamples   int       `json:"num_samples"`
}

// adminEntry is the on-disk form of a record without its raw samples.
type adminEntry struct {
	ID           int64                 `json:"admin_id"`
	Name         string                `json:"name"`
	Embedding    recognition.Embedding `json:"embedding"`
	NumSamples   int                   `json:"num_samples"`
	RegisteredAt time.Time             `json:"registered_at"`
}

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("admin not found")

// ErrDuplicateID is returned when inserting an id that already exists.
var ErrDuplicateID = errors.New("admin id already registered")

// ErrInvalidRecord is returned for records that break the record invariants.
var ErrInvalidRecord = errors.New("invalid record")

// ErrStorageCorruption is returned when an existing blob cannot be read back.
var ErrStorageCorruption = errors.New("face database corrupt")

// ErrStorageWrite is returned when the record set cannot be flushed.
var ErrStorageWrite = errors.New("failed to write face database")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// NewRecord builds a record whose embedding is the mean of samples.
func NewRecord(id int64, name string, samples []recognition.Embedding, registeredAt time.Time) (Record, error) {
	mean, err := recognition.Mean(samples)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	copied := make([]recognition.Embedding, len(samples))
	for i, s := range samples {
		copied[i] = s.Clone()
	}

	return Record{
		ID:           id,
		Name:         name,
		Embedding:    mean,
		Samples:      copied,
		RegisteredAt: registeredAt,
	}, nil
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	mean, err := recognition.Mean(r.Samples)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if len(mean) != len(r.Embedding) {
		return fmt.Errorf("%w: embedding has %d dimensions, samples have %d", ErrInvalidRecord, len(r.Embedding), len(mean))
	}
	for i := range mean {
		if math.Abs(float64(mean[i]-r.Embedding[i])) > meanTolerance {
			return fmt.Errorf("%w: embedding is not the mean of its samples", ErrInvalidRecord)
		}
	}
	return nil
}

// Summary returns the listing view of the record.
func (r Record) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Name:         r.Name,
		RegisteredAt: r.RegisteredAt,
		NumSamples:   len(r.Samples),
	}
}

func (r Record) clone() Record {
	out := r
	out.Embedding = r.Embedding.Clone()
	out.Samples = make([]recognition.Embedding, len(r.Samples))
	for i, s := range r.Samples {
		out.Samples[i] = s.Clone()
	}
	return out
}

// Store holds the record set in insertion order.
type Store struct {
	mu                sync.RWMutex
	dataDir           string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte

	records []Record
	index   map[int64]int

	writeFile func(path string, data []byte, perm os.FileMode) error
}

// NewStore creates an empty store rooted at dataDir without loading it.
func NewStore(dataDir string, encryptionEnabled bool) (*Store, error) {
	s := &Store{
		dataDir:           dataDir,
		encryptionEnabled: encryptionEnabled,
		index:             make(map[int64]int),
		writeFile:         writeFileAtomic,
	}

	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		s.encryptionKey = key
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return s, nil
}

// Open creates a store and loads any existing record set.
func Open(dataDir string, encryptionEnabled bool) (*Store, error) {
	s, err := NewStore(dataDir, encryptionEnabled)
	if err != nil {
		return nil, err
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted data to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("faceadmin-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

func (s *Store) blobPath(name string) string {
	ext := ".json"
	if s.encryptionEnabled {
		ext = ".enc"
	}
	return filepath.Join(s.dataDir, name+ext)
}

// AdminPath returns the path of the admin records blob.
func (s *Store) AdminPath() string {
	return s.blobPath(adminBlob)
}

// SamplesPath returns the path of the raw samples blob.
func (s *Store) SamplesPath() string {
	return s.blobPath(samplesBlob)
}

// Load replaces the in-memory set with the content on disk. Missing blobs
// yield an empty set; blobs that exist but cannot be read back fail with
// ErrStorageCorruption.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var admins []adminEntry
	adminFound, err := s.readBlob(s.AdminPath(), &admins)
	if err != nil {
		return err
	}

	samples := make(map[int64][]recognition.Embedding)
	if _, err := s.readBlob(s.SamplesPath(), &samples); err != nil {
		return err
	}

	records := make([]Record, 0, len(admins))
	index := make(map[int64]int, len(admins))
	for _, a := range admins {
		if _, dup := index[a.ID]; dup {
			return fmt.Errorf("%w: duplicate admin id %d", ErrStorageCorruption, a.ID)
		}
		rec := Record{
			ID:           a.ID,
			Name:         a.Name,
			Embedding:    a.Embedding,
			Samples:      samples[a.ID],
			RegisteredAt: a.RegisteredAt,
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: admin %d: %v", ErrStorageCorruption, a.ID, err)
		}
		index[a.ID] = len(records)
		records = append(records, rec)
		delete(samples, a.ID)
	}

	for id := range samples {
		logging.Component("storage").Warnf("Ignoring orphan samples for admin %d", id)
	}

	s.records = records
	s.index = index

	if adminFound {
		logging.Component("storage").Infof("Loaded %d admin faces from database", len(records))
	} else {
		logging.Component("storage").Debugf("No face database at %s, starting empty", s.dataDir)
	}
	return nil
}

// readBlob decodes path into v. found is false when the file does not exist.
func (s *Store) readBlob(path string, v interface{}) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return true, fmt.Errorf("%w: read %s: %v", ErrStorageCorruption, filepath.Base(path), err)
	}

	if s.encryptionEnabled {
		data, err = s.decrypt(data)
		if err != nil {
			return true, fmt.Errorf("%w: decrypt %s: %v", ErrStorageCorruption, filepath.Base(path), err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%w: parse %s: %v", ErrStorageCorruption, filepath.Base(path), err)
	}
	return true, nil
}

// Save flushes the whole record set to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked(true)
}

// saveLocked writes both blobs. samplesFirst orders the writes so that a
// crash between the two renames only ever leaves orphan samples behind:
// inserts write samples first, removals write admins first.
func (s *Store) saveLocked(samplesFirst bool) error {
	admins := make([]adminEntry, len(s.records))
	samples := make(map[int64][]recognition.Embedding, len(s.records))
	for i, r := range s.records {
		admins[i] = adminEntry{
			ID:           r.ID,
			Name:         r.Name,
			Embedding:    r.Embedding,
			NumSamples:   len(r.Samples),
			RegisteredAt: r.RegisteredAt,
		}
		samples[r.ID] = r.Samples
	}

	writes := []func() error{
		func() error { return s.writeBlob(s.SamplesPath(), samples) },
		func() error { return s.writeBlob(s.AdminPath(), admins) },
	}
	if !samplesFirst {
		writes[0], writes[1] = writes[1], writes[0]
	}

	for _, write := range writes {
		if err := write(); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
	}

	logging.Component("storage").Debugf("Saved %d admin faces", len(s.records))
	return nil
}

func (s *Store) writeBlob(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	if s.encryptionEnabled {
		data, err = s.encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
	}

	return s.writeFile(path, data, 0600)
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Insert adds a new record and persists the set. On a write failure the
// record is dropped from memory again and ErrStorageWrite is returned.
func (s *Store) Insert(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[rec.ID]; exists {
		return ErrDuplicateID
	}

	s.records = append(s.records, rec.clone())
	s.index[rec.ID] = len(s.records) - 1

	if err := s.saveLocked(true); err != nil {
		s.records = s.records[:len(s.records)-1]
		delete(s.index, rec.ID)
		return err
	}

	logging.Component("storage").Infof("Stored admin %d (%s) with %d samples", rec.ID, rec.Name, len(rec.Samples))
	return nil
}

// Remove deletes the record with id and persists the set. On a write
// failure the record is restored in memory and both blobs are rewritten,
// since the admin blob may already have been replaced.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}

	previous := s.records
	next := make([]Record, 0, len(previous)-1)
	next = append(next, previous[:pos]...)
	next = append(next, previous[pos+1:]...)

	s.records = next
	s.reindex()

	if err := s.saveLocked(false); err != nil {
		s.records = previous
		s.reindex()
		if rerr := s.saveLocked(true); rerr != nil {
			logging.Component("storage").WithError(rerr).Errorf("Failed to restore admin %d on disk", id)
		}
		return err
	}

	logging.Component("storage").Infof("Deleted admin %d", id)
	return nil
}

func (s *Store) reindex() {
	s.index = make(map[int64]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

// Exists reports whether id is enrolled.
func (s *Store) Exists(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Get returns a copy of the record with id.
func (s *Store) Get(id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[pos].clone(), nil
}

// Len returns the number of enrolled admins.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List returns summaries in insertion order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, len(s.records))
	for i, r := range s.records {
		out[i] = r.Summary()
	}
	return out
}

// Snapshot returns a deep copy of all records in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// encrypt encrypts data using NaCl secretbox.
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &s.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
