package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/sha3"

	"github.com/veldt-labs/pagemap/common"
	"github.com/veldt-labs/pagemap/pagealloc"
)

// Key spaces of the underlying key-value store, distinguished by a one
// byte key prefix.
const (
	checkpointKeySpace byte = 'C' // version -> checkpoint record
	metadataKeySpace   byte = 'M' // store-level metadata
)

const (
	// ErrCorruptedRecord reports a checkpoint record whose digest or
	// version does not match its content. Storage corruption is a runtime
	// condition and reported as an ordinary error.
	ErrCorruptedRecord = common.ConstError("corrupted checkpoint record")

	// ErrNotFound reports a request for a version no checkpoint exists for.
	ErrNotFound = common.ConstError("checkpoint not found")
)

// Store persists serialized page deltas of subsequent state versions. It
// does not decide which pages belong into a delta or when to write one;
// it only stores what the caller assembled, guarded by a content digest.
//
// Records of the mapped backend carry mapping references rather than page
// bytes, so they are only decodable while the referenced mapping is alive;
// durable cross-restart checkpoints use the heap backend. Mapping
// descriptors captured while saving mapped checkpoints are owned by the
// store and released when it is closed.
type Store struct {
	db *leveldb.DB

	mu     sync.Mutex
	shared []pagealloc.MappingContext // descriptors captured from mapped allocators
}

// checkpointRecord is the stored envelope of one checkpoint. The digest
// covers the allocator identity and the delta payload.
type checkpointRecord struct {
	Version   uint64
	Allocator []byte
	Delta     []byte
	Digest    [32]byte
}

// NewStore opens a checkpoint store in the given directory, creating it
// if needed.
func NewStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes a checkpoint of the given delta under the given version,
// serialized through the given allocator. An existing checkpoint of the
// same version is replaced.
func (s *Store) Save(version uint64, allocator pagealloc.PageAllocator, delta *pagealloc.PageDelta) error {
	identity, err := allocator.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize allocator for checkpoint %d: %w", version, err)
	}
	if identity.Kind == pagealloc.BackendMmap {
		// the stored record references this descriptor, so the store keeps
		// it open until Close
		s.mu.Lock()
		s.shared = append(s.shared, identity.Context)
		s.mu.Unlock()
	}
	serializedDelta, err := allocator.SerializePageDelta(delta)
	if err != nil {
		return fmt.Errorf("failed to serialize delta for checkpoint %d: %w", version, err)
	}

	record := checkpointRecord{
		Version:   version,
		Allocator: identity.ToBytes(),
		Delta:     serializedDelta.ToBytes(),
	}
	record.Digest = digestOf(record.Allocator, record.Delta)

	data, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %d: %w", version, err)
	}
	if err := s.db.Put(versionKey(version), data, nil); err != nil {
		return fmt.Errorf("failed to store checkpoint %d: %w", version, err)
	}
	return s.updateLastVersion(version)
}

// Load reads the checkpoint of the given version, verifies its digest,
// and reconstructs its pages through the given allocator. The allocator
// must be of the backend kind the checkpoint was written with; the caller
// can consult LoadAllocatorIdentity to construct a matching one.
func (s *Store) Load(version uint64, allocator pagealloc.PageAllocator) ([]pagealloc.IndexedPage, error) {
	record, err := s.readRecord(version)
	if err != nil {
		return nil, err
	}
	serialized, err := pagealloc.PageDeltaFromBytes(record.Delta)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", version, err)
	}
	return allocator.DeserializePageDelta(serialized)
}

// LoadAllocatorIdentity reads and verifies the checkpoint of the given
// version and provides the identity of the allocator it was written with.
// For mapped checkpoints the embedded descriptor stays owned by the store;
// allocators reconstructed from the identity hold their own duplicate.
func (s *Store) LoadAllocatorIdentity(version uint64) (pagealloc.AllocatorSerialization, error) {
	record, err := s.readRecord(version)
	if err != nil {
		return pagealloc.AllocatorSerialization{}, err
	}
	identity, err := pagealloc.AllocatorFromBytes(record.Allocator)
	if err != nil {
		return pagealloc.AllocatorSerialization{}, fmt.Errorf("checkpoint %d: %w", version, err)
	}
	return identity, nil
}

// Verify re-computes the digest of the checkpoint of the given version
// and reports a mismatch as ErrCorruptedRecord.
func (s *Store) Verify(version uint64) error {
	_, err := s.readRecord(version)
	return err
}

// RecordInfo summarizes one stored checkpoint.
type RecordInfo struct {
	Version    uint64
	Backend    pagealloc.BackendKind
	DeltaBytes int
}

// Stat provides summary information about the checkpoint of the given
// version without reconstructing its pages.
func (s *Store) Stat(version uint64) (RecordInfo, error) {
	record, err := s.readRecord(version)
	if err != nil {
		return RecordInfo{}, err
	}
	identity, err := pagealloc.AllocatorFromBytes(record.Allocator)
	if err != nil {
		return RecordInfo{}, fmt.Errorf("checkpoint %d: %w", version, err)
	}
	return RecordInfo{
		Version:    record.Version,
		Backend:    identity.Kind,
		DeltaBytes: len(record.Delta),
	}, nil
}

// Versions lists the versions of all stored checkpoints in ascending order.
func (s *Store) Versions() ([]uint64, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{checkpointKeySpace}), nil)
	defer iter.Release()

	var res []uint64
	for iter.Next() {
		key := iter.Key()
		if len(key) != 9 {
			return nil, fmt.Errorf("%w: malformed checkpoint key %x", ErrCorruptedRecord, key)
		}
		res = append(res, binary.BigEndian.Uint64(key[1:]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return res, nil
}

// LastVersion provides the highest version ever saved into this store, or
// false if the store is empty.
func (s *Store) LastVersion() (uint64, bool, error) {
	data, err := s.db.Get(lastVersionKey(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read last checkpoint version: %w", err)
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("%w: malformed last-version record", ErrCorruptedRecord)
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// Close flushes and closes the underlying database and releases all
// mapping descriptors captured by saved mapped checkpoints.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := range s.shared {
		if err := s.shared[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.shared = nil
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) GetMemoryFootprint() *common.MemoryFootprint {
	return common.NewMemoryFootprint(unsafe.Sizeof(*s))
}

func (s *Store) readRecord(version uint64) (checkpointRecord, error) {
	data, err := s.db.Get(versionKey(version), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return checkpointRecord{}, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}
	if err != nil {
		return checkpointRecord{}, fmt.Errorf("failed to read checkpoint %d: %w", version, err)
	}
	var record checkpointRecord
	if err := rlp.DecodeBytes(data, &record); err != nil {
		return checkpointRecord{}, fmt.Errorf("%w: version %d: %v", ErrCorruptedRecord, version, err)
	}
	if record.Version != version {
		return checkpointRecord{}, fmt.Errorf("%w: record of version %d stored under version %d",
			ErrCorruptedRecord, record.Version, version)
	}
	if digestOf(record.Allocator, record.Delta) != record.Digest {
		return checkpointRecord{}, fmt.Errorf("%w: digest mismatch for version %d", ErrCorruptedRecord, version)
	}
	return record, nil
}

func (s *Store) updateLastVersion(version uint64) error {
	last, exists, err := s.LastVersion()
	if err != nil {
		return err
	}
	if exists && last >= version {
		return nil
	}
	data := binary.BigEndian.AppendUint64(nil, version)
	if err := s.db.Put(lastVersionKey(), data, nil); err != nil {
		return fmt.Errorf("failed to update last checkpoint version: %w", err)
	}
	return nil
}

func versionKey(version uint64) []byte {
	key := make([]byte, 9)
	key[0] = checkpointKeySpace
	binary.BigEndian.PutUint64(key[1:], version)
	return key
}

func lastVersionKey() []byte {
	return []byte{metadataKeySpace, 'v'}
}

func digestOf(allocator, delta []byte) (digest [32]byte) {
	hasher := sha3.New256()
	hasher.Write(allocator)
	hasher.Write(delta)
	copy(digest[:], hasher.Sum(nil))
	return digest
}
