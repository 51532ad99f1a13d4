package pagealloc

import (
	"encoding/binary"
	"fmt"

	"github.com/veldt-labs/pagemap/common"
)

// BackendKind is the discriminant of the serialized forms of allocators
// and page deltas. The byte values are part of the wire format.
type BackendKind byte

const (
	// BackendEmpty tags the state of a machine that has no pages yet.
	BackendEmpty BackendKind = 0
	// BackendHeap tags data of the heap-based backend.
	BackendHeap BackendKind = 1
	// BackendMmap tags data of the memory-mapping-based backend.
	BackendMmap BackendKind = 2
)

// ErrInvalidEncoding reports serialized bytes that do not form a valid
// allocator or page-delta record. Unlike a backend mismatch, malformed
// bytes are a runtime condition (e.g. a truncated checkpoint file) and are
// reported as an ordinary error.
const ErrInvalidEncoding = common.ConstError("invalid page data encoding")

// MappingContext carries what is needed to reopen or share the backing
// mapping of a mapped allocator: the descriptor of the memory file and the
// mapped length. The descriptor is only meaningful within the process
// holding it or after being passed to a peer via descriptor transfer.
// Contexts produced by Serialize own their descriptor and are released
// with Close; contexts inside page-delta records borrow the descriptor of
// the allocator that produced them.
type MappingContext struct {
	FileDescriptor int32
	FileSize       int64
}

// AllocatorSerialization is the persisted identity of a page allocator:
// the backend kind plus, for the mapped backend only, its mapping context.
type AllocatorSerialization struct {
	Kind    BackendKind
	Context MappingContext // only set for BackendMmap
}

// PageRecord is one serialized page of a heap-backend delta.
type PageRecord struct {
	Index PageIndex
	Bytes PageBytes
}

// MappedPageRecord locates one page of a mapped-backend delta within the
// mapping described by the accompanying context.
type MappedPageRecord struct {
	Index  PageIndex
	Offset int64
}

// PageDeltaSerialization is the persisted form of a batch of indexed
// pages. The heap backend carries full page contents; the mapped backend
// carries its mapping context plus per-page offsets, avoiding byte copies.
type PageDeltaSerialization struct {
	Kind    BackendKind
	Pages   []PageRecord       // only set for BackendHeap
	Context MappingContext     // only set for BackendMmap
	Offsets []MappedPageRecord // only set for BackendMmap
}

const (
	allocatorHeaderSize = 1
	mappingContextSize  = 4 + 8
	deltaCountSize      = 4
	heapRecordSize      = 8 + PageSize
	mappedRecordSize    = 8 + 8
)

// ToBytes encodes the allocator identity into its wire form: a one-byte
// kind tag, followed by the mapping context for the mapped backend.
func (s AllocatorSerialization) ToBytes() []byte {
	res := []byte{byte(s.Kind)}
	if s.Kind == BackendMmap {
		res = appendMappingContext(res, s.Context)
	}
	return res
}

// AllocatorFromBytes decodes the wire form produced by
// AllocatorSerialization.ToBytes.
func AllocatorFromBytes(data []byte) (AllocatorSerialization, error) {
	if len(data) < allocatorHeaderSize {
		return AllocatorSerialization{}, fmt.Errorf("%w: empty allocator record", ErrInvalidEncoding)
	}
	res := AllocatorSerialization{Kind: BackendKind(data[0])}
	rest := data[allocatorHeaderSize:]
	switch res.Kind {
	case BackendEmpty, BackendHeap:
		if len(rest) != 0 {
			return AllocatorSerialization{}, fmt.Errorf("%w: %d trailing bytes in allocator record", ErrInvalidEncoding, len(rest))
		}
	case BackendMmap:
		ctx, rest, err := readMappingContext(rest)
		if err != nil {
			return AllocatorSerialization{}, err
		}
		if len(rest) != 0 {
			return AllocatorSerialization{}, fmt.Errorf("%w: %d trailing bytes in allocator record", ErrInvalidEncoding, len(rest))
		}
		res.Context = ctx
	default:
		return AllocatorSerialization{}, fmt.Errorf("%w: unknown backend tag %d", ErrInvalidEncoding, data[0])
	}
	return res, nil
}

// ToBytes encodes the page delta into its wire form: a one-byte kind tag,
// followed by a record count and fixed-size records for the heap backend,
// or the mapping context, a record count, and index/offset pairs for the
// mapped backend.
func (s PageDeltaSerialization) ToBytes() []byte {
	switch s.Kind {
	case BackendEmpty:
		return []byte{byte(BackendEmpty)}
	case BackendHeap:
		res := make([]byte, 0, allocatorHeaderSize+deltaCountSize+len(s.Pages)*heapRecordSize)
		res = append(res, byte(BackendHeap))
		res = binary.BigEndian.AppendUint32(res, uint32(len(s.Pages)))
		for i := range s.Pages {
			res = binary.BigEndian.AppendUint64(res, uint64(s.Pages[i].Index))
			res = append(res, s.Pages[i].Bytes[:]...)
		}
		return res
	case BackendMmap:
		res := make([]byte, 0, allocatorHeaderSize+mappingContextSize+deltaCountSize+len(s.Offsets)*mappedRecordSize)
		res = append(res, byte(BackendMmap))
		res = appendMappingContext(res, s.Context)
		res = binary.BigEndian.AppendUint32(res, uint32(len(s.Offsets)))
		for _, record := range s.Offsets {
			res = binary.BigEndian.AppendUint64(res, uint64(record.Index))
			res = binary.BigEndian.AppendUint64(res, uint64(record.Offset))
		}
		return res
	}
	panic(fmt.Errorf("%w: cannot encode delta of backend kind %d", ErrBackendMismatch, s.Kind))
}

// PageDeltaFromBytes decodes the wire form produced by
// PageDeltaSerialization.ToBytes.
func PageDeltaFromBytes(data []byte) (PageDeltaSerialization, error) {
	if len(data) < allocatorHeaderSize {
		return PageDeltaSerialization{}, fmt.Errorf("%w: empty delta record", ErrInvalidEncoding)
	}
	res := PageDeltaSerialization{Kind: BackendKind(data[0])}
	rest := data[allocatorHeaderSize:]
	switch res.Kind {
	case BackendEmpty:
		if len(rest) != 0 {
			return PageDeltaSerialization{}, fmt.Errorf("%w: %d trailing bytes in empty delta", ErrInvalidEncoding, len(rest))
		}
	case BackendHeap:
		count, rest, err := readCount(rest)
		if err != nil {
			return PageDeltaSerialization{}, err
		}
		if len(rest) != count*heapRecordSize {
			return PageDeltaSerialization{}, fmt.Errorf("%w: heap delta of %d pages needs %d payload bytes, got %d",
				ErrInvalidEncoding, count, count*heapRecordSize, len(rest))
		}
		res.Pages = make([]PageRecord, count)
		for i := 0; i < count; i++ {
			record := rest[i*heapRecordSize:]
			res.Pages[i].Index = PageIndex(binary.BigEndian.Uint64(record))
			copy(res.Pages[i].Bytes[:], record[8:heapRecordSize])
		}
	case BackendMmap:
		ctx, rest, err := readMappingContext(rest)
		if err != nil {
			return PageDeltaSerialization{}, err
		}
		count, rest, err := readCount(rest)
		if err != nil {
			return PageDeltaSerialization{}, err
		}
		if len(rest) != count*mappedRecordSize {
			return PageDeltaSerialization{}, fmt.Errorf("%w: mapped delta of %d pages needs %d payload bytes, got %d",
				ErrInvalidEncoding, count, count*mappedRecordSize, len(rest))
		}
		res.Context = ctx
		res.Offsets = make([]MappedPageRecord, count)
		for i := 0; i < count; i++ {
			record := rest[i*mappedRecordSize:]
			res.Offsets[i].Index = PageIndex(binary.BigEndian.Uint64(record))
			res.Offsets[i].Offset = int64(binary.BigEndian.Uint64(record[8:]))
		}
	default:
		return PageDeltaSerialization{}, fmt.Errorf("%w: unknown backend tag %d", ErrInvalidEncoding, data[0])
	}
	return res, nil
}

func appendMappingContext(res []byte, ctx MappingContext) []byte {
	res = binary.BigEndian.AppendUint32(res, uint32(ctx.FileDescriptor))
	res = binary.BigEndian.AppendUint64(res, uint64(ctx.FileSize))
	return res
}

func readMappingContext(data []byte) (MappingContext, []byte, error) {
	if len(data) < mappingContextSize {
		return MappingContext{}, nil, fmt.Errorf("%w: truncated mapping context", ErrInvalidEncoding)
	}
	ctx := MappingContext{
		FileDescriptor: int32(binary.BigEndian.Uint32(data)),
		FileSize:       int64(binary.BigEndian.Uint64(data[4:])),
	}
	if ctx.FileSize < 0 {
		return MappingContext{}, nil, fmt.Errorf("%w: negative mapping size %d", ErrInvalidEncoding, ctx.FileSize)
	}
	return ctx, data[mappingContextSize:], nil
}

func readCount(data []byte) (int, []byte, error) {
	if len(data) < deltaCountSize {
		return 0, nil, fmt.Errorf("%w: truncated record count", ErrInvalidEncoding)
	}
	return int(binary.BigEndian.Uint32(data)), data[deltaCountSize:], nil
}
