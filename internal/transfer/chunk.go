package transfer

import (
	"encoding/base64"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/BioHazard786/Warpchat/internal/protocol"
)

const (
	// DefaultChunkSize is the number of payload characters per file-chunk message.
	DefaultChunkSize = 16 * 1024

	// MaxFileSize is the largest source file accepted for sending (15 MiB).
	MaxFileSize = 15 * 1024 * 1024

	// MinChunkSize is the smallest chunk size a sender may be configured with.
	MinChunkSize = 1024

	// maxMIMELen bounds the media type in a data URL prefix (RFC 6838).
	maxMIMELen = 255
)

var (
	// MaxPayloadSize is the longest data URL a MaxFileSize file encodes to.
	MaxPayloadSize = len("data:") + maxMIMELen + len(";base64,") + base64.StdEncoding.EncodedLen(MaxFileSize)

	// MaxChunks is the largest chunk total a receiver accepts.
	MaxChunks = ChunkCount(MaxPayloadSize, MinChunkSize)
)

// ChunkCount returns ceil(length / chunkSize).
func ChunkCount(length, chunkSize int) int {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return (length + chunkSize - 1) / chunkSize
}

// Split slices payload into file-chunk messages of chunkSize characters.
// Chunk i covers payload[i*chunkSize : (i+1)*chunkSize]. Chunks are produced
// lazily so callers can report progress between sends.
func Split(name, fileType, payload string, chunkSize int) iter.Seq[protocol.FileChunk] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	total := ChunkCount(len(payload), chunkSize)

	return func(yield func(protocol.FileChunk) bool) {
		for i := range total {
			start := i * chunkSize
			end := min(start+chunkSize, len(payload))
			chunk := protocol.FileChunk{
				Type:     protocol.TypeFileChunk,
				FileType: fileType,
				Name:     name,
				Chunk:    payload[start:end],
				Index:    i,
				Total:    total,
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

type assembly struct {
	fileType string
	total    int
	chunks   []string
	filled   []bool
	received int
	size     int
}

// Assembler rebuilds payloads from file-chunk messages. Chunks may arrive in
// any order and may repeat; concatenation is by index.
type Assembler struct {
	mu        sync.Mutex
	transfers map[string]*assembly
}

func NewAssembler() *Assembler {
	return &Assembler{transfers: make(map[string]*assembly)}
}

// Absorb stores one chunk. When the last missing index arrives it returns the
// joined payload with complete set, and forgets the transfer. A TransferError
// drops only the affected transfer.
func (a *Assembler) Absorb(chunk protocol.FileChunk) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if chunk.Total <= 0 || chunk.Total > MaxChunks {
		delete(a.transfers, chunk.Name)
		return "", false, WrapFileError("absorb", chunk.Name, ErrInvalidTotal, fmt.Sprintf("total=%d", chunk.Total))
	}

	st, ok := a.transfers[chunk.Name]
	if !ok {
		st = &assembly{
			fileType: chunk.FileType,
			total:    chunk.Total,
			chunks:   make([]string, chunk.Total),
			filled:   make([]bool, chunk.Total),
		}
		a.transfers[chunk.Name] = st
	}

	if chunk.Total != st.total {
		delete(a.transfers, chunk.Name)
		return "", false, WrapFileError("absorb", chunk.Name, ErrTotalMismatch, fmt.Sprintf("had %d, got %d", st.total, chunk.Total))
	}
	if chunk.Index < 0 || chunk.Index >= st.total {
		delete(a.transfers, chunk.Name)
		return "", false, WrapFileError("absorb", chunk.Name, ErrIndexOutOfRange, fmt.Sprintf("index=%d total=%d", chunk.Index, st.total))
	}
	if chunk.Chunk == "" {
		delete(a.transfers, chunk.Name)
		return "", false, WrapFileError("absorb", chunk.Name, ErrEmptyChunk, fmt.Sprintf("index=%d", chunk.Index))
	}

	size := st.size - len(st.chunks[chunk.Index]) + len(chunk.Chunk)
	if size > MaxPayloadSize {
		delete(a.transfers, chunk.Name)
		return "", false, WrapFileError("absorb", chunk.Name, ErrFileTooLarge, fmt.Sprintf("%d characters", size))
	}

	st.size = size
	st.chunks[chunk.Index] = chunk.Chunk
	if !st.filled[chunk.Index] {
		st.filled[chunk.Index] = true
		st.received++
	}

	if st.received < st.total {
		return "", false, nil
	}

	delete(a.transfers, chunk.Name)
	return strings.Join(st.chunks, ""), true, nil
}

// Progress reports how many distinct chunks of name have arrived.
func (a *Assembler) Progress(name string) (received, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.transfers[name]
	if !ok {
		return 0, 0
	}
	return st.received, st.total
}

// Pending counts in-flight transfers.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.transfers)
}

// Reset discards every partial transfer.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.transfers)
}
