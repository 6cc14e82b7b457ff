package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
)

type Reader struct {
	file     *os.File
	filePath string
	header   SnapshotHeader
	dict     []DictEntry
	postBase int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid snapshot file: bad magic bytes %x", magic)
	}
	header := SnapshotHeader{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:   binary.LittleEndian.Uint32(headerBytes[8:12]),
		RecipeCount: binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:    int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		CreatedAt:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	if err := checkBounds(header, info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(dictBytes) {
		f.Close()
		return nil, fmt.Errorf("dictionary checksum mismatch: %x", sum)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// Search returns the ids stored under token, or nil if it is absent.
func (r *Reader) Search(token string) ([]int, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Token >= token
	})
	if idx >= len(r.dict) || r.dict[idx].Token != token {
		return nil, nil
	}
	return r.readPostings(r.dict[idx])
}

// ReadAll decodes every row of the snapshot into a token→ids map.
func (r *Reader) ReadAll() (map[string][]int, error) {
	entries := make(map[string][]int, len(r.dict))
	for _, entry := range r.dict {
		ids, err := r.readPostings(entry)
		if err != nil {
			return nil, err
		}
		entries[entry.Token] = ids
	}
	return entries, nil
}

// checkBounds rejects headers whose sections fall outside a file of size
// bytes, before anything is allocated from them.
func checkBounds(h SnapshotHeader, size int64) error {
	inFile := func(off, n int64) bool {
		return off >= int64(HeaderSize) && n >= 0 && off <= size && n <= size-off
	}
	if !inFile(h.DictOffset, h.DictSize) || h.DictSize > size-h.DictOffset-int64(FooterSize) {
		return fmt.Errorf("corrupt snapshot: dictionary [%d,+%d) outside %d-byte file", h.DictOffset, h.DictSize, size)
	}
	if !inFile(h.PostOffset, h.PostSize) {
		return fmt.Errorf("corrupt snapshot: postings [%d,+%d) outside %d-byte file", h.PostOffset, h.PostSize, size)
	}
	return nil
}

func (r *Reader) readPostings(entry DictEntry) ([]int, error) {
	if entry.PostOffset < 0 || entry.PostLen < 0 || entry.PostOffset > r.header.PostSize ||
		int64(entry.PostLen) > r.header.PostSize-entry.PostOffset {
		return nil, fmt.Errorf("corrupt snapshot: postings for %q outside postings section", entry.Token)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Token, err)
	}
	var ids []int
	if err := json.Unmarshal(postingsBytes, &ids); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Token, err)
	}
	return ids, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) RecipeCount() uint32 {
	return r.header.RecipeCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}
