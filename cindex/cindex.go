// Package cindex implements the combined index container (§4.5): a single
// blob holding a header, a padded namespace, a directory of up to five
// optional sections (POS, OSP, FTS, GEO, VEC), the section payloads
// themselves, and a CRC32-guarded footer. Readers decode it in two tiers —
// a small header fetch followed by range-planned section fetches — so an
// edge node never has to download the whole file to answer one query.
package cindex

import (
	"time"

	"github.com/arloliu/graphdb-edge/compress"
	"github.com/arloliu/graphdb-edge/endian"
	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/varint"
)

const (
	// HeaderSize is the fixed on-disk size of the container header.
	HeaderSize = 64
	// DirectoryEntrySize is the fixed on-disk size of one directory entry.
	DirectoryEntrySize = 32
	// FooterSize is the fixed on-disk size of the trailing footer.
	FooterSize = 16

	// FormatVersion is the current container format version.
	FormatVersion uint16 = 1

	// DefaultMaxNamespaceLen and DefaultMaxIndexCount bound the header-fetch
	// byte range a caller requests before it has parsed anything (§4.5).
	DefaultMaxNamespaceLen = 256
	DefaultMaxIndexCount   = 10

	// DefaultCoalesceGap is the default maximum byte gap between two section
	// ranges for them to be merged into one range request (§4.5).
	DefaultCoalesceGap = 4096
)

var headerMagic = [4]byte{'G', 'I', 'D', 'X'}
var footerMagic = [4]byte{'X', 'D', 'I', 'G'}

// Section is one named, optionally compressed section to include in a
// container being encoded.
type Section struct {
	Type        format.SectionType
	Data        []byte
	Compression format.CompressionType
}

// DirEntry is one decoded directory entry: where a section lives in the
// container and how it is compressed.
type DirEntry struct {
	Type             format.SectionType
	Compression      format.CompressionType
	Flags            uint16
	Offset           uint64
	CompressedSize   uint64
	UncompressedSize uint64
}

// Container is a fully decoded header + directory, without section payloads
// loaded (those are fetched on demand via FetchPlan + DecodeSection).
type Container struct {
	Version   uint16
	Flags     uint16
	Namespace string
	TotalSize uint64
	CreatedAt time.Time
	Entries   []DirEntry
}

// EncodeOptions controls which optional sections an Encode call includes.
// The VEC section is opt-in by design (§4.5): a caller must explicitly set
// IncludeVEC even if a VEC Section is present in the input list.
type EncodeOptions struct {
	IncludeVEC bool
}

// Encode serializes namespace and sections into one combined index blob.
// Sections are emitted in the order given. The VEC section is dropped
// unless opts.IncludeVEC is true.
func Encode(namespace string, sections []Section, opts EncodeOptions) ([]byte, error) {
	filtered := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.Type == format.SectionVEC && !opts.IncludeVEC {
			continue
		}
		filtered = append(filtered, s)
	}

	compressed := make([][]byte, len(filtered))
	for i, s := range filtered {
		codec, err := compress.CreateCodec(s.Compression, s.Type.String()+" section")
		if err != nil {
			return nil, err
		}
		out, err := codec.Compress(s.Data)
		if err != nil {
			return nil, err
		}
		compressed[i] = out
	}

	namespacePadded := padTo8(namespace)
	directoryOffset := HeaderSize + len(namespacePadded)
	sectionsOffset := directoryOffset + len(filtered)*DirectoryEntrySize

	entries := make([]DirEntry, len(filtered))
	offset := uint64(sectionsOffset)
	for i, s := range filtered {
		entries[i] = DirEntry{
			Type:             s.Type,
			Compression:      s.Compression,
			Offset:           offset,
			CompressedSize:   uint64(len(compressed[i])),
			UncompressedSize: uint64(len(s.Data)),
		}
		offset += uint64(len(compressed[i]))
	}

	totalSize := int(offset) + FooterSize

	buf := make([]byte, 0, totalSize)
	buf = appendHeader(buf, namespace, len(filtered), uint64(totalSize), time.Now())
	buf = append(buf, namespacePadded...)
	for _, e := range entries {
		buf = appendDirEntry(buf, e)
	}
	for _, c := range compressed {
		buf = append(buf, c...)
	}

	buf = appendFooter(buf)

	return buf, nil
}

func padTo8(namespace string) []byte {
	b := []byte(namespace)
	pad := (8 - len(b)%8) % 8

	return append(b, make([]byte, pad)...)
}

func appendHeader(buf []byte, namespace string, indexCount int, totalSize uint64, createdAt time.Time) []byte {
	start := len(buf)
	buf = append(buf, headerMagic[:]...)
	buf = endian.LE.AppendUint16(buf, FormatVersion)
	buf = endian.LE.AppendUint16(buf, 0) // flags
	buf = endian.LE.AppendUint32(buf, uint32(indexCount))
	buf = endian.LE.AppendUint64(buf, totalSize)
	buf = endian.LE.AppendUint64(buf, uint64(createdAt.UnixMilli()))
	buf = endian.LE.AppendUint16(buf, uint16(len(namespace)))

	reserved := HeaderSize - (len(buf) - start)
	buf = append(buf, make([]byte, reserved)...)

	return buf
}

func appendDirEntry(buf []byte, e DirEntry) []byte {
	start := len(buf)
	buf = append(buf, byte(e.Type), byte(e.Compression))
	buf = endian.LE.AppendUint16(buf, e.Flags)
	buf = endian.LE.AppendUint64(buf, e.Offset)
	buf = endian.LE.AppendUint64(buf, e.CompressedSize)
	buf = endian.LE.AppendUint64(buf, e.UncompressedSize)

	reserved := DirectoryEntrySize - (len(buf) - start)
	buf = append(buf, make([]byte, reserved)...)

	return buf
}

// appendFooter appends the footer to buf. The CRC covers every byte written
// so far including the footer's own magic+version+flags prefix, so it must
// be computed after that prefix is appended but before the CRC field itself
// (§4.5/§6: "covers all bytes from offset 0 up to but not including the CRC
// field").
func appendFooter(buf []byte) []byte {
	buf = append(buf, footerMagic[:]...)
	buf = endian.LE.AppendUint16(buf, FormatVersion)
	buf = endian.LE.AppendUint16(buf, 0) // flags

	crc := varint.CRC32(buf)
	buf = endian.LE.AppendUint32(buf, crc)
	buf = endian.LE.AppendUint32(buf, 0) // reserved

	return buf
}

// DecodeHeader parses the container header and directory out of data, which
// must contain at least the bytes a HeaderFetchRange would have requested.
// It does not validate the footer CRC; callers that have the whole blob
// should call Verify separately.
func DecodeHeader(data []byte) (*Container, error) {
	if len(data) < HeaderSize {
		return nil, errs.ErrTruncated
	}
	if [4]byte(data[0:4]) != headerMagic {
		return nil, errs.ErrInvalidMagicNumber
	}

	version := endian.LE.Uint16(data[4:6])
	if version != FormatVersion {
		return nil, errs.ErrUnsupportedVersion
	}
	flags := endian.LE.Uint16(data[6:8])
	indexCount := endian.LE.Uint32(data[8:12])
	totalSize := endian.LE.Uint64(data[12:20])
	createdAtMs := endian.LE.Uint64(data[20:28])
	namespaceLen := endian.LE.Uint16(data[28:30])

	namespaceStart := HeaderSize
	namespacePaddedLen := int(namespaceLen) + (8-int(namespaceLen)%8)%8
	if len(data) < namespaceStart+namespacePaddedLen+int(indexCount)*DirectoryEntrySize {
		return nil, errs.ErrTruncated
	}
	namespace := string(data[namespaceStart : namespaceStart+int(namespaceLen)])

	dirStart := namespaceStart + namespacePaddedLen
	entries := make([]DirEntry, indexCount)
	for i := 0; i < int(indexCount); i++ {
		base := dirStart + i*DirectoryEntrySize
		entries[i] = DirEntry{
			Type:             format.SectionType(data[base]),
			Compression:      format.CompressionType(data[base+1]),
			Flags:            endian.LE.Uint16(data[base+2 : base+4]),
			Offset:           endian.LE.Uint64(data[base+4 : base+12]),
			CompressedSize:   endian.LE.Uint64(data[base+12 : base+20]),
			UncompressedSize: endian.LE.Uint64(data[base+20 : base+28]),
		}
	}

	if err := validateDirectory(entries, totalSize); err != nil {
		return nil, err
	}

	return &Container{
		Version:   version,
		Flags:     flags,
		Namespace: namespace,
		TotalSize: totalSize,
		CreatedAt: time.UnixMilli(int64(createdAtMs)),
		Entries:   entries,
	}, nil
}

// validateDirectory rejects directories whose entries overlap, run
// backwards, or spill past the container's declared total size, guarding
// against corrupt or hostile directory bytes before any section is fetched.
func validateDirectory(entries []DirEntry, totalSize uint64) error {
	sorted := append([]DirEntry(nil), entries...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Offset < sorted[j-1].Offset; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	for i, e := range sorted {
		end := e.Offset + e.CompressedSize
		if end > totalSize-FooterSize {
			return errs.ErrInconsistentDirectory
		}
		if i > 0 {
			prevEnd := sorted[i-1].Offset + sorted[i-1].CompressedSize
			if e.Offset < prevEnd {
				return errs.ErrDirectoryOverlap
			}
		}
	}

	return nil
}

// HeaderFetchRange returns the byte range [0, n) a caller should request
// before any directory is known, sized from worst-case namespace length and
// index count (§4.5).
func HeaderFetchRange(maxNamespaceLen, maxIndexCount int) (offset, length int) {
	paddedNS := maxNamespaceLen + (8-maxNamespaceLen%8)%8

	return 0, HeaderSize + paddedNS + maxIndexCount*DirectoryEntrySize
}

// Verify recomputes the CRC32 over every byte before the footer's CRC field
// and compares it to the footer's stored value.
func Verify(data []byte) error {
	if len(data) < FooterSize {
		return errs.ErrTruncated
	}
	footerStart := len(data) - FooterSize
	if [4]byte(data[footerStart:footerStart+4]) != footerMagic {
		return errs.ErrInvalidMagicNumber
	}
	wantCRC := endian.LE.Uint32(data[footerStart+8 : footerStart+12])
	gotCRC := varint.CRC32(data[:footerStart+8])
	if wantCRC != gotCRC {
		return errs.ErrChecksumMismatch
	}

	return nil
}

// DecodeSection inflates the section payload at entry using data sliced to
// at least [entry.Offset, entry.Offset+entry.CompressedSize).
func DecodeSection(entry DirEntry, data []byte) ([]byte, error) {
	if uint64(len(data)) < entry.CompressedSize {
		return nil, errs.ErrTruncated
	}
	codec, err := compress.GetCodec(entry.Compression)
	if err != nil {
		return nil, err
	}
	out, err := codec.Decompress(data[:entry.CompressedSize])
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != entry.UncompressedSize {
		return nil, errs.ErrInconsistentDirectory
	}

	return out, nil
}
