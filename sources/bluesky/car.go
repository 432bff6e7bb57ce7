package bluesky

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
)

var errTruncated = stderrors.New("car: truncated")

// block is one CAR section: a content identifier and its raw bytes.
type block struct {
	cid  []byte
	data []byte
}

// readCAR splits a CARv1 archive into its blocks. The header is skipped;
// CIDs are not verified.
func readCAR(b []byte) ([]block, error) {
	header, rest, err := section(b)
	if err != nil {
		return nil, fmt.Errorf("car header: %w", err)
	}
	if len(header) == 0 {
		return nil, stderrors.New("car: empty header")
	}

	var blocks []block
	for len(rest) > 0 {
		var sec []byte
		sec, rest, err = section(rest)
		if err != nil {
			return blocks, fmt.Errorf("car block %d: %w", len(blocks), err)
		}
		n, err := cidLen(sec)
		if err != nil {
			return blocks, fmt.Errorf("car block %d: %w", len(blocks), err)
		}
		blocks = append(blocks, block{cid: sec[:n], data: sec[n:]})
	}
	return blocks, nil
}

// section reads one varint length-prefixed section.
func section(b []byte) (sec, rest []byte, err error) {
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, errTruncated
	}
	b = b[n:]
	if uint64(len(b)) < size {
		return nil, nil, errTruncated
	}
	return b[:size], b[size:], nil
}

// cidLen returns the encoded length of the CID at the start of b.
func cidLen(b []byte) (int, error) {
	// CIDv0 is a bare sha2-256 multihash.
	if len(b) >= 34 && b[0] == 0x12 && b[1] == 0x20 {
		return 34, nil
	}
	off := 0
	for i := 0; i < 3; i++ { // version, codec, hash function
		_, n := binary.Uvarint(b[off:])
		if n <= 0 {
			return 0, errTruncated
		}
		off += n
	}
	digest, n := binary.Uvarint(b[off:])
	if n <= 0 {
		return 0, errTruncated
	}
	off += n
	if uint64(len(b)-off) < digest {
		return 0, errTruncated
	}
	return off + int(digest), nil
}
