package bluesky

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	postCollection = "app.bsky.feed.post"

	opMessage = 1
	opError   = -1
)

var decMode = newDecMode()

func newDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// frameHeader is the first of the two CBOR values in every frame.
type frameHeader struct {
	Op   int64  `cbor:"op"`
	Type string `cbor:"t"`
}

type errorBody struct {
	Error   string `cbor:"error"`
	Message string `cbor:"message"`
}

// FrameError is an error frame sent by the relay.
type FrameError struct {
	Name    string
	Message string
}

func (e *FrameError) Error() string {
	if e.Message == "" {
		return "firehose error frame: " + e.Name
	}
	return fmt.Sprintf("firehose error frame: %s: %s", e.Name, e.Message)
}

type commit struct {
	Seq    int64    `cbor:"seq"`
	Repo   string   `cbor:"repo"`
	TooBig bool     `cbor:"tooBig"`
	Ops    []repoOp `cbor:"ops"`
	Blocks []byte   `cbor:"blocks"`
}

type repoOp struct {
	Action string `cbor:"action"`
	Path   string `cbor:"path"`
}

type postRecord struct {
	Type      string   `cbor:"$type"`
	Text      string   `cbor:"text"`
	CreatedAt string   `cbor:"createdAt"`
	Langs     []string `cbor:"langs"`
}

// Post is a newly created feed post.
type Post struct {
	Repo      string    `json:"repo"`
	Seq       int64     `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Langs     []string  `json:"langs,omitempty"`
}

// decodeFrame returns the posts created by one firehose frame. Frames
// other than commits yield nothing.
func decodeFrame(b []byte) ([]Post, error) {
	dec := decMode.NewDecoder(bytes.NewReader(b))

	var h frameHeader
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("frame header: %w", err)
	}
	switch {
	case h.Op == opError:
		var body errorBody
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("error frame body: %w", err)
		}
		return nil, &FrameError{Name: body.Error, Message: body.Message}
	case h.Op != opMessage || h.Type != "#commit":
		return nil, nil
	}

	var c commit
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("commit body: %w", err)
	}
	if c.TooBig || !createsPost(c.Ops) {
		return nil, nil
	}

	blocks, err := readCAR(c.Blocks)
	if err != nil && len(blocks) == 0 {
		return nil, err
	}

	var posts []Post
	for _, blk := range blocks {
		var rec postRecord
		if decMode.Unmarshal(blk.data, &rec) != nil || rec.Type != postCollection {
			continue
		}
		post := Post{Repo: c.Repo, Seq: c.Seq, Text: rec.Text, Langs: rec.Langs}
		if t, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err == nil {
			post.CreatedAt = t
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func createsPost(ops []repoOp) bool {
	for _, op := range ops {
		if op.Action == "create" && strings.HasPrefix(op.Path, postCollection+"/") {
			return true
		}
	}
	return false
}
