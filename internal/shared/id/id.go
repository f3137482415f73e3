// Package id generates the prefixed, sortable identifiers used across the
// playground: workspaces (ws_*), isolation boundaries (bnd_*), API requests
// (req_*) and stream connections (conn_*).
//
// Every id is "<prefix>_<ULID>". ULIDs sort by creation time, so listing
// workspaces by id lists them in creation order. Distinct string types keep
// a boundary id from being passed where a workspace id is expected.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type (
	WorkspaceID string
	BoundaryID  string
	RequestID   string
	ConnID      string
)

const (
	WorkspacePrefix = "ws"
	BoundaryPrefix  = "bnd"
	RequestPrefix   = "req"
	ConnPrefix      = "conn"
)

func (id WorkspaceID) String() string { return string(id) }
func (id BoundaryID) String() string  { return string(id) }
func (id RequestID) String() string   { return string(id) }
func (id ConnID) String() string      { return string(id) }

// Generator mints ULIDs. Within one millisecond the entropy is monotonic,
// so ids from one generator never sort out of order.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator returns a generator over crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy returns a generator over a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Next returns a bare ULID string.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// Prefixed returns "<prefix>_<ULID>".
func (g *Generator) Prefixed(prefix string) string {
	return prefix + "_" + g.Next()
}

var shared = sync.OnceValue(NewGenerator)

func NewWorkspaceID() WorkspaceID { return WorkspaceID(shared().Prefixed(WorkspacePrefix)) }
func NewBoundaryID() BoundaryID   { return BoundaryID(shared().Prefixed(BoundaryPrefix)) }
func NewRequestID() RequestID     { return RequestID(shared().Prefixed(RequestPrefix)) }
func NewConnID() ConnID           { return ConnID(shared().Prefixed(ConnPrefix)) }

// Valid reports whether s is "<prefix>_<ULID>".
func Valid(s, prefix string) bool {
	_, err := parse(s, prefix)
	return err == nil
}

// Time returns the creation time encoded in a prefixed id.
func Time(s, prefix string) (time.Time, error) {
	u, err := parse(s, prefix)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

func parse(s, prefix string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return ulid.ULID{}, ulid.ErrDataSize
	}
	return ulid.ParseStrict(rest)
}
