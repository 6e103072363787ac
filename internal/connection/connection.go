// Package connection maps zm's dataset, USS and job commands onto a
// transport: the z/OSMF REST client or classic z/OS FTP.
package connection

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("not connected")

type Member struct {
	Name    string
	VV      int    // version
	MM      int    // modification
	Created string // YYYY/MM/DD
	Changed string // YYYY/MM/DD HH:MM
	Size    int
	Init    int
	Mod     int
	User    string
}

// Connection is implemented by every transport. Job control lives on
// ZOSMFConnection only.
type Connection interface {
	Connect(ctx context.Context) error
	Close() error

	// Dataset
	ListDatasets(ctx context.Context, pattern string) ([]string, error)
	ListMembers(ctx context.Context, dataset string) ([]Member, error)
	ReadMember(ctx context.Context, dataset, member string) ([]byte, error)
	WriteMember(ctx context.Context, dataset, member string, content []byte) error

	// USS
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content []byte) error
}

// Versioned is implemented by transports that can guard a write with the
// version returned by the read, so a concurrent change is reported instead
// of overwritten.
type Versioned interface {
	ReadMemberVersion(ctx context.Context, dataset, member string) ([]byte, string, error)
	WriteMemberVersion(ctx context.Context, dataset, member string, content []byte, etag string) error
	ReadFileVersion(ctx context.Context, path string) ([]byte, string, error)
	WriteFileVersion(ctx context.Context, path string, content []byte, etag string) error
}

// unquote strips the TSO-style quotes users put around dataset names.
func unquote(dataset string) string {
	return strings.ToUpper(strings.Trim(dataset, "'"))
}
