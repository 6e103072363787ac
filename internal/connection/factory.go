package connection

import (
	"fmt"

	"github.com/rs/zerolog"

	"zm/internal/config"
)

// NewConnection builds the transport selected by the profile. The result is
// not connected yet.
func NewConnection(p *config.Profile, logger zerolog.Logger) (Connection, error) {
	switch p.Protocol {
	case config.ProtocolZOSMF:
		return NewZOSMFConnection(p.BaseURL(), p.User, p.Password, ZOSMFOptions{
			Insecure:     p.Insecure,
			PageSize:     p.PageSize,
			ChunkRecords: p.ChunkRecords,
			RateLimit:    p.RateLimit,
			PollInterval: p.PollInterval,
			DataType:     p.DataType,
			Logger:       logger,
		}), nil
	case config.ProtocolFTP:
		return NewFTPConnection(p.Host, p.Port, p.User, p.Password), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", p.Protocol)
	}
}
