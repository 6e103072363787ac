package cmd

import (
	"context"
	"fmt"

	"zm/internal/config"
	"zm/internal/connection"
)

// openConnection connects with the current profile. dataType, when set,
// overrides the profile's data_type for this command.
func openConnection(ctx context.Context, dataType string) (*config.Profile, connection.Connection, error) {
	p, err := GetCurrentProfile()
	if err != nil {
		return nil, nil, err
	}
	if dataType != "" {
		p.DataType = dataType
	}

	conn, err := connection.NewConnection(p, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, nil, err
	}
	logger.Debug().Str("host", p.Host).Str("protocol", p.Protocol).Msg("connected")
	return p, conn, nil
}

// openZOSMF is openConnection for commands that only z/OSMF can serve.
func openZOSMF(ctx context.Context, command string) (*config.Profile, *connection.ZOSMFConnection, error) {
	p, err := GetCurrentProfile()
	if err != nil {
		return nil, nil, err
	}
	if p.Protocol != config.ProtocolZOSMF {
		return nil, nil, fmt.Errorf("%s requires the %s protocol (profile uses %s)", command, config.ProtocolZOSMF, p.Protocol)
	}

	_, conn, err := openConnection(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	return p, conn.(*connection.ZOSMFConnection), nil
}
