package publisher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/fs"     //nolint:depguard // Wired in engine layer
	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in engine layer
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the publisher Graft node.
const NodeID graft.ID = "engine.publisher"

func init() {
	graft.Register(graft.Node[*Publisher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.ScannerNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Publisher, error) {
			scanner, err := graft.Dep[ports.LibraryScanner](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(scanner, log), nil
		},
	})
}
