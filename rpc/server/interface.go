package server

import (
	"context"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// TurnCallback is handed to the processor together with every activity.
// It is the hook through which the surrounding application runs its turn logic.
type TurnCallback func(ctx context.Context, activity *common.Activity) error

// IProcessor is the business logic behind the router. It is called concurrently
// for different activities of the same connection.
type IProcessor interface {
	// ProcessActivity processes one inbound activity. A nil result is answered
	// with status 200 and no body. ctx is cancelled if the peer gives up on the
	// request or the connection is lost.
	ProcessActivity(ctx context.Context, activity *common.Activity, onTurn TurnCallback) (*common.InvokeResponse, error)
}

// ProcessorFunc adapts an ordinary function to an IProcessor
type ProcessorFunc func(ctx context.Context, activity *common.Activity, onTurn TurnCallback) (*common.InvokeResponse, error)

// ProcessActivity calls f(ctx, activity, onTurn)
func (f ProcessorFunc) ProcessActivity(ctx context.Context, activity *common.Activity, onTurn TurnCallback) (*common.InvokeResponse, error) {
	return f(ctx, activity, onTurn)
}

// IServiceURLRecorder records the service endpoint identity of the connection.
// Only the first recorded value is kept.
type IServiceURLRecorder interface {
	RecordServiceURL(url string) bool
}
