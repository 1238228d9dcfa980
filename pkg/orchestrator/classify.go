package orchestrator

import (
	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/providers"
)

// classify maps an adapter error class onto the health-outcome table.
// A nil err classifies as success.
func classify(err error) health.Outcome {
	switch providers.ClassOf(err) {
	case providers.ClassNone:
		return health.OutcomeSuccess
	case providers.ClassAuth:
		return health.OutcomeAuthError
	case providers.ClassRateLimit:
		return health.OutcomeRateLimit
	case providers.ClassClient:
		return health.OutcomeClientError
	case providers.ClassServer:
		return health.OutcomeServerError
	default:
		return health.OutcomeTransportError
	}
}
