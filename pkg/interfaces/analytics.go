package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// AnalyticsSink receives analytics events drained off the hot path
type AnalyticsSink interface {
	StoreAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error
}
