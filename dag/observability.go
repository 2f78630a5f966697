package dag

import (
	"context"
	"time"

	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/observability"
)

// WithTracing wraps a Node with a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, state *State) (any, error) {
	ctx, span := observability.StartSpan(ctx, n.prefix+"."+n.inner.Name())
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrStage, n.inner.Name())

	result, err := n.inner.Run(ctx, state)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return result, err
}

// WithMetrics wraps a Node with stage duration recording.
func WithMetrics(node Node, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, metrics: metrics}
}

type metricsNode struct {
	inner   Node
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)

	status := "ok"
	if err != nil {
		status = "error"
	}
	n.metrics.RecordStage(ctx, n.inner.Name(), status, time.Since(start))
	return result, err
}

// WithLogging wraps a Node with execution logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	log := n.log.WithContext(ctx)
	log.Debug("stage started", logger.Fields(logger.FieldStage, n.inner.Name()))

	result, err := n.inner.Run(ctx, state)

	fields := logger.Fields(
		logger.FieldStage, n.inner.Name(),
		logger.FieldDuration, time.Since(start).String(),
	)
	if err != nil {
		log.Error("stage failed", logger.MergeWithError(fields, err))
	} else {
		log.Info("stage completed", fields)
	}
	return result, err
}

// Instrument applies tracing, metrics and logging to a node.
func Instrument(node Node, prefix string, metrics *observability.Metrics, log *logger.Logger) Node {
	return WithLogging(WithMetrics(WithTracing(node, prefix), metrics), log)
}
