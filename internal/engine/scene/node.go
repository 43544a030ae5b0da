// Package scene attaches the point-cloud mesh builder to the render loop.
package scene

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/logger"
)

// ErrActive is returned by Activate when the node is already active.
var ErrActive = errors.New("scene: node already active")

// Renderable is a mesh uploaded to the renderer.
type Renderable interface {
	Release()
}

// MeshSubmitter uploads meshes to the renderer.
type MeshSubmitter interface {
	Submit(ctx context.Context, mesh *pointcloud.Mesh) (Renderable, error)
}

// PointCloudNode drives a Builder from tracking updates and keeps the
// renderer's copy of the mesh current.
type PointCloudNode struct {
	builder   *pointcloud.Builder
	submitter MeshSubmitter
	log       *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	prepared   chan struct{}
	prepareErr error
	renderable Renderable
}

// NewPointCloudNode creates an inactive node.
func NewPointCloudNode(builder *pointcloud.Builder, submitter MeshSubmitter) *PointCloudNode {
	return &PointCloudNode{
		builder:   builder,
		submitter: submitter,
		log:       logger.Named("scene"),
		prepared:  make(chan struct{}),
	}
}

// Builder returns the node's mesh builder.
func (n *PointCloudNode) Builder() *pointcloud.Builder {
	return n.builder
}

// Activate starts preparing the builder's materials in the background.
// Preparation is abandoned when ctx is done or the node is deactivated.
func (n *PointCloudNode) Activate(ctx context.Context, factory pointcloud.MaterialFactory, spec pointcloud.MaterialSpec) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		return ErrActive
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	n.prepared = make(chan struct{})
	n.prepareErr = nil

	go n.prepare(ctx, factory, spec, n.done, n.prepared)
	return nil
}

func (n *PointCloudNode) prepare(ctx context.Context, factory pointcloud.MaterialFactory, spec pointcloud.MaterialSpec, done, prepared chan struct{}) {
	defer close(done)

	err := n.builder.Prepare(ctx, factory, spec)
	if errors.Is(err, pointcloud.ErrAlreadyPrepared) && n.builder.State() == pointcloud.Ready {
		err = nil
	}
	if err != nil {
		n.log.Warn("point cloud preparation failed", zap.Error(err))
	} else {
		n.log.Debug("point cloud prepared")
	}

	n.mu.Lock()
	n.prepareErr = err
	n.mu.Unlock()
	close(prepared)
}

// Deactivate cancels any in-flight preparation, waits for it to stop and
// releases the current renderable.
func (n *PointCloudNode) Deactivate() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	n.mu.Lock()
	n.releaseRenderable()
	n.mu.Unlock()
}

// Prepared returns a channel closed once the current activation's
// preparation has finished.
func (n *PointCloudNode) Prepared() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prepared
}

// PrepareErr returns the outcome of the last finished preparation.
func (n *PointCloudNode) PrepareErr() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prepareErr
}

// Renderable returns the current renderable, or nil.
func (n *PointCloudNode) Renderable() Renderable {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.renderable
}

// Update feeds a snapshot to the builder and mirrors the result in the
// renderer. It returns NoChange while the node is inactive. A failed submission is returned as is and not retried; the
// previous renderable stays in place.
func (n *PointCloudNode) Update(ctx context.Context, snap *pointcloud.Snapshot) (pointcloud.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Inactive nodes never touch the builder or the renderer.
	if n.cancel == nil {
		return pointcloud.NoChange, nil
	}
	res := n.builder.Update(snap)

	switch res.Status {
	case pointcloud.Clear:
		n.releaseRenderable()
	case pointcloud.Rebuilt:
		r, err := n.submitter.Submit(ctx, res.Mesh)
		if err != nil {
			return res.Status, err
		}
		n.releaseRenderable()
		n.renderable = r
	}
	return res.Status, nil
}

func (n *PointCloudNode) releaseRenderable() {
	if n.renderable != nil {
		n.renderable.Release()
		n.renderable = nil
	}
}
