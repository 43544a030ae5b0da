package experiment

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/tracking"
)

// Collector turns tracking frames into experiment records.
// A record is taken whenever the camera is tracking and the point cloud has
// changed since the previous record.
type Collector struct {
	exp *Experiment

	started   bool
	startTime int64

	sampled   bool
	lastCloud int64

	planes      map[int]float64
	confidences []float64
}

// NewCollector creates a collector appending to exp.
func NewCollector(exp *Experiment) *Collector {
	return &Collector{
		exp:    exp,
		planes: make(map[int]float64),
	}
}

// Experiment returns the experiment being collected.
func (c *Collector) Experiment() *Experiment {
	return c.exp
}

// Observe processes a frame and reports the record it added, if any.
func (c *Collector) Observe(f *tracking.Frame) (Record, bool) {
	if f == nil {
		return Record{}, false
	}
	if !c.started {
		c.started = true
		c.startTime = f.Timestamp
	}

	for i := range f.UpdatedPlanes {
		p := &f.UpdatedPlanes[i]
		switch p.State {
		case tracking.Tracking:
			c.planes[p.ID] = p.Area()
		case tracking.Stopped:
			delete(c.planes, p.ID)
		}
	}

	if f.Camera != tracking.Tracking || f.Cloud == nil {
		return Record{}, false
	}
	if c.sampled && f.Cloud.Timestamp == c.lastCloud {
		return Record{}, false
	}
	c.sampled = true
	c.lastCloud = f.Cloud.Timestamp

	rec := Record{
		Time:          time.Duration(f.Timestamp - c.startTime),
		NumFeatures:   f.Cloud.NumFeatures(),
		AvgConfidence: c.meanConfidence(f.Cloud),
		PlaneArea:     c.largestPlane(),
	}
	c.exp.Add(rec)
	return rec, true
}

func (c *Collector) meanConfidence(snap *pointcloud.Snapshot) float32 {
	n := snap.NumFeatures()
	if n == 0 {
		return 0
	}
	c.confidences = c.confidences[:0]
	for i := 0; i < n; i++ {
		c.confidences = append(c.confidences, float64(snap.Feature(i).Confidence))
	}
	return float32(stat.Mean(c.confidences, nil))
}

func (c *Collector) largestPlane() float64 {
	var largest float64
	for _, area := range c.planes {
		if area > largest {
			largest = area
		}
	}
	return largest
}
