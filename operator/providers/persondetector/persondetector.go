// Package persondetector implements the PersonDetector stage operator
// (spec §4.3.1): a black-box HTTP detection model fronted by deterministic
// post-processing (non-maximum suppression, confidence filtering, top-k
// selection, dense re-indexing).
package persondetector

import (
	"context"
	"encoding/base64"
	"sort"
	"time"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/resilience"
)

const (
	operatorID = "persondetector"
	vramCostMB = 2000
	resultTTL  = 24 * time.Hour
)

// Params holds PersonDetector's recognized parameter set (spec §4.3.1).
type Params struct {
	ConfThreshold   float64
	MaxPersons      int
	IoUThreshold    float64
	ReturnKeypoints bool
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{ConfThreshold: 0.5, MaxPersons: 10, IoUThreshold: 0.45, ReturnKeypoints: false}
}

// Validate enforces the hard parameter bounds.
func (p Params) Validate() error {
	if p.ConfThreshold < 0 || p.ConfThreshold > 1 {
		return core.NewError("persondetector.Validate", core.ErrInvalidInput, "conf_threshold must be in [0,1]", nil)
	}
	if p.MaxPersons < 1 || p.MaxPersons > 50 {
		return core.NewError("persondetector.Validate", core.ErrInvalidInput, "max_persons must be in [1,50]", nil)
	}
	if p.IoUThreshold < 0 || p.IoUThreshold > 1 {
		return core.NewError("persondetector.Validate", core.ErrInvalidInput, "iou_threshold must be in [0,1]", nil)
	}
	return nil
}

// fingerprintParams renders p as the ordered, rounded parameter list
// artifact.Fingerprint expects.
func (p Params) fingerprintParams() []string {
	keypointsFlag := 0.0
	if p.ReturnKeypoints {
		keypointsFlag = 1.0
	}
	return artifact.SortedParams(map[string]float64{
		"conf_threshold":   p.ConfThreshold,
		"max_persons":      float64(p.MaxPersons),
		"iou_threshold":    p.IoUThreshold,
		"return_keypoints": keypointsFlag,
	})
}

// Config configures an Operator instance.
type Config struct {
	Client          *httpclient.Client
	OperatorVersion string
}

// Operator implements operator.Operator for person detection.
type Operator struct {
	client  *httpclient.Client
	version string
}

// New creates a persondetector Operator.
func New(cfg Config) *Operator {
	version := cfg.OperatorVersion
	if version == "" {
		version = "v1"
	}
	return &Operator{client: cfg.Client, version: version}
}

func (o *Operator) ID() string         { return operatorID }
func (o *Operator) VRAMCost() int      { return vramCostMB }
func (o *Operator) TTL() time.Duration { return resultTTL }

// Fingerprint computes the content address for one invocation.
func (o *Operator) Fingerprint(inputRefs []string, params []string) string {
	return artifact.Fingerprint(operatorID, o.version, inputRefs, params)
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type rawDetection struct {
	BBox       [4]float64   `json:"bbox"` // xmin, ymin, xmax, ymax
	Confidence float64      `json:"confidence"`
	Keypoints  [][3]float64 `json:"keypoints,omitempty"`
}

type detectResponse struct {
	ImageWidth  int            `json:"image_width"`
	ImageHeight int            `json:"image_height"`
	Detections  []rawDetection `json:"detections"`
}

// Execute calls the detection endpoint and post-processes its raw output
// per spec §4.3.1: NMS at iou_threshold, confidence filter, top-k by
// confidence, sorted descending, dense reindex.
func (o *Operator) Execute(ctx context.Context, inputs []*artifact.Artifact, rawParams map[string]any) (*artifact.Artifact, error) {
	if len(inputs) < 1 {
		panic("persondetector: Execute requires one image input")
	}
	image := inputs[0]

	params, err := paramsFromMap(rawParams)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	resp, err := resilience.Retry(ctx, operator.DefaultRetryPolicy(), func(ctx context.Context) (detectResponse, error) {
		r, err := httpclient.DoJSON[detectResponse](ctx, o.client, "POST", "/v1/detect", detectRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(image.Bytes),
		})
		if err != nil {
			return detectResponse{}, operator.ClassifyHTTPError(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, core.NewError("persondetector.Execute", core.ErrUpstreamFailed, "detection request failed", err)
	}

	passed, hints := filterAndRank(resp.Detections, params, resp.ImageWidth, resp.ImageHeight)

	list := &artifact.DetectionList{
		ImageWidth:         resp.ImageWidth,
		ImageHeight:        resp.ImageHeight,
		Persons:            passed,
		LowConfidenceHints: hints,
	}
	if !params.ReturnKeypoints {
		for i := range list.Persons {
			list.Persons[i].Keypoints = nil
		}
	}
	if err := list.Validate(); err != nil {
		return nil, core.NewError("persondetector.Execute", core.ErrInternal, "post-processed detections failed validation", err)
	}

	return &artifact.Artifact{
		Kind:       artifact.KindDetection,
		Detections: list,
	}, nil
}

// filterAndRank applies confidence filtering, NMS, and top-k selection to
// raw detections, returning the accepted list (dense-reindexed, confidence
// descending) and, when the accepted list is empty, up to 5 below-threshold
// hints for debuggability.
func filterAndRank(raw []rawDetection, params Params, imageWidth, imageHeight int) ([]artifact.Detection, []artifact.Detection) {
	sorted := make([]rawDetection, len(raw))
	copy(sorted, raw)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	var above, below []rawDetection
	for _, d := range sorted {
		if d.Confidence >= params.ConfThreshold {
			above = append(above, d)
		} else {
			below = append(below, d)
		}
	}

	suppressed := nonMaxSuppress(above, params.IoUThreshold)
	if len(suppressed) > params.MaxPersons {
		suppressed = suppressed[:params.MaxPersons]
	}

	if len(suppressed) == 0 {
		n := len(below)
		if n > 5 {
			n = 5
		}
		return nil, toDetections(below[:n], 0, imageWidth, imageHeight)
	}
	return toDetections(suppressed, 0, imageWidth, imageHeight), nil
}

// nonMaxSuppress greedily keeps the highest-confidence detection, removing
// any remaining candidate whose IoU with it exceeds iouThreshold, and
// repeats. dets must already be sorted by confidence descending.
func nonMaxSuppress(dets []rawDetection, iouThreshold float64) []rawDetection {
	remaining := make([]rawDetection, len(dets))
	copy(remaining, dets)

	var kept []rawDetection
	for len(remaining) > 0 {
		best := remaining[0]
		kept = append(kept, best)

		var next []rawDetection
		for _, d := range remaining[1:] {
			if iou(best.BBox, d.BBox) <= iouThreshold {
				next = append(next, d)
			}
		}
		remaining = next
	}
	return kept
}

func iou(a, b [4]float64) float64 {
	xMin := max(a[0], b[0])
	yMin := max(a[1], b[1])
	xMax := min(a[2], b[2])
	yMax := min(a[3], b[3])

	interW := max(0, xMax-xMin)
	interH := max(0, yMax-yMin)
	inter := interW * interH

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func toDetections(raw []rawDetection, startID int, imageWidth, imageHeight int) []artifact.Detection {
	imageArea := float64(imageWidth) * float64(imageHeight)
	out := make([]artifact.Detection, len(raw))
	for i, d := range raw {
		bbox := artifact.BBox{XMin: d.BBox[0], YMin: d.BBox[1], XMax: d.BBox[2], YMax: d.BBox[3]}
		out[i] = artifact.Detection{
			PersonID:   startID + i,
			BBox:       bbox,
			Confidence: d.Confidence,
			AreaPct:    areaPct(bbox, imageArea),
			Keypoints:  toKeypoints(d.Keypoints),
		}
	}
	return out
}

// areaPct is the bounding box's area as a percentage of the full image
// area, per spec §3's DetectionList.area_pct field. Returns 0 rather than
// NaN/Inf when imageArea is non-positive (malformed detector response).
func areaPct(bbox artifact.BBox, imageArea float64) float64 {
	if imageArea <= 0 {
		return 0
	}
	bboxArea := (bbox.XMax - bbox.XMin) * (bbox.YMax - bbox.YMin)
	return bboxArea / imageArea * 100
}

func toKeypoints(raw [][3]float64) []artifact.Keypoint {
	if len(raw) == 0 {
		return nil
	}
	out := make([]artifact.Keypoint, len(raw))
	for i, k := range raw {
		out[i] = artifact.Keypoint{X: k[0], Y: k[1], Confidence: k[2]}
	}
	return out
}

func paramsFromMap(raw map[string]any) (Params, error) {
	p := DefaultParams()
	if v, ok := raw["conf_threshold"].(float64); ok {
		p.ConfThreshold = v
	}
	if v, ok := raw["max_persons"].(float64); ok {
		p.MaxPersons = int(v)
	}
	if v, ok := raw["iou_threshold"].(float64); ok {
		p.IoUThreshold = v
	}
	if v, ok := raw["return_keypoints"].(bool); ok {
		p.ReturnKeypoints = v
	}
	return p, nil
}

