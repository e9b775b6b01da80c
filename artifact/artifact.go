// Package artifact defines the pipeline's data model: the immutable values
// produced by stage operators (images, audio, detections, prosody results,
// video) and the content-hash fingerprinting used to key the result cache.
package artifact

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// Kind identifies the concrete payload carried by an Artifact.
type Kind string

const (
	KindImage     Kind = "image"
	KindAudio     Kind = "audio"
	KindDetection Kind = "detection"
	KindMask      Kind = "mask"
	KindProsody   Kind = "prosody"
	KindVideo     Kind = "video"
)

// Artifact is an immutable value produced by a stage operator. It is
// identified by Ref, a content hash of its inputs plus operator version
// (spec §3), and is owned by the Cache; Jobs hold it by reference.
type Artifact struct {
	Ref     string // hex-encoded SHA-256, stable identity
	Kind    Kind
	Bytes   []byte
	Width   int           // images/masks
	Height  int           // images/masks
	SampleRate int        // audio
	DurationMS int64      // audio/video
	Detections *DetectionList
	Prosody    *ProsodyResult
	Meta       map[string]string
}

// SizeBytes returns the byte footprint this artifact occupies in the cache.
func (a *Artifact) SizeBytes() int64 {
	return int64(len(a.Bytes))
}

// Detection is a single detected person in an image, per spec §3.
type Detection struct {
	PersonID   int
	BBox       BBox
	Confidence float64
	AreaPct    float64
	Keypoints  []Keypoint // optional, len 17 when present
}

// BBox is an axis-aligned bounding box in pixel coordinates.
type BBox struct {
	XMin, YMin, XMax, YMax float64
}

// Keypoint is a single pose keypoint.
type Keypoint struct {
	X, Y, Confidence float64
}

// DetectionList is the ordered output of a PersonDetector invocation.
// Invariants (spec §3): 0 <= XMin < XMax <= ImageWidth (same for Y); sorted
// by Confidence descending; PersonID is dense 0..N-1.
type DetectionList struct {
	ImageWidth, ImageHeight int
	Persons                 []Detection
	// LowConfidenceHints holds up to 5 below-threshold detections for
	// debuggability when Persons is empty (spec §4.3.1).
	LowConfidenceHints []Detection
}

// Validate checks the DetectionList invariants. Operators call this after
// post-processing; the orchestrator never has to re-derive it.
func (d *DetectionList) Validate() error {
	for i, p := range d.Persons {
		if p.PersonID != i {
			return fmt.Errorf("artifact: detection person_id not dense at index %d: got %d", i, p.PersonID)
		}
		if !(0 <= p.BBox.XMin && p.BBox.XMin < p.BBox.XMax && p.BBox.XMax <= float64(d.ImageWidth)) {
			return fmt.Errorf("artifact: detection %d has invalid x bounds %+v", i, p.BBox)
		}
		if !(0 <= p.BBox.YMin && p.BBox.YMin < p.BBox.YMax && p.BBox.YMax <= float64(d.ImageHeight)) {
			return fmt.Errorf("artifact: detection %d has invalid y bounds %+v", i, p.BBox)
		}
		if i > 0 && p.Confidence > d.Persons[i-1].Confidence {
			return fmt.Errorf("artifact: detection confidences not non-increasing at index %d", i)
		}
	}
	return nil
}

// ProsodyResult is the output of the Prosody Engine (C4), per spec §3.
// Invariant: WasFallback implies AdjustedAudioRef == InputAudioRef.
type ProsodyResult struct {
	AdjustedAudioRef string
	InputAudioRef    string
	Confidence       float64
	Detail           map[string]float64
	WasFallback      bool
}

// Validate enforces the fallback invariant.
func (p *ProsodyResult) Validate() error {
	if p.WasFallback && p.AdjustedAudioRef != p.InputAudioRef {
		return fmt.Errorf("artifact: prosody result has was_fallback=true but adjusted_audio_ref != input_audio_ref")
	}
	return nil
}

// Fingerprint computes the SHA-256 stage fingerprint specified in §4.1: a
// hash over the canonical, length-prefixed concatenation of operatorID,
// operatorVersion, the ordered input artifact refs, and the ordered
// parameter list. Float parameters must already be rounded to the 4-digit
// decimal grid by the caller (see RoundParam) before being included here.
func Fingerprint(operatorID, operatorVersion string, inputRefs []string, params []string) string {
	h := sha256.New()
	writeLP(h, operatorID)
	writeLP(h, operatorVersion)
	for _, ref := range inputRefs {
		writeLP(h, ref)
	}
	for _, p := range params {
		writeLP(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeLP writes s to h prefixed with its length, so that concatenation is
// unambiguous (e.g. ("ab","c") cannot collide with ("a","bc")).
func writeLP(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

// RoundParam rounds a floating parameter to a fixed 4-decimal-digit grid
// before it is folded into a fingerprint, so that equivalent floating
// inputs always hash identically (spec §4.1).
func RoundParam(name string, v float64) string {
	rounded := math.Round(v*1e4) / 1e4
	return fmt.Sprintf("%s=%.4f", name, rounded)
}

// SortedParams renders a parameter map into the ordered, stable string list
// Fingerprint expects.
func SortedParams(params map[string]float64) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, RoundParam(k, params[k]))
	}
	return out
}