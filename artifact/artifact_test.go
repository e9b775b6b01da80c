package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAndOrderSensitive(t *testing.T) {
	a := Fingerprint("persondetector", "v1", []string{"img1"}, []string{"conf_threshold=0.5000"})
	b := Fingerprint("persondetector", "v1", []string{"img1"}, []string{"conf_threshold=0.5000"})
	assert.Equal(t, a, b, "fingerprint must be deterministic")

	c := Fingerprint("persondetector", "v2", []string{"img1"}, []string{"conf_threshold=0.5000"})
	assert.NotEqual(t, a, c, "operator version must affect the fingerprint")

	d := Fingerprint("persondetector", "v1", []string{"img1", "img2"}, []string{"conf_threshold=0.5000"})
	assert.NotEqual(t, a, d, "additional inputs must affect the fingerprint")
}

func TestFingerprint_NoLengthPrefixCollision(t *testing.T) {
	a := Fingerprint("op", "v1", []string{"ab", "c"}, nil)
	b := Fingerprint("op", "v1", []string{"a", "bc"}, nil)
	assert.NotEqual(t, a, b, "length-prefixing must prevent concatenation collisions")
}

func TestRoundParam_StabilizesGrid(t *testing.T) {
	assert.Equal(t, RoundParam("pitch", 1.150001), RoundParam("pitch", 1.1500009))
}

func TestSortedParams_Deterministic(t *testing.T) {
	params := map[string]float64{"tempo": 1.1, "pitch": 1.15, "energy": 1.2}
	got := SortedParams(params)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"energy=1.2000", "pitch=1.1500", "tempo=1.1000"}, got)
}

func TestDetectionList_Validate(t *testing.T) {
	dl := &DetectionList{
		ImageWidth: 100, ImageHeight: 100,
		Persons: []Detection{
			{PersonID: 0, BBox: BBox{0, 0, 50, 50}, Confidence: 0.9},
			{PersonID: 1, BBox: BBox{10, 10, 60, 60}, Confidence: 0.8},
		},
	}
	assert.NoError(t, dl.Validate())

	bad := &DetectionList{
		ImageWidth: 100, ImageHeight: 100,
		Persons: []Detection{
			{PersonID: 0, BBox: BBox{0, 0, 50, 50}, Confidence: 0.5},
			{PersonID: 1, BBox: BBox{10, 10, 60, 60}, Confidence: 0.9},
		},
	}
	assert.Error(t, bad.Validate(), "confidences must be non-increasing")
}

func TestProsodyResult_FallbackInvariant(t *testing.T) {
	ok := &ProsodyResult{WasFallback: true, AdjustedAudioRef: "a", InputAudioRef: "a"}
	assert.NoError(t, ok.Validate())

	bad := &ProsodyResult{WasFallback: true, AdjustedAudioRef: "a", InputAudioRef: "b"}
	assert.Error(t, bad.Validate())
}