// Package backgroundremover implements the BackgroundRemover stage operator
// (spec §4.3.2): a black-box HTTP matting model fronted by local alpha-channel
// smoothing and RGBA compositing.
package backgroundremover

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/resilience"
)

const (
	operatorID = "backgroundremover"
	vramCostMB = 3000
	resultTTL  = 24 * time.Hour

	// maxPixelsPerByte bounds the pixel-count/file-size ratio; anything
	// above this is treated as a decompression bomb (spec §4.3.2).
	maxPixelsPerByte = 1000

	blurSigma = 1.5
)

// Params holds BackgroundRemover's recognized parameter set.
type Params struct {
	Smoothing bool
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{Smoothing: true}
}

// Validate is a no-op: Smoothing has no invalid values.
func (p Params) Validate() error { return nil }

func (p Params) fingerprintParams() []string {
	smoothingFlag := 0.0
	if p.Smoothing {
		smoothingFlag = 1.0
	}
	return artifact.SortedParams(map[string]float64{"smoothing": smoothingFlag})
}

// Config configures an Operator instance.
type Config struct {
	Client          *httpclient.Client
	OperatorVersion string
}

// Operator implements operator.Operator for background removal.
type Operator struct {
	client  *httpclient.Client
	version string
}

// New creates a backgroundremover Operator.
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

type matteRequest struct {
	ImageBase64 string    `json:"image_base64"`
	BBoxHint    *[4]float64 `json:"bbox_hint,omitempty"`
}

type matteResponse struct {
	// AlphaBase64 is a raw 8-bit grayscale alpha mask, row-major,
	// ImageWidth*ImageHeight bytes.
	AlphaBase64 string `json:"alpha_base64"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
}

// Execute calls the matting endpoint and composites the returned alpha mask
// onto the input image, smoothing it first when requested (spec §4.3.2).
func (o *Operator) Execute(ctx context.Context, inputs []*artifact.Artifact, rawParams map[string]any) (*artifact.Artifact, error) {
	if len(inputs) < 1 {
		panic("backgroundremover: Execute requires one image input")
	}
	img := inputs[0]

	params, err := paramsFromMap(rawParams)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Bytes))
	if err != nil {
		return nil, core.NewError("backgroundremover.Execute", core.ErrInvalidInput, "input is not a decodable image", err)
	}
	bounds := decoded.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if err := checkImageBomb(width, height, len(img.Bytes)); err != nil {
		return nil, err
	}

	var bboxHint *[4]float64
	if len(inputs) > 1 && inputs[1] != nil && inputs[1].Detections != nil && len(inputs[1].Detections.Persons) > 0 {
		b := inputs[1].Detections.Persons[0].BBox
		bboxHint = &[4]float64{b.XMin, b.YMin, b.XMax, b.YMax}
	}

	resp, err := resilience.Retry(ctx, operator.DefaultRetryPolicy(), func(ctx context.Context) (matteResponse, error) {
		r, err := httpclient.DoJSON[matteResponse](ctx, o.client, "POST", "/v1/matte", matteRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(img.Bytes),
			BBoxHint:    bboxHint,
		})
		if err != nil {
			return matteResponse{}, operator.ClassifyHTTPError(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, core.NewError("backgroundremover.Execute", core.ErrUpstreamFailed, "matte request failed", err)
	}

	alpha, err := base64.StdEncoding.DecodeString(resp.AlphaBase64)
	if err != nil {
		return nil, core.NewError("backgroundremover.Execute", core.ErrUpstreamFailed, "alpha mask is not valid base64", err)
	}
	if len(alpha) != width*height {
		return nil, core.NewError("backgroundremover.Execute", core.ErrUpstreamFailed, fmt.Sprintf("alpha mask size %d does not match image %dx%d", len(alpha), width, height), nil)
	}

	if params.Smoothing {
		alpha = gaussianBlurAlpha(alpha, width, height, blurSigma)
	}

	out := compositeRGBA(decoded, alpha, width, height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, core.NewError("backgroundremover.Execute", core.ErrInternal, "failed to encode output png", err)
	}

	return &artifact.Artifact{
		Kind:   artifact.KindImage,
		Bytes:  buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}

// checkImageBomb rejects inputs whose pixel-count/file-size ratio exceeds
// maxPixelsPerByte (spec §4.3.2's decompression-bomb defense).
func checkImageBomb(width, height, fileSize int) error {
	if fileSize == 0 {
		return core.NewError("backgroundremover.checkImageBomb", core.ErrInvalidInput, "empty image payload", nil)
	}
	ratio := float64(width*height) / float64(fileSize)
	if ratio > maxPixelsPerByte {
		return core.NewError("backgroundremover.checkImageBomb", core.ErrInvalidInput, fmt.Sprintf("pixel-count/file-size ratio %.1f exceeds limit %d", ratio, maxPixelsPerByte), nil)
	}
	return nil
}

// compositeRGBA copies decoded's colors into an RGBA image stamped with
// alpha, preserving the edge invariant that output dimensions equal input
// dimensions.
func compositeRGBA(decoded image.Image, alpha []byte, width, height int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	bounds := decoded.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := decoded.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			a := alpha[y*width+x]
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: a,
			})
		}
	}
	return out
}

// gaussianBlurAlpha applies a separable Gaussian blur to a single-channel
// alpha plane, matching spec §4.3.2's σ=1.5 smoothing pass.
func gaussianBlurAlpha(alpha []byte, width, height int, sigma float64) []byte {
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	tmp := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sx := clamp(x+k, 0, width-1)
				sum += float64(alpha[y*width+sx]) * kernel[k+radius]
			}
			tmp[y*width+x] = sum
		}
	}

	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sy := clamp(y+k, 0, height-1)
				sum += tmp[sy*width+x] * kernel[k+radius]
			}
			out[y*width+x] = uint8(clampFloat(sum, 0, 255))
		}
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(sigma * 3))
	size := 2*radius + 1
	kernel := make([]float64, size)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func paramsFromMap(raw map[string]any) (Params, error) {
	p := DefaultParams()
	if v, ok := raw["smoothing"].(bool); ok {
		p.Smoothing = v
	}
	return p, nil
}
