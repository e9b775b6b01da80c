// Package backgroundremover doc.
//
// # Usage
//
//	op := backgroundremover.New(backgroundremover.Config{Client: httpClient})
//	art, err := operator.RunWithAdmission(ctx, ctrl, op, []*artifact.Artifact{image, detections}, map[string]any{
//	    "smoothing": true,
//	}, deadline)
package backgroundremover
