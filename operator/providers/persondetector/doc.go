// Package persondetector doc.
//
// # Usage
//
//	op := persondetector.New(persondetector.Config{Client: httpClient})
//	params := persondetector.DefaultParams()
//	art, err := operator.RunWithAdmission(ctx, ctrl, op, []*artifact.Artifact{image}, map[string]any{
//	    "conf_threshold": 0.6,
//	}, deadline)
package persondetector
