// Package bgmmixer doc.
//
// # Usage
//
//	op := bgmmixer.New(bgmmixer.Config{})
//	art, err := operator.RunWithAdmission(ctx, ctrl, op, []*artifact.Artifact{speech, bgm}, map[string]any{
//	    "bgm_gain_db": -12.0,
//	    "duck_ratio":  0.4,
//	}, deadline)
package bgmmixer
