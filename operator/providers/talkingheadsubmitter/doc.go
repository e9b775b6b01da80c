package talkingheadsubmitter

// Example usage:
//
//	op := talkingheadsubmitter.New(talkingheadsubmitter.Config{Client: thClient})
//	video, err := operator.RunWithAdmission(ctx, admissionCtrl, op, []*artifact.Artifact{image, audio}, nil, deadline)
