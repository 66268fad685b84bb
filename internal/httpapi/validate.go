package httpapi

import "github.com/go-playground/validator/v10"

// validate is shared across handlers; validator.Validate is safe for
// concurrent use once built, matching every other grounded use of this
// library in the corpus.
var validate = validator.New()

type retrieveBatchParams struct {
	Worker     string `validate:"required"`
	NImages    int    `validate:"omitempty,min=1"`
	Expiration int    `validate:"omitempty,min=1"`
}

type setJobStatusParams struct {
	JobID    string `validate:"required,uuid"`
	Status   int    `validate:"oneof=0 1 2 3 4 5"`
	Progress *int   `validate:"omitempty"`
}

type scopeParams struct {
	Key   string `validate:"required"`
	Scope string `validate:"required,oneof=doDiscovery doLabelStudioSync getRawFile putPreprocessedFrame getLaserLabel getLaserFrame putLaserFrame putDebugBlob admin getMetadata"`
}
