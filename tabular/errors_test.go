package tabular

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryError_MessageShapes(t *testing.T) {
	assert.Equal(t, `FIELD_UNKNOWN: field does not exist in source (field=nope)`,
		newFieldError("nope").Error())
	assert.Equal(t, `DESCRIPTOR_INVALID: group key must be a field or columns`,
		newDescriptorError("group key must be a field or columns").Error())
	assert.Equal(t, `STEP_INVALID: aggregation after aggregation (step=sum)`,
		newStepError("sum", "aggregation after aggregation").Error())
}

func TestQueryError_MessageCarriesCause(t *testing.T) {
	cause := errors.New("boom")
	err := newValueError("map", cause)

	// The cause must be visible in the string form, not only via Unwrap:
	// CLI error payloads carry err.Error() alone.
	assert.Equal(t,
		`VALUE_INVALID: value incompatible with operation (step=map): boom`,
		err.Error())
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, cause, errors.Unwrap(err))

	wrapped := fmt.Errorf("execute: %w", err)
	assert.True(t, IsEvalError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}
