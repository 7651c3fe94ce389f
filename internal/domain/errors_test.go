package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorUnwraps(t *testing.T) {
	err := NewDomainError("Store.GetDevice", ErrUnknownDevice, "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Contains(t, err.Error(), "Store.GetDevice")
	assert.Contains(t, err.Error(), "AA:BB:CC:DD:EE:FF")
}

func TestWrapOpNilPassthrough(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))

	wrapped := WrapOp("scanner.cycle", ErrRadioUnavailable)
	assert.ErrorIs(t, wrapped, ErrRadioUnavailable)
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{ErrUnknownDevice, CodeUnknownDevice},
		{NewDomainError("op", ErrMalformedRequest, ""), CodeMalformedRequest},
		{WrapOp("op", ErrStorageUnavailable), CodeStorageUnavailable},
		{errors.New("something else"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
	}
}

func TestErrorFromCodeRoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		ErrUnknownDevice,
		ErrStorageUnavailable,
		ErrRadioUnavailable,
		ErrMalformedRequest,
		ErrMethodNotFound,
		ErrRequestTimeout,
	} {
		code := ErrorCodeOf(sentinel)
		assert.ErrorIs(t, ErrorFromCode(code), sentinel, "code %s", code)
	}
	assert.Nil(t, ErrorFromCode(CodeUnknown))
	assert.Nil(t, ErrorFromCode("NO_SUCH_CODE"))
}
