package errcode

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	err := New(CodeValidation, "ip: %s", "1.2.3")
	assert.Equal(t, CodeValidation, err.Code())
	assert.Equal(t, "validation error: ip: 1.2.3", err.Error())
	assert.True(t, Is(err, CodeValidation))
	assert.False(t, Is(err, CodeParse))
}

func TestErrorCodeChain(t *testing.T) {
	err := Wrap(CodeParse, io.ErrUnexpectedEOF, "ipv4")
	wrapped := errors.Wrap(err, "decode")

	assert.True(t, Is(wrapped, CodeParse))
	assert.Equal(t, CodeParse, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)

	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
	assert.False(t, Is(nil, CodeParse))
}
