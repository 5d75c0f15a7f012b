package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
)

func TestIsTransient(t *testing.T) {
	err := errs.Transient("create products", errs.ErrNetworkUnavailable)
	assert.True(t, errs.IsTransient(err))
	assert.True(t, errors.Is(err, errs.ErrNetworkUnavailable))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, errs.IsTransient(wrapped))

	assert.False(t, errs.IsTransient(errs.Validation("bad record")))
	assert.False(t, errs.IsTransient(errs.Persistence("create", errors.New("disk full"))))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, errs.IsFatal(errs.Validation("bad record")))
	assert.True(t, errs.IsFatal(errs.Authorization("wrong tenant")))
	assert.False(t, errs.IsFatal(errs.Transient("get", errors.New("timeout"))))
	assert.False(t, errs.IsFatal(errs.Reconciliation("variance needs a note")))
}

func TestUnwrapChains(t *testing.T) {
	cause := errors.New("no such column")
	err := errs.Persistence("update shifts", cause)
	assert.True(t, errors.Is(err, cause))

	verr := errs.ValidationWrap("invalid products record", cause)
	assert.True(t, errors.Is(verr, cause))

	var ve *errs.ValidationError
	assert.True(t, errors.As(verr, &ve))
}
