package tidings

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, ErrInternal, ErrorCode(errors.New("boom")))
	assert.Equal(t, ErrInvalid, ErrorCode(Errorf(ErrInvalid, "bad")))
	assert.Equal(t, ErrStorage, ErrorCode(StorageError("postgres.SetTopics", errors.New("conn refused"))))
	assert.Equal(t, ErrDispatch, ErrorCode(&Error{Op: "broadcast", Err: &Error{Code: ErrDispatch, Err: errors.New("quota")}}))
	assert.Equal(t, ErrNotFound, ErrorCode(errors.Wrap(Errorf(ErrNotFound, "missing"), "lookup")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "Topic is required.", ErrorMessage(Errorf(ErrInvalid, "Topic is required.")))
	assert.Equal(t, "An internal error has occurred.", ErrorMessage(errors.New("boom")))
	assert.Equal(t, "An internal error has occurred.", ErrorMessage(StorageError("sqlite.List", errors.New("disk I/O error"))))
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "<invalid> bad", Errorf(ErrInvalid, "bad").Error())
	assert.Equal(t, "bolt.SetTopics: timeout", StorageError("bolt.SetTopics", errors.New("timeout")).Error())
}
