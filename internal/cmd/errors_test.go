package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestExitError(t *testing.T) {
	cause := errors.New("bucket not found")
	err := exitError(foundry.ExitExternalServiceUnavailable, "Walk failed", cause)

	assert.Equal(t, fmt.Sprintf("Walk failed: bucket not found (exit code %d)", foundry.ExitExternalServiceUnavailable), err.Error())
	assert.ErrorIs(t, err, cause)

	var ee *ExitError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, "Walk failed", ee.Message)
}

func TestExitError_NoCause(t *testing.T) {
	err := &ExitError{Code: foundry.ExitInvalidArgument, Message: "Missing walk target"}
	assert.Equal(t, fmt.Sprintf("Missing walk target (exit code %d)", foundry.ExitInvalidArgument), err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", exitError(foundry.ExitSignalInt, "cancelled", nil), foundry.ExitSignalInt},
		{"wrapped exit error", fmt.Errorf("run: %w", exitError(foundry.ExitFileWriteError, "write", nil)), foundry.ExitFileWriteError},
		{"plain error", errors.New(`unknown flag: --nope`), foundry.ExitInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitWithCode(t *testing.T) {
	err := ExitWithCode(zap.NewNop(), foundry.ExitFileNotFound, "Manifest not found", errors.New("no such file"))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCode(err))
}
