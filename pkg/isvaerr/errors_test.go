package isvaerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "transport", err: Transport(401, nil, errors.New("unauthorized")), expected: KindTransport},
		{name: "app status", err: AppStatus(500, map[string]any{"message": "boom"}), expected: KindAppStatus},
		{name: "write rejected", err: WriteRejected("PUT", "/isam/dsc/config", 200, nil), expected: KindWriteRejected},
		{name: "mapping", err: Mapping("empty list"), expected: KindMapping},
		{name: "validation", err: Validation("bad path %q", "logs"), expected: KindValidation},
		{name: "integrity", err: Integrity("checksum mismatch"), expected: KindIntegrity},
		{name: "wrapped", err: fmt.Errorf("fetch: %w", Mapping("x")), expected: KindMapping},
		{name: "plain error", err: errors.New("plain"), expected: ""},
		{name: "nil", err: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := AppStatus(400, map[string]any{"message": "invalid"})
	assert.Equal(t, `app_status: appliance returned error 400 with message {"message":"invalid"}`, err.Error())
	assert.Equal(t, 400, CodeOf(err))

	err = WriteRejected("PUT", "/isam/dsc/config", 200, nil)
	assert.Contains(t, err.Error(), "PUT /isam/dsc/config was not accepted")
	assert.Contains(t, err.Error(), "error 200")
}

func TestValidationErrWrapsMultierror(t *testing.T) {
	var merr *multierror.Error
	merr = multierror.Append(merr, errors.New("server is required"))
	merr = multierror.Append(merr, errors.New("user is required"))

	err := ValidationErr(merr.ErrorOrNil())
	assert.True(t, Is(err, KindValidation))
	assert.Contains(t, err.Error(), "server is required")
	assert.Contains(t, err.Error(), "user is required")

	assert.NoError(t, ValidationErr(nil))
}
