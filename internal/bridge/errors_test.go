package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"nil", nil, KindNone, false},
		{"configuration", &ConfigurationError{Reason: "nope"}, KindConfiguration, false},
		{"wrapped configuration", errors.Wrap(&ConfigurationError{Reason: "nope"}, "start"), KindConfiguration, false},
		{"timeout", channel.ErrTimeout, KindTimeout, true},
		{"transport", channel.NewTransportError(errors.New("eof")), KindTransport, true},
		{"remote", &channel.RemoteCallError{Method: "getAuthToken", Message: "denied"}, KindRemoteCall, false},
		{"destroyed", channel.ErrDestroyed, KindDestroyed, false},
		{"not ready", channel.ErrNotReady, KindDestroyed, false},
		{"canceled", context.Canceled, KindCanceled, false},
		{"other", errors.New("weird"), KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err))
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Origin: "https://evil.test", Reason: "parent origin is not allowed"}
	assert.Equal(t, `configuration error: parent origin is not allowed (origin "https://evil.test")`, err.Error())
	assert.Equal(t, "configuration error: x", (&ConfigurationError{Reason: "x"}).Error())
}

func TestDecodeArgs(t *testing.T) {
	var name string
	var data map[string]any
	require.NoError(t, DecodeArgs(json.RawMessage(`["opened",{"step":2}]`), &name, &data))
	assert.Equal(t, "opened", name)
	assert.Equal(t, map[string]any{"step": float64(2)}, data)

	name, data = "", nil
	require.NoError(t, DecodeArgs(json.RawMessage(`["only"]`), &name, &data))
	assert.Equal(t, "only", name)
	assert.Nil(t, data)

	require.NoError(t, DecodeArgs(nil, &name))
	assert.Error(t, DecodeArgs(json.RawMessage(`{"not":"array"}`), &name))
	assert.Error(t, DecodeArgs(json.RawMessage(`[42]`), &name))
}
