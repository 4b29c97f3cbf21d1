package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerEvent_Classifies(t *testing.T) {
	cases := map[string]EventKind{
		`{"type":"session.created"}`:                                                      EventSessionCreated,
		`{"type":"session.updated"}`:                                                      EventSessionUpdated,
		`{"type":"input_audio_buffer.speech_started"}`:                                    EventSpeechStarted,
		`{"type":"input_audio_buffer.speech_stopped"}`:                                    EventSpeechStopped,
		`{"type":"response.created"}`:                                                     EventResponseCreated,
		`{"type":"response.output_audio.delta","delta":"AAAA"}`:                           EventAudioDelta,
		`{"type":"response.audio.delta","delta":"AAAA"}`:                                  EventAudioDelta,
		`{"type":"response.output_item.added","item":{"type":"function_call","name":"x"}}`: EventFunctionCallStarted,
		`{"type":"response.output_item.added","item":{"type":"message"}}`:                 EventOther,
		`{"type":"response.function_call_arguments.delta","call_id":"c","delta":"{"}`:     EventFunctionCallArgumentsDelta,
		`{"type":"response.function_call_arguments.done","call_id":"c"}`:                  EventFunctionCallArgumentsDone,
		`{"type":"response.done"}`:                                                        EventResponseDone,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`:       EventError,
		`{"type":"rate_limits.updated"}`:                                                  EventOther,
	}
	for raw, want := range cases {
		ev, err := ParseServerEvent([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, ev.Kind, raw)
		assert.JSONEq(t, raw, string(ev.Raw))
	}
}

func TestParseServerEvent_FunctionCallFields(t *testing.T) {
	ev, err := ParseServerEvent([]byte(`{"type":"response.output_item.added","item":{"id":"i1","type":"function_call","call_id":"call_1","name":"end_call"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Item)
	assert.Equal(t, "call_1", ev.Item.CallID)
	assert.Equal(t, "end_call", ev.Item.Name)

	ev, err = ParseServerEvent([]byte(`{"type":"response.function_call_arguments.delta","call_id":"call_1","delta":"{\"reason\":\"us"}`))
	require.NoError(t, err)
	assert.Equal(t, "call_1", ev.CallID)
	assert.Equal(t, `{"reason":"us`, ev.Delta)

	ev, err = ParseServerEvent([]byte(`{"type":"response.function_call_arguments.done","call_id":"call_1","name":"end_call","arguments":"{}"}`))
	require.NoError(t, err)
	assert.Equal(t, "end_call", ev.Name)
	assert.Equal(t, "{}", ev.Arguments)
}

func TestParseServerEvent_Rejects(t *testing.T) {
	_, err := ParseServerEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseServerEvent([]byte(`{"delta":"x"}`))
	assert.Error(t, err)
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{Type: "server_error", Code: "session_expired", Message: "gone"}
	assert.Equal(t, "realtime server_error (session_expired): gone", err.Error())
}

func TestClientEvents_Shape(t *testing.T) {
	data, err := json.Marshal(AppendAudio([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"input_audio_buffer.append","audio":"AQID"}`, string(data))

	data, err = json.Marshal(FunctionCallOutput("call_9", `{"success":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"conversation.item.create","item":{"type":"function_call_output","call_id":"call_9","output":"{\"success\":true}"}}`, string(data))

	data, err = json.Marshal(CommitAudio())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"input_audio_buffer.commit"}`, string(data))
}

func TestValidVoice(t *testing.T) {
	assert.True(t, ValidVoice("alloy"))
	assert.True(t, ValidVoice("shimmer"))
	assert.False(t, ValidVoice("robot"))
	assert.Equal(t, DefaultVoice, Voices[0])
}
