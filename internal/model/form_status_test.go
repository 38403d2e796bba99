package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormStatusValuesMatchStorage(t *testing.T) {
	assert.Equal(t, 0, int(StatusDraft))
	assert.Equal(t, 1, int(StatusSubmitted))
	assert.Equal(t, 2, int(StatusUnderReview))
	assert.Equal(t, 3, int(StatusApproved))
	assert.Equal(t, 4, int(StatusReturned))
	assert.Equal(t, 5, int(StatusRejected))
}

func TestFormStatusJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		S FormStatus `json:"s"`
	}{StatusUnderReview})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"UnderReview"}`, string(b))

	var out struct {
		S FormStatus `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"under_review"}`), &out))
	assert.Equal(t, StatusUnderReview, out.S)

	assert.Error(t, json.Unmarshal([]byte(`{"s":"Lost"}`), &out))

	_, err = json.Marshal(FormStatus(42))
	assert.Error(t, err)
}

func TestParseFormStatus(t *testing.T) {
	s, err := ParseFormStatus(" approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)
	assert.Equal(t, "FormStatus(9)", FormStatus(9).String())
	assert.True(t, StatusReturned.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
}
