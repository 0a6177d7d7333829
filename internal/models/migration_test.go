package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobProgress_SurvivesJSONBRoundTrip(t *testing.T) {
	job := &MigrationJob{}
	assert.Equal(t, &JobProgress{}, job.GetProgress())

	job.SetProgress(&JobProgress{TotalItems: 4, ProcessedItems: 3, SuccessfulItems: 2, FailedItems: 1, Percentage: 75})

	value, err := job.Progress.Value()
	require.NoError(t, err)

	var scanned JSONB
	require.NoError(t, scanned.Scan(value))

	restored := &MigrationJob{Progress: scanned}
	assert.Equal(t, &JobProgress{TotalItems: 4, ProcessedItems: 3, SuccessfulItems: 2, FailedItems: 1, Percentage: 75}, restored.GetProgress())
}

func TestJobProgress_AcceptsJSONNumbers(t *testing.T) {
	job := &MigrationJob{Progress: JSONB{
		"totalItems":      json.Number("10"),
		"processedItems":  json.Number("5"),
		"successfulItems": json.Number("4"),
		"failedItems":     json.Number("1"),
		"percentage":      json.Number("50.5"),
	}}
	assert.Equal(t, &JobProgress{TotalItems: 10, ProcessedItems: 5, SuccessfulItems: 4, FailedItems: 1, Percentage: 50.5}, job.GetProgress())

	var scanned JSONB
	require.NoError(t, scanned.Scan([]byte(`{"totalItems":2,"processedItems":2,"successfulItems":2,"failedItems":0,"percentage":100}`)))
	_, isNumber := scanned["totalItems"].(json.Number)
	assert.True(t, isNumber)
	assert.Equal(t, 2, (&MigrationJob{Progress: scanned}).GetProgress().SuccessfulItems)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusPartial.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}
