// internal/model/achievement_test.go
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CriteriaSpec_DecodeSeedFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Criteria
	}{
		{
			name: "simple threshold",
			raw:  `{"type":"lessons_completed","threshold":10}`,
			want: LessonsCompletedCriteria{Threshold: 10},
		},
		{
			name: "speed completion with metadata",
			raw:  `{"type":"speed_completion","threshold":3,"metadata":{"lessonsRequired":3,"daysAllowed":5}}`,
			want: SpeedCompletionCriteria{LessonsRequired: 3, DaysAllowed: 5},
		},
		{
			name: "speed completion falls back to defaults",
			raw:  `{"type":"speed_completion","threshold":0}`,
			want: SpeedCompletionCriteria{LessonsRequired: 5, DaysAllowed: 7},
		},
		{
			name: "engagement with custom weights",
			raw:  `{"type":"engagement_score","threshold":50,"metadata":{"weights":{"lessons":2,"notes":1,"bookmarks":1,"streak":5}}}`,
			want: EngagementScoreCriteria{Threshold: 50, Weights: EngagementWeights{Lessons: 2, Notes: 1, Bookmarks: 1, Streak: 5}},
		},
		{
			name: "engagement defaults weights",
			raw:  `{"type":"engagement_score","threshold":50}`,
			want: EngagementScoreCriteria{Threshold: 50, Weights: DefaultEngagementWeights()},
		},
		{
			name: "unrecognized type is preserved but inert",
			raw:  `{"type":"moon_phase","threshold":4}`,
			want: UnknownCriteria{Type: "moon_phase"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spec CriteriaSpec
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &spec))
			assert.Equal(t, tt.want, spec.Criteria)
		})
	}
}

func Test_CriteriaSpec_DatabaseRoundTrip(t *testing.T) {
	original := NewCriteriaSpec(SpeedCompletionCriteria{LessonsRequired: 4, DaysAllowed: 10})

	value, err := original.Value()
	require.NoError(t, err)

	var scanned CriteriaSpec
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original.Criteria, scanned.Criteria)

	// Drivers may hand back bytes instead of a string.
	var fromBytes CriteriaSpec
	require.NoError(t, fromBytes.Scan([]byte(value.(string))))
	assert.Equal(t, original.Criteria, fromBytes.Criteria)
}

func Test_CriteriaSpec_ZeroValue(t *testing.T) {
	// gorm marshals zero-value models while parsing the schema, so the
	// empty spec must serialize cleanly instead of dereferencing nil.
	var zero CriteriaSpec

	b, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	value, err := zero.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func Test_CriteriaSpec_MarshalKeepsWireNames(t *testing.T) {
	spec := NewCriteriaSpec(EngagementScoreCriteria{Threshold: 25, Weights: DefaultEngagementWeights()})
	b, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"engagement_score","threshold":25,"metadata":{"weights":{"lessons":1,"notes":2,"bookmarks":1,"streak":3}}}`, string(b))
}
