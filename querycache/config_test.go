package querycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueryConfig_Validate(t *testing.T) {
	assert.NoError(t, QueryConfig[string]{}.Validate())
	assert.NoError(t, QueryConfig[string]{CacheTime: time.Second}.Validate())
	assert.Error(t, QueryConfig[string]{CacheTime: -time.Second}.Validate())
}

func TestQueryConfig_Merge(t *testing.T) {
	var calls []string
	base := QueryConfig[string]{
		CacheTime: time.Minute,
		OnSuccess: func(string) { calls = append(calls, "base success") },
		OnError:   func(error) { calls = append(calls, "base error") },
	}

	merged := base.Merge(QueryConfig[string]{
		OnSuccess: func(string) { calls = append(calls, "override success") },
	})

	assert.Equal(t, time.Minute, merged.CacheTime)
	merged.OnSuccess("x")
	merged.OnError(nil)
	assert.Equal(t, []string{"override success", "base error"}, calls)

	merged = base.Merge(QueryConfig[string]{CacheTime: time.Second})
	assert.Equal(t, time.Second, merged.CacheTime)
}

func TestQueryConfig_CacheTimeFallback(t *testing.T) {
	assert.Equal(t, time.Minute, QueryConfig[int]{}.cacheTime(time.Minute))
	assert.Equal(t, time.Second, QueryConfig[int]{CacheTime: time.Second}.cacheTime(time.Minute))
}

func TestMutationConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       MutationConfig[int]
		wantError bool
	}{
		{name: "empty", cfg: MutationConfig[int]{}},
		{name: "endpoint prefix", cfg: MutationConfig[int]{Invalidates: [][]any{{"users"}}}},
		{name: "prefix with params", cfg: MutationConfig[int]{Invalidates: [][]any{{"users", "42"}}}},
		{name: "empty prefix", cfg: MutationConfig[int]{Invalidates: [][]any{{}}}, wantError: true},
		{name: "non string endpoint", cfg: MutationConfig[int]{Invalidates: [][]any{{1}}}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
