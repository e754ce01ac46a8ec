package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlatformAndMethodCounters(t *testing.T) {
	m := New()

	m.RecordAttempt("tiktok", "tikwm", false)
	m.RecordAttempt("tiktok", "ssstik", true)
	m.RecordExtraction("tiktok", true, 120*time.Millisecond)
	m.RecordExtraction("tiktok", false, 80*time.Millisecond)

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(1), snap["extractions"])
	assert.Equal(t, uint64(1), snap["extraction_failures"])

	tiktok := snap["platforms"].(map[string]interface{})["tiktok"].(map[string]interface{})
	assert.Equal(t, uint64(2), tiktok["requests"])
	assert.Equal(t, float64(50), tiktok["success_rate"])
	assert.Equal(t, uint64(100), tiktok["avg_ms"])

	methods := tiktok["methods"].(map[string]interface{})
	assert.Equal(t, map[string]uint64{"attempts": 1, "wins": 0}, methods["tikwm"])
	assert.Equal(t, map[string]uint64{"attempts": 1, "wins": 1}, methods["ssstik"])
}
