package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWave_Name(t *testing.T) {
	w := Wave{Year: 2026, Quarter: 3}
	assert.Equal(t, "2026.3", w.Name())
}

func TestWave_Ordering(t *testing.T) {
	q1 := Wave{Year: 2026, Quarter: 1}
	q3 := Wave{Year: 2026, Quarter: 3}
	next := Wave{Year: 2027, Quarter: 1}

	assert.True(t, q1.Before(q3))
	assert.True(t, q3.Before(next))
	assert.False(t, q3.Before(q1))
	assert.False(t, q1.Before(q1))
	assert.Zero(t, q1.Compare(q1))
}

func TestWave_Validate(t *testing.T) {
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid wave has no violations", func(t *testing.T) {
		w := Wave{Year: 2026, Quarter: 2, Date: date}
		assert.Empty(t, w.Validate())
	})

	t.Run("boundaries", func(t *testing.T) {
		assert.Empty(t, Wave{Year: MinWaveYear, Quarter: 1, Date: date}.Validate())
		assert.Empty(t, Wave{Year: MaxWaveYear - 1, Quarter: 4, Date: date}.Validate())
		assert.NotEmpty(t, Wave{Year: MaxWaveYear, Quarter: 1, Date: date}.Validate())
		assert.NotEmpty(t, Wave{Year: MinWaveYear - 1, Quarter: 1, Date: date}.Validate())
	})

	t.Run("all violations reported at once", func(t *testing.T) {
		w := Wave{Year: 1999, Quarter: 5}
		violations := w.Validate()
		assert.Len(t, violations, 3)
	})
}
