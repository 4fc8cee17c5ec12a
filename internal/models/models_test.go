package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterGradeOrder(t *testing.T) {
	assert.True(t, GradeCC.AtLeast(GradeDD))
	assert.True(t, GradeDD.AtLeast(GradeDD))
	assert.False(t, GradeFD.AtLeast(GradeDD))
	assert.True(t, GradeAA.AtLeast(GradeBA))
	assert.False(t, LetterGrade("A+").AtLeast(GradeFF))
	assert.Equal(t, 0, GradeFF.Rank())
	assert.Equal(t, 8, GradeAA.Rank())

	g, ok := ParseLetterGrade(" cb ")
	require.True(t, ok)
	assert.Equal(t, GradeCB, g)
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{"09:00": 540, "10:30:00": 630, "00:00": 0, "24:00": 1440}
	for raw, want := range cases {
		got, err := ParseClock(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "9", "25:00", "10:60", "aa:bb", "24:30"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
	assert.Equal(t, "09:05", FormatClock(545))
}

func TestTimeSlotMinutesRejectsInvertedRange(t *testing.T) {
	_, _, err := TimeSlot{StartTime: "11:00", EndTime: "10:00"}.Minutes()
	assert.Error(t, err)

	start, end, err := TimeSlot{StartTime: "09:00:00", EndTime: "10:30:00"}.Minutes()
	require.NoError(t, err)
	assert.Equal(t, 540, start)
	assert.Equal(t, 630, end)
}

func TestSemesterAndWeekdayOrder(t *testing.T) {
	assert.Less(t, SemesterSpring.Order(), SemesterSummer.Order())
	assert.Less(t, SemesterSummer.Order(), SemesterFall.Order())
	_, ok := ParseSemester("Winter")
	assert.False(t, ok)

	assert.Equal(t, 1, Weekday("Monday ").Normalize().Index())
	assert.Equal(t, 7, Sunday.Index())
	assert.Equal(t, 0, Weekday("funday").Index())
}
