package sof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, int64(UnratedBaseline), Normalize(-1))
	assert.Equal(t, int64(0), Normalize(0))
	assert.Equal(t, int64(2500), Normalize(2500))
}

func TestCalculatorUniformField(t *testing.T) {
	// a field where everyone has the same rating has exactly that strength
	c := Calculator{}
	for i := 0; i < 12; i++ {
		c.AddSolo(1350)
	}
	assert.Equal(t, int64(12), c.Entries())
	assert.Equal(t, int64(1350), c.StrengthOfField())
}

func TestCalculatorSingleDriver(t *testing.T) {
	c := Calculator{}
	c.AddSolo(2173)
	assert.Equal(t, int64(2173), c.StrengthOfField())
}

func TestCalculatorUnratedDriver(t *testing.T) {
	c := Calculator{}
	c.AddSolo(-1)
	assert.Equal(t, int64(UnratedBaseline), c.StrengthOfField())
}

func TestCalculatorEmptyField(t *testing.T) {
	c := Calculator{}
	assert.Equal(t, int64(0), c.Entries())
	assert.Equal(t, int64(0), c.StrengthOfField())
}

func TestCalculatorTeamCountsOnce(t *testing.T) {
	// a team is one participant with the mean rating of its drivers
	team := Calculator{}
	team.BeginTeam()
	team.AddTeamDriver(1000)
	team.AddTeamDriver(2000)
	team.EndTeam()

	solo := Calculator{}
	solo.AddSolo(1500)

	assert.Equal(t, int64(1), team.Entries())
	assert.Equal(t, solo.StrengthOfField(), team.StrengthOfField())
}

func TestCalculatorEmptyTeamIgnored(t *testing.T) {
	c := Calculator{}
	c.BeginTeam()
	c.EndTeam()
	assert.Equal(t, int64(0), c.Entries())
	assert.Equal(t, int64(0), c.StrengthOfField())
}

func TestByClass(t *testing.T) {
	b := NewByClass()
	b.AddSolo(100, 1800)
	b.AddSolo(100, 1800)
	b.AddSolo(200, 1200)

	assert.Equal(t, int64(3), b.Total.Entries())
	assert.Equal(t, int64(2), b.Classes[100].Entries())
	assert.Equal(t, int64(1), b.Classes[200].Entries())
	assert.Equal(t, int64(1800), b.Classes[100].StrengthOfField())
	assert.Equal(t, int64(1200), b.Classes[200].StrengthOfField())
}

func TestByClassTeams(t *testing.T) {
	b := NewByClass()
	b.BeginTeam(100)
	b.AddTeamDriver(1000)
	b.AddTeamDriver(2000)
	b.EndTeam()
	b.AddSolo(100, 1500)

	assert.Equal(t, int64(2), b.Total.Entries())
	assert.Equal(t, int64(1500), b.Classes[100].StrengthOfField())
	assert.Equal(t, int64(1500), b.Total.StrengthOfField())
}
