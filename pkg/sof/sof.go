// Package sof computes the strength of field of a race, the logarithmic
// mean of the participants' iRating:
//
//	sof = round((1600/ln 2) * ln(n / sum(2^(-rating/1600))))
//
// A team counts as a single participant whose rating is the mean of its
// drivers' ratings.
package sof

import "math"

const (
	// UnratedBaseline substitutes for the sentinel rating -1 that upstream
	// reports for drivers without an established iRating.
	UnratedBaseline = 1350

	ratingScale = 1600.0
)

// Normalize maps the unrated sentinel to the baseline rating.
func Normalize(rating int64) int64 {
	if rating == -1 {
		return UnratedBaseline
	}
	return rating
}

// Calculator accumulates participants for one field. The zero value is ready
// to use.
type Calculator struct {
	teamSum     int64
	teamMembers int64

	expSum  float64
	entries int64
}

// AddSolo records one solo driver as a participant.
func (c *Calculator) AddSolo(rating int64) {
	c.addParticipant(float64(Normalize(rating)))
}

// BeginTeam starts collecting drivers for one team entry.
func (c *Calculator) BeginTeam() {
	c.teamSum = 0
	c.teamMembers = 0
}

// AddTeamDriver records one driver of the team opened by BeginTeam.
func (c *Calculator) AddTeamDriver(rating int64) {
	c.teamSum += Normalize(rating)
	c.teamMembers++
}

// EndTeam closes the current team and records it as a single participant
// with the mean rating of its drivers. A team without drivers contributes
// nothing.
func (c *Calculator) EndTeam() {
	if c.teamMembers == 0 {
		return
	}
	c.addParticipant(float64(c.teamSum) / float64(c.teamMembers))
}

// Entries returns the number of participants recorded so far.
func (c *Calculator) Entries() int64 {
	return c.entries
}

// StrengthOfField returns the strength of the accumulated field, or 0 when
// no participant was recorded.
func (c *Calculator) StrengthOfField() int64 {
	if c.entries == 0 {
		return 0
	}
	return int64(math.Round(
		ratingScale / math.Ln2 * math.Log(float64(c.entries)/c.expSum)))
}

func (c *Calculator) addParticipant(rating float64) {
	c.expSum += math.Pow(2.0, -rating/ratingScale)
	c.entries++
}

// ByClass accumulates one overall field plus one field per car class.
type ByClass struct {
	Total   Calculator
	Classes map[int64]*Calculator

	currentClass int64
}

func NewByClass() *ByClass {
	return &ByClass{Classes: map[int64]*Calculator{}}
}

func (b *ByClass) class(id int64) *Calculator {
	c, ok := b.Classes[id]
	if !ok {
		c = &Calculator{}
		b.Classes[id] = c
	}
	return c
}

func (b *ByClass) AddSolo(classID, rating int64) {
	b.class(classID).AddSolo(rating)
	b.Total.AddSolo(rating)
}

func (b *ByClass) BeginTeam(classID int64) {
	b.currentClass = classID
	b.class(classID).BeginTeam()
	b.Total.BeginTeam()
}

func (b *ByClass) AddTeamDriver(rating int64) {
	b.class(b.currentClass).AddTeamDriver(rating)
	b.Total.AddTeamDriver(rating)
}

func (b *ByClass) EndTeam() {
	b.class(b.currentClass).EndTeam()
	b.Total.EndTeam()
}
