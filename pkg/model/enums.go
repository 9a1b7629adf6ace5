package model

// EventType is the kind of event a subsession ran as.
type EventType int64

const (
	EventPractice  EventType = 2
	EventQualify   EventType = 3
	EventTimeTrial EventType = 4
	EventRace      EventType = 5
)

func (e EventType) String() string {
	switch e {
	case EventPractice:
		return "Practice"
	case EventQualify:
		return "Qualify"
	case EventTimeTrial:
		return "Time Trial"
	case EventRace:
		return "Race"
	default:
		return "Unknown"
	}
}

// SimsessionType is the kind of one phase within a subsession.
type SimsessionType int64

const (
	SimsessionOpenPractice   SimsessionType = 3
	SimsessionLoneQualifying SimsessionType = 4
	SimsessionOpenQualifying SimsessionType = 5
	SimsessionRace           SimsessionType = 6
)

func (s SimsessionType) String() string {
	switch s {
	case SimsessionOpenPractice:
		return "Open Practice"
	case SimsessionLoneQualifying:
		return "Lone Qualifying"
	case SimsessionOpenQualifying:
		return "Open Qualifying"
	case SimsessionRace:
		return "Race"
	default:
		return "Unknown"
	}
}
