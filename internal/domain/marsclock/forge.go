package marsclock

import "fmt"

const (
	currentGreeting = "In Isidis on Mars"
	dailyGreeting   = "Have a great day!"
	dailyClaim      = "It's a new day on Mars!"
)

// Forge converts a snapshot into the payload for mode. It has no side effects.
func Forge(mode Mode, snap Snapshot) (Payload, error) {
	switch mode {
	case ModeCurrent:
		return Payload{
			DateLabel: fmt.Sprintf("%d-%02d-%02d %02d:%02d", snap.Year, snap.Month, snap.Day, snap.Hour, snap.Minute),
			Greeting:  currentGreeting,
		}, nil
	case ModeDaily:
		return forgeDaily(snap), nil
	default:
		return Payload{}, missingMode(string(mode))
	}
}

func forgeDaily(snap Snapshot) Payload {
	return Payload{
		DateLabel: fmt.Sprintf("%d-%02d-%02d", snap.Year, snap.Month, snap.Day),
		Greeting:  dailyGreeting,
		Claim:     dailyClaim,
	}
}
