package directory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/extracurricular/internal/domain"
)

// ErrInvalidSeed wraps validation failures in a seed file.
var ErrInvalidSeed = errors.New("invalid seed")

// DefaultSeed returns the built-in Mergington High School catalogue.
func DefaultSeed() map[string]domain.Activity {
	return map[string]domain.Activity{
		"Chess Club": {
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		"Programming Class": {
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		"Gym Class": {
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
		},
		"Soccer Team": {
			Description:     "Join the school soccer team and compete in matches",
			Schedule:        "Tuesdays and Thursdays, 4:00 PM - 5:30 PM",
			MaxParticipants: 22,
			Participants:    []string{"liam@mergington.edu", "noah@mergington.edu"},
		},
		"Basketball Team": {
			Description:     "Practice and play basketball with the school team",
			Schedule:        "Wednesdays and Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 15,
			Participants:    []string{"ava@mergington.edu", "mia@mergington.edu"},
		},
		"Art Club": {
			Description:     "Explore your creativity through painting and drawing",
			Schedule:        "Thursdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 15,
			Participants:    []string{"amelia@mergington.edu", "harper@mergington.edu"},
		},
		"Drama Club": {
			Description:     "Act, direct, and produce plays and performances",
			Schedule:        "Mondays and Wednesdays, 4:00 PM - 5:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"ella@mergington.edu", "scarlett@mergington.edu"},
		},
		"Math Club": {
			Description:     "Solve challenging problems and participate in math competitions",
			Schedule:        "Tuesdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 10,
			Participants:    []string{"james@mergington.edu", "benjamin@mergington.edu"},
		},
		"Debate Team": {
			Description:     "Develop public speaking and argumentation skills",
			Schedule:        "Fridays, 4:00 PM - 5:30 PM",
			MaxParticipants: 12,
			Participants:    []string{"charlotte@mergington.edu", "henry@mergington.edu"},
		},
	}
}

type seedFile struct {
	Activities []seedActivity `yaml:"activities"`
}

type seedActivity struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// LoadSeed reads a YAML catalogue from path.
func LoadSeed(path string) (map[string]domain.Activity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a YAML catalogue.
func ParseSeed(raw []byte) (map[string]domain.Activity, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(file.Activities) == 0 {
		return nil, fmt.Errorf("%w: no activities defined", ErrInvalidSeed)
	}

	out := make(map[string]domain.Activity, len(file.Activities))
	for i, entry := range file.Activities {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: activity %d has no name", ErrInvalidSeed, i)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: duplicate activity %q", ErrInvalidSeed, name)
		}
		if entry.MaxParticipants <= 0 {
			return nil, fmt.Errorf("%w: %q max_participants must be > 0", ErrInvalidSeed, name)
		}
		if len(entry.Participants) > entry.MaxParticipants {
			return nil, fmt.Errorf("%w: %q has more participants than max_participants", ErrInvalidSeed, name)
		}

		seen := make(map[string]struct{}, len(entry.Participants))
		for _, email := range entry.Participants {
			if _, dup := seen[email]; dup {
				return nil, fmt.Errorf("%w: %q lists %s twice", ErrInvalidSeed, name, email)
			}
			seen[email] = struct{}{}
		}

		out[name] = domain.Activity{
			Description:     entry.Description,
			Schedule:        entry.Schedule,
			MaxParticipants: entry.MaxParticipants,
			Participants:    append([]string(nil), entry.Participants...),
		}
	}
	return out, nil
}
