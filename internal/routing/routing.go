// Package routing decides which project a contact is talking to.
//
// The functions here are pure: they take the contact's current assignment and
// an event and return the next assignment plus the replies to send. Callers
// own persistence and delivery.
package routing

import (
	"sort"
	"strconv"
	"strings"

	"whatsapp-router/internal/models"
)

type State string

const (
	Unassigned       State = "UNASSIGNED"
	PendingSelection State = "PENDING_SELECTION"
	Assigned         State = "ASSIGNED"
)

// ResetCommand is the reply that forces membership to be checked again.
const ResetCommand = "0"

// Assignment is the routing part of a contact.
type Assignment struct {
	ProjectID *uint
	Pending   bool
	Available []uint
}

func FromContact(c *models.Contact) Assignment {
	return Assignment{
		ProjectID: c.ProjectID,
		Pending:   c.PendingProjectSelection,
		Available: append([]uint(nil), c.AvailableProjectIDs...),
	}
}

func (a Assignment) State() State {
	switch {
	case a.Pending && len(a.Available) > 0:
		return PendingSelection
	case a.ProjectID != nil:
		return Assigned
	default:
		return Unassigned
	}
}

func (a Assignment) offers(id uint) bool {
	for _, candidate := range a.Available {
		if candidate == id {
			return true
		}
	}
	return false
}

// Decision is the outcome of one transition.
type Decision struct {
	Next    Assignment
	Replies []string
}

func (d Decision) State() State {
	return d.Next.State()
}

// Resolve applies a membership result. candidates are the projects that claim
// the contact; their order does not matter.
func Resolve(candidates []models.Project) Decision {
	projects := dedupe(candidates)

	switch len(projects) {
	case 0:
		return Decision{Next: Assignment{}}
	case 1:
		id := projects[0].ID
		return Decision{
			Next:    Assignment{ProjectID: &id},
			Replies: []string{detectedText(projects[0].Name)},
		}
	default:
		ids := make([]uint, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		return Decision{
			Next:    Assignment{Pending: true, Available: ids},
			Replies: []string{selectionPrompt(projects)},
		}
	}
}

// Choose handles a reply while the contact is picking a project. names maps
// the offered project ids to display names. Anything that is not exactly one
// of the offered ids leaves the assignment unchanged and asks again.
func Choose(current Assignment, text string, names map[uint]string) Decision {
	id, err := strconv.ParseUint(strings.TrimSpace(text), 10, 0)
	if err != nil || !current.offers(uint(id)) {
		return Decision{
			Next:    current,
			Replies: []string{invalidOptionText},
		}
	}

	chosen := uint(id)
	return Decision{
		Next:    Assignment{ProjectID: &chosen},
		Replies: []string{confirmedText(names[chosen])},
	}
}

func dedupe(projects []models.Project) []models.Project {
	seen := make(map[uint]bool, len(projects))
	out := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
