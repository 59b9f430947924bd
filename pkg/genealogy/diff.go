package genealogy

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-genealogy/pkg/domain"
)

func strVal(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func dateVal(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func idVal(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// diffPersons lists the audited fields that differ between two versions of a person.
func diffPersons(before, after *domain.Person) map[string]FieldChange {
	changes := map[string]FieldChange{}
	add := func(field string, from, to any) {
		if from != to {
			changes[field] = FieldChange{Old: from, New: to}
		}
	}
	emptyAsNil := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}

	add("first_name", emptyAsNil(before.FirstName), emptyAsNil(after.FirstName))
	add("last_name", emptyAsNil(before.LastName), emptyAsNil(after.LastName))
	add("maiden_name", strVal(before.MaidenName), strVal(after.MaidenName))
	add("gender", emptyAsNil(before.Gender), emptyAsNil(after.Gender))
	add("birth_date", dateVal(before.BirthDate), dateVal(after.BirthDate))
	add("birth_place", strVal(before.BirthPlace), strVal(after.BirthPlace))
	add("death_date", dateVal(before.DeathDate), dateVal(after.DeathDate))
	add("death_place", strVal(before.DeathPlace), strVal(after.DeathPlace))
	add("biography", strVal(before.Biography), strVal(after.Biography))
	add("occupation", strVal(before.Occupation), strVal(after.Occupation))
	add("photo_url", strVal(before.PhotoURL), strVal(after.PhotoURL))
	add("notes", strVal(before.Notes), strVal(after.Notes))
	add("source", emptyAsNil(string(before.Source)), emptyAsNil(string(after.Source)))
	add("linked_user_id", idVal(before.LinkedUserID), idVal(after.LinkedUserID))
	if before.ID == uuid.Nil || before.IsAlive != after.IsAlive {
		changes["is_alive"] = FieldChange{Old: nilIfNew(before, before.IsAlive), New: after.IsAlive}
	}
	return changes
}

func nilIfNew(p *domain.Person, v any) any {
	if p.ID == uuid.Nil {
		return nil
	}
	return v
}
