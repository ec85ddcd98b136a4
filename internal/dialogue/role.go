package dialogue

// Role is the attributed speaker category for a segment or utterance.
// It is a closed set; every consumer must handle all three values.
type Role string

const (
	// RoleDoctor marks speech attributed to the clinician.
	RoleDoctor Role = "doctor"
	// RolePatient marks speech attributed to the patient.
	RolePatient Role = "patient"
	// RoleUnknown marks speech that could not be attributed.
	RoleUnknown Role = "unknown"
)

// DisplayName returns the human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleDoctor:
		return "Doctor"
	case RolePatient:
		return "Patient"
	case RoleUnknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RolePatient, RoleUnknown:
		return true
	default:
		return false
	}
}

// switched returns the role implied by a speaker change away from r.
// A switch away from an unknown speaker has no defined target.
func switched(r Role) Role {
	switch r {
	case RoleDoctor:
		return RolePatient
	case RolePatient:
		return RoleDoctor
	default:
		return RoleUnknown
	}
}
