// Package roles classifies account role tags.
//
// Classification is pure and total: unknown tags fall back to a self-serve
// classification with no approval gate, so a bad tag can never block an
// ordinary signup.
package roles

// Canonical role tags.
const (
	ProspectiveJamaah = "prospective-jamaah"
	CurrentJamaah     = "current-jamaah"
	Alumni            = "alumni"

	TourLeader = "tour-leader"
	Mutawwif   = "mutawwif"
	Agen       = "agen"

	Staff      = "staff"
	Admin      = "admin"
	Supervisor = "supervisor"
	Direktur   = "direktur"
)

// Role categories.
const (
	CategorySelfServe     = "self-serve"
	CategoryApprovalGated = "approval-gated"
	CategoryManagement    = "management"
)

// Info is the classification of a role tag.
type Info struct {
	RequiresApproval bool
	Category         string
	DisplayLabel     string
}

// aliases maps legacy role tags still present in old records to their
// canonical form.
var aliases = map[string]string{
	"jamaah":       ProspectiveJamaah,
	"calon-jamaah": ProspectiveJamaah,
	"tl":           TourLeader,
	"agent":        Agen,
}

var catalog = map[string]Info{
	ProspectiveJamaah: {false, CategorySelfServe, "Calon Jamaah"},
	CurrentJamaah:     {false, CategorySelfServe, "Jamaah"},
	Alumni:            {false, CategorySelfServe, "Alumni"},

	TourLeader: {true, CategoryApprovalGated, "Tour Leader"},
	Mutawwif:   {true, CategoryApprovalGated, "Mutawwif"},
	Agen:       {true, CategoryApprovalGated, "Agen"},

	Staff:      {false, CategoryManagement, "Staff"},
	Admin:      {false, CategoryManagement, "Admin"},
	Supervisor: {false, CategoryManagement, "Supervisor"},
	Direktur:   {false, CategoryManagement, "Direktur"},
}

// Canonical resolves legacy aliases to the canonical tag. Unknown tags are
// returned unchanged.
func Canonical(role string) string {
	if c, ok := aliases[role]; ok {
		return c
	}
	return role
}

// Classify returns the classification for a role tag. Unknown tags classify
// as self-serve with no approval gate.
func Classify(role string) Info {
	if info, ok := catalog[Canonical(role)]; ok {
		return info
	}
	return Info{RequiresApproval: false, Category: CategorySelfServe, DisplayLabel: role}
}

// RequiresApproval reports whether the role is approval-gated.
func RequiresApproval(role string) bool {
	return Classify(role).RequiresApproval
}

// CodeEligible reports whether the role is entitled to a referral code once
// approved (or immediately, for alumni, who carry no approval gate).
func CodeEligible(role string) bool {
	switch Canonical(role) {
	case Alumni, Agen:
		return true
	}
	return false
}

// IsManagement reports whether the role is a management role.
func IsManagement(role string) bool {
	return Classify(role).Category == CategoryManagement
}

// Valid reports whether the tag (or one of its aliases) is in the closed set.
func Valid(role string) bool {
	_, ok := catalog[Canonical(role)]
	return ok
}
