package domain

// Profile is the role-specific attribute set owned by an account.
// Implementations are *StudentProfile and *TeacherProfile; ADMIN accounts
// carry a nil Profile.
type Profile interface {
	DisplayName() string
	profile()
}

// StudentProfile holds student attributes.
type StudentProfile struct {
	ID        string
	AccountID string
	Name      string
	StudentID string
	Phone     string
	Address   string
}

func (p *StudentProfile) DisplayName() string { return p.Name }
func (*StudentProfile) profile()              {}

// TeacherProfile holds teacher attributes.
type TeacherProfile struct {
	ID        string
	AccountID string
	Name      string
	Phone     string
	Address   string
}

func (p *TeacherProfile) DisplayName() string { return p.Name }
func (*TeacherProfile) profile()              {}

// ProfileUpdate carries optional profile edits; nil fields are left unchanged
// and an empty Phone or Address clears the stored value.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// Empty reports whether no field is set.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.Address == nil
}
