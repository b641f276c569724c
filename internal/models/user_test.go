package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFingerprintDistinguishesSeparatorsInValues(t *testing.T) {
	a := &User{ID: "u1", Permissions: []Permission{"view_teachers,add_teacher"}}
	b := &User{ID: "u1", Permissions: []Permission{PermViewTeachers, PermAddTeacher}}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := &User{ID: "u1|North", SchoolName: ""}
	d := &User{ID: "u1", SchoolName: "North"}
	assert.NotEqual(t, c.Fingerprint(), d.Fingerprint())

	e := &User{ID: "u1", Permissions: []Permission{PermViewTeachers}, ManagedTeacherIDs: []string{"t1"}}
	f := &User{ID: "u1", Permissions: []Permission{PermViewTeachers, "t1"}}
	assert.NotEqual(t, e.Fingerprint(), f.Fingerprint())

	same := &User{ID: "u1", Name: "Renamed", Permissions: []Permission{PermViewTeachers}, ManagedTeacherIDs: []string{"t1"}}
	assert.Equal(t, e.Fingerprint(), same.Fingerprint())
	assert.Empty(t, (*User)(nil).Fingerprint())
}
