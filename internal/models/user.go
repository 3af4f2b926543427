package models

import (
	"strings"
	"time"
)

type User struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	RoleId    string    `json:"roleId"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Actor is the identity recorded on an approval step.
type Actor struct {
	Id     string
	Name   string
	RoleId string
}

func (u User) Actor() Actor {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return Actor{Id: u.Id, Name: name, RoleId: u.RoleId}
}
