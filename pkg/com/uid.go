package com

import "github.com/gofrs/uuid"

type Uid struct {
	uuid.UUID
}

var NilUid = Uid{uuid.Nil}

func NewUid() Uid { return Uid{uuid.Must(uuid.NewV4())} }

func (u Uid) IsEmpty() bool { return u.UUID == uuid.Nil }
func (u Uid) Short() string { s := u.String(); return s[:3] + "." + s[len(s)-3:] }
