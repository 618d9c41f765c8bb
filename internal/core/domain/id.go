package domain

import (
	"github.com/google/uuid"
)

// ClientID identifies one live connection. It is never reused.
type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func ParseClientID(s string) (ClientID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ClientID{}, err
	}
	return ClientID(id), nil
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}
